package outreach

import (
	"bufio"
	"context"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/visits"
)

// writeRows writes every field double-quoted, quotes inside a field doubled,
// one row per line.
func writeRows(w io.Writer, rows [][]string) error {
	bw := bufio.NewWriter(w)
	for _, row := range rows {
		for i, f := range row {
			if i > 0 {
				bw.WriteByte(',')
			}
			bw.WriteByte('"')
			bw.WriteString(strings.ReplaceAll(f, `"`, `""`))
			bw.WriteByte('"')
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// ExportLogs writes the outreach log as CSV, newest first.
func (r *Records) ExportLogs(ctx context.Context, w io.Writer) error {
	logs, err := r.Logs(ctx)
	if err != nil {
		return err
	}
	rows := [][]string{{"Date/Time", "Client", "Name", "Replied"}}
	for _, l := range logs {
		rows = append(rows, []string{l.Datetime, l.ClientName, l.Name, yesNo(l.Replied)})
	}
	return writeRows(w, rows)
}

// ExportVisits writes the visit history as CSV, longest total dwell first.
// Names come from the outreach log when the profile appears there.
func (r *Records) ExportVisits(ctx context.Context, w io.Writer) error {
	ranked, err := visits.Top(ctx, r.st, 0)
	if err != nil {
		return err
	}
	logs, err := r.Logs(ctx)
	if err != nil {
		return err
	}
	names := make(map[string]string, len(logs))
	for _, l := range logs {
		if _, ok := names[l.ProfileURL]; !ok && l.Name != unknown {
			names[l.ProfileURL] = l.Name
		}
	}

	rows := [][]string{{"Name", "URL", "Visit Count", "Total Time (s)"}}
	for _, v := range ranked {
		secs := int64(math.Round(float64(v.TotalTime) / 1000))
		rows = append(rows, []string{
			names[v.URL],
			v.URL,
			strconv.Itoa(v.Visits),
			strconv.FormatInt(secs, 10),
		})
	}
	return writeRows(w, rows)
}
