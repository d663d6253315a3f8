package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/campaign"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
)

// daemon talks to a running `outreach serve`. Campaign state changes must go
// through the process that owns the timer.
type daemon struct {
	base string
	hc   *http.Client
}

func newDaemon(cmd *cobra.Command) (*daemon, error) {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	addr := cfg.Server.Addr
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		addr = v
	}
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		addr = "http://" + addr
	}
	return &daemon{base: strings.TrimRight(addr, "/"), hc: &http.Client{Timeout: 15 * time.Second}}, nil
}

func (d *daemon) call(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, d.base+path, rd)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.hc.Do(req)
	if err != nil {
		return fmt.Errorf("daemon unreachable at %s (is `outreach serve` running?): %w", d.base, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &e) == nil && e.Message != "" {
			return fmt.Errorf("daemon: %s", e.Message)
		}
		return fmt.Errorf("daemon: %s", resp.Status)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

func newCampaignCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "campaign",
		Short: "Start, stop and inspect the connect campaign on the running daemon",
	}
	cmd.PersistentFlags().String("addr", "", "daemon address (defaults to server.addr)")
	cmd.AddCommand(newCampaignStartCmd(), newCampaignStopCmd(), newCampaignStatusCmd())
	return cmd
}

func newCampaignStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start [url[=delay]...]",
		Short: "Queue profile URLs and start the campaign",
		Long: `Queue profile URLs and start the campaign.

Each argument is a profile URL, optionally followed by =<minutes> to set the
wait after that profile. Without a delay the --delay value is used.
With --from-logs the queue is built from every profile in the outreach log.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			delay, _ := cmd.Flags().GetFloat64("delay")
			fromLogs, _ := cmd.Flags().GetBool("from-logs")
			req := map[string]any{"fromLogs": fromLogs, "delay": delay}
			if !fromLogs {
				entries, err := parseEntries(args, delay)
				if err != nil {
					return err
				}
				req["entries"] = entries
			}
			d, err := newDaemon(cmd)
			if err != nil {
				return err
			}
			var st campaign.Status
			if err := d.call(cmd.Context(), http.MethodPost, "/api/v1/campaign/start", req, &st); err != nil {
				return err
			}
			return printStatus(cmd, st)
		},
	}
	cmd.Flags().Float64("delay", 0, "minutes to wait after each profile (0 uses campaign.default_delay_minutes)")
	cmd.Flags().Bool("from-logs", false, "queue every profile in the outreach log")
	return cmd
}

// parseEntries reads "url" or "url=minutes" arguments. The suffix is only a
// delay when the text before it does not end in an unfinished query pair, so
// "/in/jane/?trk=5" stays a URL while "/in/jane/?trk=5=2" waits two minutes.
func parseEntries(args []string, delay float64) ([]models.QueueEntry, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("no profile URLs given (pass URLs or --from-logs)")
	}
	out := make([]models.QueueEntry, 0, len(args))
	for _, a := range args {
		e := models.QueueEntry{URL: a, DelayMinutes: delay}
		if i := strings.LastIndex(a, "="); i > 0 && !openQueryPair(a[:i]) {
			if d, err := strconv.ParseFloat(a[i+1:], 64); err == nil {
				e.URL, e.DelayMinutes = a[:i], d
			}
		}
		out = append(out, e)
	}
	return out, nil
}

// openQueryPair reports whether u ends inside a query key that has no "=" yet.
func openQueryPair(u string) bool {
	q := strings.Index(u, "?")
	if q < 0 {
		return false
	}
	query := u[q+1:]
	last := query[strings.LastIndex(query, "&")+1:]
	return !strings.Contains(last, "=")
}

func newCampaignStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the campaign and clear the queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDaemon(cmd)
			if err != nil {
				return err
			}
			var st campaign.Status
			if err := d.call(cmd.Context(), http.MethodPost, "/api/v1/campaign/stop", nil, &st); err != nil {
				return err
			}
			return printStatus(cmd, st)
		},
	}
}

func newCampaignStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the campaign queue and current target",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := newDaemon(cmd)
			if err != nil {
				return err
			}
			var st campaign.Status
			if err := d.call(cmd.Context(), http.MethodGet, "/api/v1/campaign/", nil, &st); err != nil {
				return err
			}
			return printStatus(cmd, st)
		},
	}
}

func printStatus(cmd *cobra.Command, st campaign.Status) error {
	if jsonOutput(cmd) {
		return printJSON(cmd, st)
	}
	out := cmd.OutOrStdout()
	state := "stopped"
	if st.Active {
		state = "running"
	}
	fmt.Fprintf(out, "campaign: %s, %d queued, timer pending: %v\n", state, len(st.Queue), st.TimerPending)
	if st.Claim != nil {
		fmt.Fprintf(out, "current target: %s\n", st.Claim.URL)
	}
	for i, e := range st.Queue {
		fmt.Fprintf(out, "%3d. %s (then wait %gm)\n", i+1, e.URL, e.DelayMinutes)
	}
	return nil
}
