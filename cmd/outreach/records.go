package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/visits"
)

// withEnv opens the store for the duration of fn.
func withEnv(fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, e, args)
	}
}

// output returns the --out file, or stdout when it is empty.
func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	path, _ := cmd.Flags().GetString("out")
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

func atoi(name, v string) (int, error) {
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer, got %q", name, v)
	}
	return i, nil
}

// logs

func newLogsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Inspect and export the outreach log",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List logged contact attempts, newest first",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			logs, err := e.rec.Logs(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, logs)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tDATE\tCLIENT\tNAME\tOUTCOME\tREPLIED\tPROFILE")
			for i, l := range logs {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%v\t%s\n", i, l.Datetime, l.ClientName, l.Name, l.Outcome, l.Replied, l.ProfileURL)
			}
			return tw.Flush()
		}),
	}

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the outreach log as CSV",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			w, done, err := output(cmd)
			if err != nil {
				return err
			}
			if err := e.rec.ExportLogs(cmd.Context(), w); err != nil {
				done()
				return err
			}
			return done()
		}),
	}
	export.Flags().StringP("out", "o", "", "output file (default stdout)")

	replied := &cobra.Command{
		Use:   "replied <index> [true|false]",
		Short: "Mark a log entry as replied (or not)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			idx, err := atoi("index", args[0])
			if err != nil {
				return err
			}
			v := true
			if len(args) == 2 {
				if v, err = strconv.ParseBool(args[1]); err != nil {
					return fmt.Errorf("replied must be true or false, got %q", args[1])
				}
			}
			return e.rec.SetReplied(cmd.Context(), idx, v)
		}),
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show total, replied and reply rate",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			s, err := e.rec.LogStats(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, s)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "total: %d  replied: %d  rate: %.1f%%\n", s.Total, s.Replied, s.Rate)
			return nil
		}),
	}

	cmd.AddCommand(list, export, replied, stats)
	return cmd
}

// visits

func newVisitsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "visits",
		Short: "Inspect and export profile visit history",
	}

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Print the raw visit map",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			data, err := visits.Stats(cmd.Context(), e.st)
			if err != nil {
				return err
			}
			return printJSON(cmd, data)
		}),
	}

	top := &cobra.Command{
		Use:   "top",
		Short: "List profiles by total time spent",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			n, _ := cmd.Flags().GetInt("limit")
			ranked, err := visits.Top(cmd.Context(), e.st, n)
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, ranked)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PROFILE\tVISITS\tSECONDS")
			for _, r := range ranked {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", r.URL, r.Visits, (r.TotalTime+500)/1000)
			}
			return tw.Flush()
		}),
	}
	top.Flags().IntP("limit", "n", 10, "number of profiles (0 for all)")

	export := &cobra.Command{
		Use:   "export",
		Short: "Write the visit history as CSV",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			w, done, err := output(cmd)
			if err != nil {
				return err
			}
			if err := e.rec.ExportVisits(cmd.Context(), w); err != nil {
				done()
				return err
			}
			return done()
		}),
	}
	export.Flags().StringP("out", "o", "", "output file (default stdout)")

	cmd.AddCommand(stats, top, export)
	return cmd
}

// clients and templates

func newClientsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clients",
		Short: "Manage clients",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List clients and their templates",
		Args:  cobra.NoArgs,
		RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
			clients, err := e.rec.Clients(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return printJSON(cmd, clients)
			}
			active := ""
			if c, err := e.rec.ActiveClient(cmd.Context()); err == nil {
				active = c.ID
			}
			out := cmd.OutOrStdout()
			for _, c := range clients {
				mark := " "
				if c.ID == active {
					mark = "*"
				}
				fmt.Fprintf(out, "%s %s  %s\n", mark, c.ID, c.Name)
				for i, t := range c.Templates {
					def := ""
					if i == c.DefaultIndex {
						def = " (default)"
					}
					fmt.Fprintf(out, "    [%d] %s%s\n", i, t.Name, def)
				}
			}
			return nil
		}),
	}

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a client and make it active",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			c, err := e.rec.AddClient(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), c.ID)
			return nil
		}),
	}

	use := &cobra.Command{
		Use:   "use <id>",
		Short: "Make a client active",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			return e.rec.SetActiveClient(cmd.Context(), args[0])
		}),
	}

	cmd.AddCommand(list, add, use)
	return cmd
}

// clientID returns --client, or the active client's id.
func clientID(cmd *cobra.Command, e *env) (string, error) {
	if id, _ := cmd.Flags().GetString("client"); id != "" {
		return id, nil
	}
	c, err := e.rec.ActiveClient(cmd.Context())
	if err != nil {
		return "", err
	}
	return c.ID, nil
}

func newTemplatesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "Manage a client's note templates",
	}
	cmd.PersistentFlags().String("client", "", "client id (defaults to the active client)")

	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an empty template",
		Args:  cobra.MinimumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id, err := clientID(cmd, e)
			if err != nil {
				return err
			}
			idx, err := e.rec.AddTemplate(cmd.Context(), id, strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), idx)
			return nil
		}),
	}

	rename := &cobra.Command{
		Use:   "rename <index> <name>",
		Short: "Rename a template",
		Args:  cobra.MinimumNArgs(2),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id, err := clientID(cmd, e)
			if err != nil {
				return err
			}
			idx, err := atoi("index", args[0])
			if err != nil {
				return err
			}
			return e.rec.RenameTemplate(cmd.Context(), id, idx, strings.Join(args[1:], " "))
		}),
	}

	save := &cobra.Command{
		Use:   "save <index> [content]",
		Short: "Replace a template's content (read from stdin when omitted)",
		Args:  cobra.RangeArgs(1, 2),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id, err := clientID(cmd, e)
			if err != nil {
				return err
			}
			idx, err := atoi("index", args[0])
			if err != nil {
				return err
			}
			var content string
			if len(args) == 2 {
				content = args[1]
			} else {
				b, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return err
				}
				content = strings.TrimRight(string(b), "\n")
			}
			return e.rec.SaveTemplate(cmd.Context(), id, idx, content)
		}),
	}

	del := &cobra.Command{
		Use:   "delete <index>",
		Short: "Delete a template",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id, err := clientID(cmd, e)
			if err != nil {
				return err
			}
			idx, err := atoi("index", args[0])
			if err != nil {
				return err
			}
			return e.rec.DeleteTemplate(cmd.Context(), id, idx)
		}),
	}

	def := &cobra.Command{
		Use:   "default <index>",
		Short: "Make a template the client's default",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			id, err := clientID(cmd, e)
			if err != nil {
				return err
			}
			idx, err := atoi("index", args[0])
			if err != nil {
				return err
			}
			return e.rec.SetDefaultTemplate(cmd.Context(), id, idx)
		}),
	}

	cmd.AddCommand(add, rename, save, del, def)
	return cmd
}

// tags and notes

func newTagsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Tag profiles",
	}

	add := &cobra.Command{
		Use:   "add <profile-url> <tag>",
		Short: "Add a tag to a profile",
		Args:  cobra.MinimumNArgs(2),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			return e.rec.AddTag(cmd.Context(), args[0], strings.Join(args[1:], " "))
		}),
	}

	list := &cobra.Command{
		Use:   "list [profile-url]",
		Short: "List a profile's tags, or every tagged profile",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			if len(args) == 1 {
				tags, err := e.rec.Tags(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if jsonOutput(cmd) {
					return printJSON(cmd, tags)
				}
				for _, t := range tags {
					fmt.Fprintln(cmd.OutOrStdout(), t)
				}
				return nil
			}
			all, err := e.rec.AllTags(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd, all)
		}),
	}

	cmd.AddCommand(add, list)
	return cmd
}

func newNotesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notes",
		Short: "Keep private notes on profiles",
	}

	get := &cobra.Command{
		Use:   "get <profile-url>",
		Short: "Print the note for a profile",
		Args:  cobra.ExactArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			n, err := e.rec.Note(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), n)
			return nil
		}),
	}

	set := &cobra.Command{
		Use:   "set <profile-url> <note>",
		Short: "Replace the note for a profile",
		Args:  cobra.MinimumNArgs(2),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			return e.rec.SetNote(cmd.Context(), args[0], strings.Join(args[1:], " "))
		}),
	}

	cmd.AddCommand(get, set)
	return cmd
}

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview [template]",
		Short: "Render a template against the last filled profile (default: the active client's default template)",
		Args:  cobra.MaximumNArgs(1),
		RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
			var tmpl string
			if len(args) == 1 {
				tmpl = args[0]
			} else {
				var err error
				if tmpl, err = e.rec.DefaultTemplate(cmd.Context()); err != nil {
					return err
				}
			}
			text, err := e.rec.Preview(cmd.Context(), tmpl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), text)
			return nil
		}),
	}
}
