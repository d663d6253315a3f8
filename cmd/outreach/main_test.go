package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseEntries(t *testing.T) {
	got, err := parseEntries([]string{
		"https://www.linkedin.com/in/a/",
		"https://www.linkedin.com/in/b/=2.5",
		"https://www.linkedin.com/in/c/?x=y",
		"https://www.linkedin.com/in/jane/?trk=5",
		"https://www.linkedin.com/in/jane/?trk=5=2",
		"https://www.linkedin.com/in/jane/?a=1&b=3",
		"https://www.linkedin.com/in/d/=0.5",
	}, 1)
	if err != nil {
		t.Fatalf("parseEntries: %v", err)
	}
	want := []struct {
		url   string
		delay float64
	}{
		{"https://www.linkedin.com/in/a/", 1},
		{"https://www.linkedin.com/in/b/", 2.5},
		{"https://www.linkedin.com/in/c/?x=y", 1},
		{"https://www.linkedin.com/in/jane/?trk=5", 1},
		{"https://www.linkedin.com/in/jane/?trk=5", 2},
		{"https://www.linkedin.com/in/jane/?a=1&b=3", 1},
		{"https://www.linkedin.com/in/d/", 0.5},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries", len(got))
	}
	for i, w := range want {
		if got[i].URL != w.url || got[i].DelayMinutes != w.delay {
			t.Errorf("entry %d = %+v, want %s/%v", i, got[i], w.url, w.delay)
		}
	}

	if _, err := parseEntries(nil, 1); err == nil {
		t.Error("expected error for no URLs")
	}
}

func run(t *testing.T, cfgPath string, args ...string) string {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(""))
	cmd.SetArgs(append([]string{"--config", cfgPath}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("%v: %v\n%s", args, err, errOut.String())
	}
	return out.String()
}

func TestOfflineCommands(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := "database:\n  path: " + filepath.Join(dir, "kv.db") + "\nlogging:\n  level: error\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	id := strings.TrimSpace(run(t, cfgPath, "clients", "add", "Acme"))
	if id == "" {
		t.Fatal("clients add printed no id")
	}
	if idx := strings.TrimSpace(run(t, cfgPath, "templates", "add", "Intro")); idx != "0" {
		t.Errorf("template index = %q", idx)
	}
	run(t, cfgPath, "templates", "save", "0", "Hi {firstName} from {company}")

	if got := strings.TrimSpace(run(t, cfgPath, "preview")); got != "Hi John from Stripe" {
		t.Errorf("preview = %q", got)
	}
	if list := run(t, cfgPath, "clients", "list"); !strings.Contains(list, "* "+id+"  Acme") || !strings.Contains(list, "[0] Intro (default)") {
		t.Errorf("clients list =\n%s", list)
	}

	run(t, cfgPath, "tags", "add", "https://www.linkedin.com/in/jane/", "founder")
	if tags := strings.TrimSpace(run(t, cfgPath, "tags", "list", "https://www.linkedin.com/in/jane/")); tags != "founder" {
		t.Errorf("tags = %q", tags)
	}
	run(t, cfgPath, "notes", "set", "https://www.linkedin.com/in/jane/", "met", "at", "conf")
	if n := strings.TrimSpace(run(t, cfgPath, "notes", "get", "https://www.linkedin.com/in/jane/")); n != "met at conf" {
		t.Errorf("note = %q", n)
	}

	if stats := run(t, cfgPath, "logs", "stats"); !strings.Contains(stats, "total: 0") {
		t.Errorf("stats = %q", stats)
	}
	if csv := run(t, cfgPath, "logs", "export"); csv != `"Date/Time","Client","Name","Replied"`+"\n" {
		t.Errorf("csv = %q", csv)
	}
}
