package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/logging"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Campaign.DefaultDelayMinutes != 1 {
		t.Errorf("default delay = %v", cfg.Campaign.DefaultDelayMinutes)
	}
	if cfg.LinkedIn.ProfilePattern != "linkedin.com/in/" {
		t.Errorf("profile pattern = %q", cfg.LinkedIn.ProfilePattern)
	}
	if cfg.Automation.StepTimeout != 10*time.Second {
		t.Errorf("step timeout = %v", cfg.Automation.StepTimeout)
	}
}

func TestLoadOverlayAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
campaign:
  default_delay_minutes: 2.5
automation:
  step_timeout: 3s
tracking:
  track_visits: false
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("OUTREACH_TRACK_VISITS", "true")
	t.Setenv("OUTREACH_ADDR", "127.0.0.1:9999")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Campaign.DefaultDelayMinutes != 2.5 {
		t.Errorf("delay = %v", cfg.Campaign.DefaultDelayMinutes)
	}
	if cfg.Automation.StepTimeout != 3*time.Second {
		t.Errorf("step timeout = %v", cfg.Automation.StepTimeout)
	}
	if !cfg.Tracking.TrackVisits {
		t.Error("env override for track_visits not applied")
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		yml  string
	}{
		{"zero delay", "campaign:\n  default_delay_minutes: 0\n"},
		{"no pattern", "linkedin:\n  profile_pattern: \"\"\n"},
		{"bad yaml", "campaign: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yml), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tracking:\n  track_visits: false\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan bool, 4)
	ready := make(chan struct{})
	go func() {
		close(ready)
		_ = Watch(ctx, path, logging.Discard(), func(c *Config) { got <- c.Tracking.TrackVisits })
	}()
	<-ready

	// the watcher registers asynchronously; keep rewriting until it reports
	deadline := time.After(3 * time.Second)
	tick := time.NewTicker(50 * time.Millisecond)
	defer tick.Stop()
	for {
		select {
		case v := <-got:
			if !v {
				continue
			}
			return
		case <-tick.C:
			if err := os.WriteFile(path, []byte("tracking:\n  track_visits: true\n"), 0o644); err != nil {
				t.Fatalf("write: %v", err)
			}
		case <-deadline:
			t.Fatal("no reload observed")
		}
	}
}
