package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/automation"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/browser"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/campaign"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/config"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/logging"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/models"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/outreach"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/server"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/store"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/tabs"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/timer"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/visits"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the daemon: browser, campaign scheduler, visit tracker and HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, path)
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides server.addr)")
	return cmd
}

func serve(ctx context.Context, cfg *config.Config, cfgPath string) error {
	log := logging.New(cfg.Logging.Level)
	log.Info("outreach starting", "version", Version)
	log.Info("config loaded", "db_path", cfg.Database.Path, "log_level", cfg.Logging.Level)

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	hub := tabs.NewHub()
	// the browser outlives ctx so cookies can be saved during shutdown
	br, err := browser.New(context.WithoutCancel(ctx), cfg, hub, log)
	if err != nil {
		return err
	}
	defer br.Close()
	if err := br.LoadCookies(cfg.Browser.CookiesPath); err != nil {
		log.Warn("load cookies failed", "err", err)
	}
	defer func() {
		if err := br.SaveCookies(cfg.Browser.CookiesPath); err != nil {
			log.Warn("save cookies failed", "err", err)
		}
	}()

	alarms := timer.New(timer.WithLogger(log.With("module", "timer")))
	defer alarms.Close()
	sched := campaign.New(st, alarms, br, cfg.Campaign.DefaultDelayMinutes, log,
		campaign.WithSite(cfg.LinkedIn.BaseURL))
	alarms.OnFire(sched.OnAlarm)
	if _, err := sched.Resume(ctx); err != nil {
		return err
	}

	// the config file seeds the trackVisits preference; the store stays the
	// source of truth so API writes take effect too
	if err := st.Save(ctx, store.Sync, models.KeyTrackVisits, cfg.Tracking.TrackVisits); err != nil {
		return fmt.Errorf("seed trackVisits: %w", err)
	}
	tracker := visits.New(st, hub, cfg.LinkedIn.ProfilePattern, log)
	stopFollow, err := tracker.Follow(ctx)
	if err != nil {
		return fmt.Errorf("follow trackVisits: %w", err)
	}
	defer stopFollow()
	defer tracker.Disable()

	go func() {
		err := config.Watch(ctx, cfgPath, log, func(c *config.Config) {
			if err := st.Save(ctx, store.Sync, models.KeyTrackVisits, c.Tracking.TrackVisits); err != nil {
				log.Warn("apply reloaded config failed", "err", err)
			}
		})
		if err != nil {
			log.Warn("config watch stopped", "err", err)
		}
	}()

	rec := outreach.New(st, log)
	filler := automation.NewNoteFiller(rec, cfg.Automation.ScrapeTimeout, log)
	agent := automation.NewAgent(sched, rec, filler, cfg.Automation.StepTimeout, log)
	runner := automation.NewRunner(agent, filler, rec, br, cfg.LinkedIn.ProfilePattern, log)
	stopRunner := runner.Start(ctx, hub)
	defer stopRunner()

	srv := server.New(st, sched, rec, log)
	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	log.Info("outreach stopped")
	return nil
}
