// Package browser drives Chrome through go-rod. It feeds tab lifecycle events
// into a tabs.Hub and hands out dom.Page adapters for profile tabs.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/config"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/dom"
	"github.com/beingsj/Linkedin-Outreach-Assistant/internal/tabs"
)

type Browser struct {
	rod *rod.Browser
	hub *tabs.Hub
	cfg *config.Config
	log *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	pages map[tabs.ID]*attached
}

type attached struct {
	page   *rod.Page
	cancel context.CancelFunc
}

// New launches Chrome, or connects to browser.control_url when it is set, and
// starts mirroring its tabs into hub.
func New(ctx context.Context, cfg *config.Config, hub *tabs.Hub, log *slog.Logger) (*Browser, error) {
	log = log.With("module", "browser")
	url := cfg.Browser.ControlURL
	if url == "" {
		// Leakless stays off to avoid AV false positives on Windows.
		l := launcher.New().Leakless(false).Headless(cfg.Browser.Headless)
		if cfg.Browser.UserDataDir != "" {
			l = l.UserDataDir(cfg.Browser.UserDataDir)
		}
		if cfg.Browser.Bin != "" {
			l = l.Bin(cfg.Browser.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		url = u
	}

	ctx, cancel := context.WithCancel(ctx)
	rb := rod.New().ControlURL(url).Context(ctx)
	if err := rb.Connect(); err != nil {
		cancel()
		return nil, fmt.Errorf("connect chrome: %w", err)
	}
	br := &Browser{
		rod:    rb,
		hub:    hub,
		cfg:    cfg,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		pages:  map[tabs.ID]*attached{},
	}
	if err := br.init(); err != nil {
		cancel()
		return nil, err
	}
	log.Info("browser ready", "control_url", url, "headless", cfg.Browser.Headless)
	return br, nil
}

func (b *Browser) init() error {
	wait := b.rod.EachEvent(
		func(e *proto.TargetTargetCreated) {
			if e.TargetInfo.Type == proto.TargetTargetInfoTypePage {
				go b.attach(tabs.ID(e.TargetInfo.TargetID))
			}
		},
		func(e *proto.TargetTargetInfoChanged) {
			if e.TargetInfo.Type == proto.TargetTargetInfoTypePage {
				b.hub.Navigated(tabs.ID(e.TargetInfo.TargetID), e.TargetInfo.URL)
			}
		},
		func(e *proto.TargetTargetDestroyed) {
			b.detach(tabs.ID(e.TargetID))
		},
	)
	go wait()

	if err := (proto.TargetSetDiscoverTargets{Discover: true}).Call(b.rod); err != nil {
		return fmt.Errorf("discover targets: %w", err)
	}

	// Tabs that were open before we connected.
	targets, err := proto.TargetGetTargets{}.Call(b.rod)
	if err != nil {
		return fmt.Errorf("list targets: %w", err)
	}
	for _, t := range targets.TargetInfos {
		if t.Type == proto.TargetTargetInfoTypePage {
			b.hub.Navigated(tabs.ID(t.TargetID), t.URL)
			go b.attach(tabs.ID(t.TargetID))
		}
	}
	return nil
}

// attach subscribes to load events of one tab. It is safe to call twice.
func (b *Browser) attach(id tabs.ID) {
	b.mu.Lock()
	if _, ok := b.pages[id]; ok {
		b.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(b.ctx)
	a := &attached{cancel: cancel}
	b.pages[id] = a
	b.mu.Unlock()

	p, err := b.rod.PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		b.log.Debug("attach tab failed", "tab", id, "err", err)
		b.forget(id)
		return
	}
	b.mu.Lock()
	a.page = p
	b.mu.Unlock()

	wait := p.Context(ctx).EachEvent(func(*proto.PageLoadEventFired) {
		info, err := p.Info()
		if err != nil {
			b.log.Debug("tab info failed", "tab", id, "err", err)
			return
		}
		b.hub.Complete(id, info.URL)
	})
	wait()
}

func (b *Browser) forget(id tabs.ID) *attached {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.pages[id]
	if !ok {
		return nil
	}
	delete(b.pages, id)
	a.cancel()
	return a
}

func (b *Browser) detach(id tabs.ID) {
	if b.forget(id) == nil {
		return
	}
	b.hub.Close(id)
}

// Open creates a tab for url.
func (b *Browser) Open(ctx context.Context, url string) (tabs.ID, error) {
	p, err := b.rod.Context(ctx).Page(proto.TargetCreateTarget{URL: url})
	if err != nil {
		return "", fmt.Errorf("open %s: %w", url, err)
	}
	id := tabs.ID(p.TargetID)
	go b.attach(id)
	return id, nil
}

// Page returns the DOM adapter for an open tab.
func (b *Browser) Page(id tabs.ID) (dom.Page, error) {
	b.mu.Lock()
	a, ok := b.pages[id]
	b.mu.Unlock()
	if ok && a.page != nil {
		return newPage(a.page, b.cfg.Automation.ScreenshotDir), nil
	}
	p, err := b.rod.PageFromTarget(proto.TargetTargetID(id))
	if err != nil {
		return nil, fmt.Errorf("page %s: %w", id, err)
	}
	return newPage(p, b.cfg.Automation.ScreenshotDir), nil
}

// LoadCookies restores a session saved by SaveCookies. A missing file is not an error.
func (b *Browser) LoadCookies(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	var cookies []*proto.NetworkCookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return fmt.Errorf("decode cookies: %w", err)
	}
	if err := b.rod.SetCookies(proto.CookiesToParams(cookies)); err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	b.log.Info("cookies restored", "count", len(cookies))
	return nil
}

func (b *Browser) SaveCookies(path string) error {
	cookies, err := b.rod.Timeout(20 * time.Second).GetCookies()
	if err != nil {
		return fmt.Errorf("get cookies: %w", err)
	}
	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Close disconnects. A launched Chrome exits with it; a remote one keeps running.
func (b *Browser) Close() {
	if b.cfg.Browser.ControlURL == "" {
		_ = b.rod.Close()
	}
	b.cancel()
}
