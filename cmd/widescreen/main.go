// Package main runs the widescreen engine against chat pages in a
// Playwright-driven browser, or the settings popup against a running engine.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/entrhq/widescreen/pkg/browser"
	"github.com/entrhq/widescreen/pkg/config"
	"github.com/entrhq/widescreen/pkg/content"
	"github.com/entrhq/widescreen/pkg/logging"
	"github.com/entrhq/widescreen/pkg/notify"
	"github.com/entrhq/widescreen/pkg/popup"
	"github.com/entrhq/widescreen/pkg/relay"
	"github.com/entrhq/widescreen/pkg/site"
)

const version = "0.1.0"

// Flags holds the command line.
type Flags struct {
	ConfigPath  string
	URL         string
	Headless    bool
	Listen      string
	Popup       bool
	Debug       bool
	ShowVersion bool
}

func main() {
	flags := parseFlags()

	if flags.ShowVersion {
		fmt.Printf("widescreen v%s\n", version)
		return
	}

	cfg, err := loadConfig(flags)
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	if flags.Popup {
		err = runPopup(ctx, cfg)
	} else {
		err = run(ctx, cfg)
	}
	if err != nil {
		cancel()
		log.Fatalf("Application error: %v", err)
	}
}

func parseFlags() *Flags {
	f := &Flags{}

	flag.StringVar(&f.ConfigPath, "config", os.Getenv("WIDESCREEN_CONFIG"), "Path to the YAML configuration file (or set WIDESCREEN_CONFIG)")
	flag.StringVar(&f.URL, "url", "", "Chat page to open (overrides start_url)")
	flag.BoolVar(&f.Headless, "headless", false, "Run the browser without a window")
	flag.StringVar(&f.Listen, "listen", "", "Serve the relay on this address, e.g. 127.0.0.1:7341")
	flag.BoolVar(&f.Popup, "popup", false, "Open the settings popup of a running engine")
	flag.BoolVar(&f.Debug, "debug", false, "Log at debug level")
	flag.BoolVar(&f.ShowVersion, "version", false, "Show version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "widescreen - display modes for chat pages\n\n")
		fmt.Fprintf(os.Stderr, "Usage: widescreen [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  widescreen -listen 127.0.0.1:7341          # Start the engine with a relay\n")
		fmt.Fprintf(os.Stderr, "  widescreen -popup -listen 127.0.0.1:7341   # Open the popup against it\n")
		fmt.Fprintf(os.Stderr, "  widescreen -url https://poe.com\n")
	}

	flag.Parse()
	return f
}

func loadConfig(f *Flags) (*config.AppConfig, error) {
	cfg, err := config.LoadAppConfig(f.ConfigPath)
	if err != nil {
		return nil, err
	}
	if f.URL != "" {
		cfg.StartURL = f.URL
	}
	if f.Headless {
		cfg.Browser.Headless = true
	}
	if f.Listen != "" {
		cfg.Relay.Listen = f.Listen
	}
	if f.Debug {
		cfg.Logging.Level = "debug"
	}
	if f.Popup && cfg.Relay.Listen == "" {
		return nil, fmt.Errorf("the popup needs the relay address of a running engine (use -listen)")
	}
	if f.Popup && cfg.Store.Driver == config.DriverMemory {
		return nil, fmt.Errorf("the popup cannot share a memory store with the engine")
	}
	return cfg, cfg.Validate()
}

func newLogger(cfg *config.AppConfig, component string) *logging.Logger {
	if cfg.Logging.Dir != "" {
		logging.SetLogDirectory(cfg.Logging.Dir)
	}
	logger, err := logging.NewLogger(component)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}
	logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	return logger
}

func openSettings(cfg *config.AppConfig) (*config.Settings, func(), error) {
	store, err := cfg.OpenStore()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open settings store: %w", err)
	}
	closeStore := func() {}
	if c, ok := store.(io.Closer); ok {
		closeStore = func() { _ = c.Close() }
	}
	return config.NewSettings(store, cfg.KeyPrefix), closeStore, nil
}

// run starts the background context and the browser, then opens the start
// page. Every chat page gets its own tab engine.
func run(ctx context.Context, cfg *config.AppConfig) error {
	logger := newLogger(cfg, "engine")
	defer logger.Close()

	settings, closeStore, err := openSettings(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := site.DefaultRegistry()
	if cfg.SitesFile != "" {
		if registry, err = site.LoadRegistry(cfg.SitesFile); err != nil {
			return err
		}
	}

	hub := relay.NewHub(0, logger.With("relay"))

	session, err := browser.Launch(ctx, registry, browser.Options{
		Headless: cfg.Browser.Headless,
		Width:    cfg.Browser.Width,
		Height:   cfg.Browser.Height,
		Timeout:  cfg.Timing.ProbeDeadline,
		Logger:   logger.With("browser"),
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warnf("%v", err)
		}
	}()

	var desktop relay.DesktopNotifier
	if cfg.DesktopNotifications {
		desktop = notify.NewDesktop(logger.With("notify"))
	}
	background, err := relay.NewBackground(hub, session, relay.BackgroundOptions{
		StartURL:   cfg.StartURL,
		AboutDelay: cfg.Timing.AboutDelay,
		Notifier:   desktop,
		Logger:     logger.With("background"),
	})
	if err != nil {
		return err
	}
	defer background.Close()
	go background.Run(ctx)

	session.OnPage(func(ctx context.Context, page *browser.Page) (browser.Engine, error) {
		return startTab(ctx, cfg, settings, hub, background, page, logger)
	})

	if cfg.Relay.Listen != "" {
		server := &http.Server{
			Addr:              cfg.Relay.Listen,
			Handler:           relayMux(hub, logger),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("relay server failed: %v", err)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = server.Shutdown(shutdownCtx)
		}()
		logger.Infof("relay listening on %s", cfg.Relay.Listen)
	}

	if err := background.Installed(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.Infof("shutting down")
	return nil
}

func relayMux(hub *relay.Hub, logger *logging.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/relay", relay.NewWSServer(hub, logger.With("ws")))
	return mux
}

// tabEngine is the engine of one page load.
type tabEngine struct {
	tab        *content.Tab
	ep         *relay.Endpoint
	background *relay.Background
}

func (e *tabEngine) Focus() { e.background.TabActivated(e.tab.ID()) }

func (e *tabEngine) Close() {
	e.ep.Close()
	e.tab.Close()
}

// startTab runs the engine on one page load. A fresh page becomes the active
// tab when no other tab is.
func startTab(ctx context.Context, cfg *config.AppConfig, settings *config.Settings, hub *relay.Hub, background *relay.Background, page *browser.Page, logger *logging.Logger) (browser.Engine, error) {
	tab := content.NewTab(settings, page.Site(), page, page, page.Feed(), content.Options{
		ID:     page.ID(),
		Timing: cfg.Timing,
		Logger: logger.With(page.ID()),
	})

	ep, err := hub.Register(page.ID(), relay.KindTab)
	if err != nil {
		tab.Close()
		return nil, err
	}
	if err := tab.Init(ctx); err != nil {
		ep.Close()
		tab.Close()
		return nil, err
	}

	go tab.Serve(ctx, ep)
	engine := &tabEngine{tab: tab, ep: ep, background: background}
	if hub.ActiveTab() == "" {
		engine.Focus()
	}
	return engine, nil
}

// runPopup opens the settings popup and relays its commands to the engine
// listening on cfg.Relay.Listen.
func runPopup(ctx context.Context, cfg *config.AppConfig) error {
	logger := newLogger(cfg, "popup")
	defer logger.Close()

	settings, closeStore, err := openSettings(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	id := fmt.Sprintf("popup-%d", os.Getpid())
	client, err := relay.DialWS(ctx, "ws://"+cfg.Relay.Listen+"/relay", id, relay.KindPopup, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	// replies are not expected; drain so the connection stays healthy
	go func() {
		for msg := range client.Messages() {
			logger.Debugf("popup received %s from %s", msg.Action, msg.From)
		}
	}()

	return popup.Run(ctx, settings, client, nil)
}
