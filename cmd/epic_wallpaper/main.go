package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/italolelis/epic_wallpaper/internal/cache"
	"github.com/italolelis/epic_wallpaper/internal/config"
	"github.com/italolelis/epic_wallpaper/internal/downloader"
	"github.com/italolelis/epic_wallpaper/internal/epic"
	"github.com/italolelis/epic_wallpaper/internal/http/rest"
	"github.com/italolelis/epic_wallpaper/internal/logctx"
	"github.com/italolelis/epic_wallpaper/internal/notifier"
	"github.com/italolelis/epic_wallpaper/internal/presenter"
	"github.com/italolelis/epic_wallpaper/internal/retry"
	"github.com/italolelis/epic_wallpaper/internal/telemetry"
	"github.com/italolelis/epic_wallpaper/internal/wallpaper"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName = "epic_wallpaper"
	version     = "1.0.0"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, stderr: os.Stderr, newSetter: wallpaper.New}

	if err := a.command().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app holds what the command needs besides flags, so tests can swap the
// desktop for a fake.
type app struct {
	cfg       *config.Config
	stderr    io.Writer
	newSetter func(command string) (wallpaper.Setter, error)
}

func (a *app) command() *cobra.Command {
	cfg := a.cfg

	cmd := &cobra.Command{
		Use:   serviceName,
		Short: "Animate one day of NASA EPIC Earth images as the desktop background",
		Long: "Downloads every image NASA's EPIC camera took on a day into a local cache, " +
			"in capture order, then cycles them as the desktop background until interrupted.",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd.Context())
		},
	}

	cmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := cmd.Flags()
	flags.StringVar(&cfg.Date, "date", cfg.Date, "day to animate (YYYY-MM-DD)")
	flags.DurationVar(&cfg.FrameInterval, "interval", cfg.FrameInterval, "time each frame stays on screen")
	flags.StringVar(&cfg.CacheDir, "cache-dir", cfg.CacheDir, "directory holding the downloaded frames")
	flags.StringVar(&cfg.Collection, "collection", cfg.Collection, "EPIC collection: natural, enhanced, aerosol or cloud")
	flags.StringVar(&cfg.ImageFormat, "format", cfg.ImageFormat, "archive image format: jpg or png")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level: DEBUG, INFO, WARN or ERROR")
	flags.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: json or text")
	flags.StringVar(&cfg.Web.BindAddress, "metrics-addr", cfg.Web.BindAddress, "serve status and metrics on this address, e.g. :9090")
	flags.BoolVar(&cfg.FetchOnly, "fetch-only", cfg.FetchOnly, "populate the cache and exit without changing the background")
	flags.BoolVar(&cfg.Progress, "progress", cfg.Progress, "draw a download progress bar on stderr")

	return cmd
}

func (a *app) run(ctx context.Context) error {
	cfg := a.cfg

	date, err := config.ParseDate(cfg.Date)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	collection, err := epic.ParseCollection(cfg.Collection)
	if err != nil {
		return err
	}

	format, err := epic.ParseFormat(cfg.ImageFormat)
	if err != nil {
		return err
	}

	logger, err := logctx.NewLogger(a.stderr, cfg.SlogLevel(), cfg.LogFormat)
	if err != nil {
		return err
	}

	ctx = logctx.WithLogger(ctx, logger)

	logger.Info("epic wallpaper starting...",
		"date", cfg.Date,
		"collection", collection,
		"log_level", cfg.LogLevel,
	)

	tel, err := telemetry.New(ctx, telemetry.Config{
		Enabled:        cfg.TelemetryEnabled,
		ServiceName:    serviceName,
		ServiceVersion: version,
		OTLPEndpoint:   cfg.OTLPMetricsEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := tel.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown telemetry", "err", err)
		}
	}()

	// =========================================================================
	// Start Wallpaper Setter
	var setter wallpaper.Setter

	if !cfg.FetchOnly {
		setter, err = a.newSetter(cfg.WallpaperCommand)
		if err != nil {
			return fmt.Errorf("failed to build wallpaper setter: %w", err)
		}
	}

	// =========================================================================
	// Start Downloader
	policy := retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		Timeout:     cfg.RequestTimeout,
		NewBackOff:  retry.Exponential(cfg.BackoffInitial),
	}

	client := epic.NewClient(epic.Options{
		APIURL:     cfg.EPICAPIURL,
		ArchiveURL: cfg.EPICArchiveURL,
		Collection: collection,
		Format:     format,
		Policy:     &policy,
		Logger:     logger,
		Telemetry:  tel,
		UserAgent:  serviceName + "/" + version,
	})

	dir, err := cache.Open(cfg.CacheDir, format.Ext(), epic.Extensions()...)
	if err != nil {
		return err
	}

	var progress io.Writer
	if cfg.Progress {
		progress = a.stderr
	}

	dl := downloader.NewDownloader(client, dir, downloader.Options{
		Logger:     logger,
		Telemetry:  tel,
		Collection: string(collection),
		Progress:   progress,
	})

	pres := presenter.New(setter, presenter.Options{
		Interval:  cfg.FrameInterval,
		Logger:    logger,
		Telemetry: tel,
	})

	// =========================================================================
	// Start Notification
	var notif notifier.Notifier = notifier.Nop{}
	if cfg.DiscordWebhookURL != "" {
		notif = notifier.NewDiscordNotifier(cfg.DiscordWebhookURL)
	}

	status := rest.NewStatusHandler(cfg.Date, string(collection), dir.Path(), pres, tel)

	p := &pipeline{
		date:       date,
		fetchOnly:  cfg.FetchOnly,
		downloader: dl,
		presenter:  pres,
		status:     status,
		notifier:   notif,
		logger:     logger,
	}

	// The status server lives as long as the pipeline.
	runCtx, stop := context.WithCancel(ctx)
	defer stop()

	g, gctx := errgroup.WithContext(runCtx)

	if cfg.Web.BindAddress != "" {
		server := setupServer(gctx, status, cfg)

		g.Go(func() error {
			logger.Info("Initializing status server", "host", cfg.Web.BindAddress)

			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server error: %w", err)
			}

			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			// Give outstanding requests a deadline for completion.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Web.ShutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logger.Error("failed to gracefully shutdown the server", "err", err)

				if err = server.Close(); err != nil {
					return fmt.Errorf("could not stop server gracefully: %w", err)
				}
			}

			return nil
		})
	}

	g.Go(func() error {
		defer stop()

		return p.run(gctx)
	})

	return g.Wait()
}

// pipeline is fetch, then present.
type pipeline struct {
	date       time.Time
	fetchOnly  bool
	downloader *downloader.Downloader
	presenter  *presenter.Presenter
	status     *rest.StatusHandler
	notifier   notifier.Notifier
	logger     *slog.Logger
}

// run returns nil when there is nothing to animate or when interrupted; those
// are normal ends of the program.
func (p *pipeline) run(ctx context.Context) error {
	day := p.date.Format(config.DateLayout)

	frames, err := p.downloader.Fetch(ctx, p.date)
	if err != nil {
		p.status.SetPhase(rest.PhaseIdle)

		if ctx.Err() != nil {
			p.logger.Info("fetch interrupted")

			return nil
		}

		var fetchErr *downloader.FetchError

		switch {
		case errors.Is(err, downloader.ErrEmptyDay):
			p.notify(ctx, "⚠️ No EPIC images for "+day)

			return nil
		case errors.As(err, &fetchErr), errors.Is(err, downloader.ErrNoFrames):
			p.logger.Error("nothing to animate", "date", day, "err", err)
			p.notify(ctx, "❌ EPIC download failed for "+day+": "+err.Error())

			return nil
		}

		return fmt.Errorf("fetch failed: %w", err)
	}

	p.status.SetFrames(frames)
	p.notify(ctx, fmt.Sprintf("✅ Cached %d EPIC frames for %s", len(frames), day))

	if p.fetchOnly {
		p.status.SetPhase(rest.PhaseIdle)
		p.logger.Info("frames cached, not presenting", "frames", len(frames))

		return nil
	}

	p.status.SetPhase(rest.PhasePresenting)

	err = p.presenter.Run(ctx, cache.Paths(frames))

	p.status.SetPhase(rest.PhaseIdle)

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		p.logger.Info("presentation stopped")

		return nil
	}

	return err
}

func (p *pipeline) notify(ctx context.Context, content string) {
	if err := p.notifier.Notify(ctx, content); err != nil {
		p.logger.Error("failed to send notification", "err", err)
	}
}

// setupServer prepares the handlers and services to create the http rest server.
func setupServer(ctx context.Context, status *rest.StatusHandler, cfg *config.Config) *http.Server {
	return &http.Server{
		Addr:         cfg.Web.BindAddress,
		ReadTimeout:  cfg.Web.ReadTimeout,
		WriteTimeout: cfg.Web.WriteTimeout,
		IdleTimeout:  cfg.Web.IdleTimeout,
		Handler:      status.Routes(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}
}
