package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/use-agent/mailscout/api"
	"github.com/use-agent/mailscout/api/handler"
	"github.com/use-agent/mailscout/browser"
	"github.com/use-agent/mailscout/cache"
	"github.com/use-agent/mailscout/config"
	"github.com/use-agent/mailscout/errlog"
	"github.com/use-agent/mailscout/finder"
)

// Args are the command line flags. Environment variables (MAILSCOUT_*)
// provide everything else.
type Args struct {
	Domains  []string `arg:"positional" help:"domains to look up, e.g. abc.example.com"`
	Serve    bool     `arg:"--serve" help:"start the HTTP API instead of running lookups"`
	Output   string   `arg:"-o,--output" help:"also append results to this file"`
	ErrorLog string   `arg:"--error-log" help:"error log path (overrides MAILSCOUT_ERROR_LOG)"`
	Verbose  bool     `arg:"-v,--verbose" help:"enable debug logging"`

	Timeout time.Duration `arg:"--timeout" help:"bound each domain lookup, e.g. 5m (default: only page loads are bounded)"`
}

func (Args) Description() string {
	return "mailscout finds contact email addresses on an organization's website"
}

func main() {
	var args Args
	p := arg.MustParse(&args)
	if !args.Serve && len(args.Domains) == 0 {
		p.Fail("give at least one domain or --serve")
	}

	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()
	if args.ErrorLog != "" {
		cfg.Finder.ErrorLogPath = args.ErrorLog
	}
	if args.Verbose {
		cfg.Log.Level = "debug"
	}

	// ── 2. Initialise structured logging ────────────────────────────
	// Lookup results go to stdout in CLI mode, so logs move to stderr.
	logOut := io.Writer(os.Stderr)
	if args.Serve {
		logOut = os.Stdout
	}
	initLogger(cfg.Log, logOut)

	// ── 3. Wire the finder ──────────────────────────────────────────
	factory := browser.NewFactory(cfg.Browser, cfg.Finder.LoadTimeout)
	fd := finder.New(factory, errlog.New(cfg.Finder.ErrorLogPath))

	if args.Serve {
		serve(cfg, fd, factory)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	out := io.Writer(os.Stdout)
	if args.Output != "" {
		f, err := os.OpenFile(args.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			slog.Error("failed to open output file", "path", args.Output, "error", err)
			os.Exit(1)
		}
		defer f.Close()
		out = io.MultiWriter(os.Stdout, f)
	}

	if err := runLookups(ctx, fd, args.Domains, args.Timeout, out); err != nil {
		slog.Error("some lookups failed", "error", err)
		stop()
		os.Exit(1)
	}
}

// emailFinder is the part of *finder.Finder the CLI needs.
type emailFinder interface {
	FindEmails(ctx context.Context, domain string) (string, error)
}

// runLookups looks up each domain in order and writes "domain\temails"
// lines to out. Every domain is attempted; the returned error joins the
// failures. A timeout <= 0 leaves lookups bounded only by the page load
// timeout.
func runLookups(ctx context.Context, fd emailFinder, domains []string, timeout time.Duration, out io.Writer) error {
	var errs []error
	for _, domain := range domains {
		if ctx.Err() != nil {
			errs = append(errs, fmt.Errorf("%s: %w", domain, ctx.Err()))
			break
		}

		lookupCtx, cancel := lookupContext(ctx, timeout)
		result, err := fd.FindEmails(lookupCtx, domain)
		cancel()

		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", domain, err))
		}
		if _, werr := fmt.Fprintf(out, "%s\t%s\n", domain, result); werr != nil {
			return fmt.Errorf("write result: %w", werr)
		}
	}
	return errors.Join(errs...)
}

func lookupContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// serve runs the HTTP API until SIGINT/SIGTERM.
func serve(cfg *config.Config, fd *finder.Finder, factory *browser.Factory) {
	slog.Info("mailscout starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxLookups", cfg.Finder.MaxConcurrentLookups,
	)

	cc := cache.New(cfg.Cache.MaxEntries)
	lim := handler.Limit(fd, cfg.Finder.MaxConcurrentLookups, cfg.Finder.LookupTimeout)

	startTime := time.Now()
	router := api.NewRouter(lim, factory, cfg, cc, startTime)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	// ── Graceful shutdown ───────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutdown signal received", "signal", sig.String())

	// Give in-flight requests 5 seconds to complete.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	slog.Info("mailscout stopped", "openBrowsers", factory.Active())
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig, w io.Writer) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if cfg.Format == "text" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	slog.SetDefault(slog.New(h))
}
