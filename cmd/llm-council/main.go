package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"goa.design/clue/log"

	"github.com/johnayoung/llm-council/internal/httpapi"
	"github.com/johnayoung/llm-council/internal/settings"
	"github.com/johnayoung/llm-council/internal/storage"
)

// Version information set via ldflags at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		addrF        = flag.String("addr", ":8001", "Listen address")
		dataDirF     = flag.String("data-dir", "data/conversations", "Directory for conversation storage")
		settingsF    = flag.String("settings", "data/settings.yaml", "Path to the settings file")
		dbgF         = flag.Bool("debug", false, "Enable debug logs")
		showVersionF = flag.Bool("version", false, "Print version information and exit")
	)
	flag.Parse()

	if *showVersionF {
		fmt.Printf("llm-council %s (%s)\n", version, commit)
		return nil
	}

	// Setup logger: JSON in production, terminal format interactively.
	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.New(*dataDirF)
	if err != nil {
		return err
	}

	settingsStore, err := settings.Load(*settingsF)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:    *addrF,
		Handler: httpapi.New(store, settingsStore).Handler(),
		BaseContext: func(net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		log.Print(ctx, log.KV{K: "msg", V: "listening"}, log.KV{K: "addr", V: *addrF})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Print(ctx, log.KV{K: "msg", V: "shutting down"})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
