package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	supportlog "github.com/stellar/go/support/log"

	"github.com/stellar/ledgerclose/internal/closemgr"
	"github.com/stellar/ledgerclose/internal/config"
	"github.com/stellar/ledgerclose/internal/floodgate"
	"github.com/stellar/ledgerclose/internal/metrics"
	"github.com/stellar/ledgerclose/internal/store"
)

// sequenceIDGenerator is the default IDGenerator: an in-process counter
// seeded from nothing better than 0, suitable for a single node with no
// consensus-assigned ID allocator wired in (out of scope per spec's
// consensus Non-goal).
type sequenceIDGenerator struct {
	next uint64
}

func (g *sequenceIDGenerator) NextOfferID() uint64 {
	g.next++
	return g.next
}

func run(cfg config.Config) error {
	logger := supportlog.New()
	logger.SetLevel(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	s, err := store.Open(cfg.SQLiteDBPath)
	if err != nil {
		return fmt.Errorf("could not open store: %w", err)
	}
	defer s.Close()

	registry := prometheus.NewRegistry()
	m := metrics.New(registry, cfg.MetricsNamespace)
	gate := floodgate.New(registry, cfg.MetricsNamespace, logger, nil)
	mgr := closemgr.New(s, gate, m, logger, &sequenceIDGenerator{})
	mgr.AddCloseListener(closemgr.CloseListenerFunc(func(event closemgr.CloseEvent) error {
		logger.WithField("ledger_seq", event.LedgerSeq).Info("ledger closed")
		return nil
	}))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", cfg.MetricsAddr).Info("serving metrics")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sigCh:
		logger.Info("shutting down")
		return server.Close()
	}
}

func main() {
	var cfg config.Config
	opts := config.Options(&cfg)

	cmd := &cobra.Command{
		Use:   "ledgerclose",
		Short: "Open the ledger store, wire the close manager, and serve its Prometheus metrics",
		Run: func(_ *cobra.Command, _ []string) {
			opts.Require()
			if err := opts.SetValues(); err != nil {
				fmt.Fprintf(os.Stderr, "failed to set values: %v\n", err)
				os.Exit(1)
			}
			if err := run(cfg); err != nil {
				fmt.Fprintf(os.Stderr, "could not run: %v\n", err)
				os.Exit(1)
			}
		},
	}

	if err := opts.Init(cmd); err != nil {
		fmt.Fprintf(os.Stderr, "could not parse config options: %v\n", err)
		os.Exit(1)
	}

	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "could not run: %v\n", err)
		os.Exit(1)
	}
}
