// Command jobcored is the array-job subsystem's server entrypoint: it
// loads tunables, wires the job table, attribute definitions, Prometheus
// collector, and credential renewer together, then serves /metrics until
// interrupted — the same cobra-entrypoint-plus-signal-driven-shutdown
// shape ternarybob-quaero's `serve` command uses.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/hpcflow/jobcore/internal/config"
	"github.com/hpcflow/jobcore/internal/metrics"
	"github.com/hpcflow/jobcore/internal/store"
	"github.com/hpcflow/jobcore/internal/workqueue"
	"github.com/hpcflow/jobcore/pkg/cred"
	"github.com/hpcflow/jobcore/pkg/job"
	"github.com/hpcflow/jobcore/pkg/svrattr"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "jobcored",
		Short: "Array-job subsystem server",
		RunE:  runServe,
	}
	root.Flags().StringVar(&configPath, "config", "", "path to a YAML tunables file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	table := job.NewMemTable()
	attrs := job.NewAttrTable(cfg.MaxArraySize())

	bootCtx := context.Background()
	jobStore, err := newStore(bootCtx, cfg.Store, attrs)
	if err != nil {
		return fmt.Errorf("wiring job store: %w", err)
	}
	if jobStore != nil {
		if err := loadJobs(bootCtx, jobStore, table); err != nil {
			return fmt.Errorf("loading persisted jobs: %w", err)
		}
		logger.Info("recovered jobs from store", "table", cfg.Store.TableName)
	}

	renewer := cred.New(cfg.CredTunables(), table, meteredSender{collector: collector}, logger, nil)
	if err := renewer.Start(); err != nil {
		return fmt.Errorf("starting credential renewer: %w", err)
	}
	defer renewer.Stop()

	queue := workqueue.New()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go queue.Run(ctx)

	logger.Info("jobcored starting", "metrics_addr", cfg.Server.MetricsAddr)
	errCh := make(chan error, 1)
	go func() {
		errCh <- metrics.Serve(cfg.Server.MetricsAddr, registry)
	}()

	select {
	case <-ctx.Done():
		logger.Info("jobcored shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}

// meteredSender is the default cred.Sender until a real GSS/MUNGE
// transport is wired in (sending credentials is out of scope, spec.md
// §1) — it records the renewal outcome against collector so the sweep is
// observable even with a no-op transport.
type meteredSender struct {
	collector *metrics.Collector
}

func (s meteredSender) SendCred(*job.Job) error {
	s.collector.RecordCredRenewed()
	return nil
}

// newStore builds a DynamoDB-backed store.Store from cfg, or returns nil
// if no table name is configured — runServe then falls back to the
// in-memory job.MemTable with no recovery across restarts.
func newStore(ctx context.Context, cfg config.StoreConfig, attrs *svrattr.Table) (*store.Store, error) {
	if cfg.TableName == "" {
		return nil, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg)
	return store.New(client, cfg.TableName, attrs), nil
}

// loadJobs replays every row in st into table, the recovery path spec.md
// §4.4 describes: array parents come back with a fresh ArrayInfo already
// rebuilt from array_indices_remaining by store.decodeRow.
func loadJobs(ctx context.Context, st *store.Store, table job.Table) error {
	jobs, err := st.All(ctx)
	if err != nil {
		return err
	}
	for _, j := range jobs {
		table.Put(j)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}
