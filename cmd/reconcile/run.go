package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Sternrassler/lookup-reconciler/internal/config"
	"github.com/Sternrassler/lookup-reconciler/internal/rows"
	"github.com/Sternrassler/lookup-reconciler/pkg/alert"
	"github.com/Sternrassler/lookup-reconciler/pkg/client"
	"github.com/Sternrassler/lookup-reconciler/pkg/logging"
	"github.com/Sternrassler/lookup-reconciler/pkg/pipeline"
	"github.com/Sternrassler/lookup-reconciler/pkg/reconciler"
	"github.com/Sternrassler/lookup-reconciler/pkg/record"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

func newRunCmd(a *app) *cobra.Command {
	var sets []string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Enrich entries with a module",
		Example: `  reconcile run --module companies-house-individuals-officers \
    --credential primary:$CH_KEY --set individualName="Full Name" \
    --input people.csv --output officers.json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := config.ParseSet(sets)
			if err != nil {
				return err
			}
			return runReconcile(cmd.Context(), a.config, overrides, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	flags := cmd.Flags()
	flags.String(config.KeyModule, "", "module ID (see 'reconcile modules')")
	flags.String(config.KeyInput, "-", "input CSV file, - for stdin")
	flags.String(config.KeyOutput, "-", "output file, - for stdout")
	flags.String(config.KeyFormat, "json", "output format: json, csv")
	flags.StringArray("credential", nil, "API credential as name:key[:secret] or key (repeatable)")
	flags.StringArrayVar(&sets, "set", nil, "module option as name=value (repeatable)")
	flags.Int(config.KeyWorkers, 4, "entries processed concurrently")
	flags.String(config.KeyBaseURL, "", "override the module's API root")
	flags.String(config.KeyUserAgent, client.DefaultUserAgent, "User-Agent header")
	flags.Duration(config.KeyTimeout, 30*time.Second, "per-request timeout")
	flags.Float64(config.KeyRequestsPerSecond, 0, "pace requests to this rate (0 disables)")
	flags.Int(config.KeyBurst, 1, "pacer burst size")
	flags.String(config.KeyRedisAddr, "", "Redis address for the response cache and quota tracking")
	flags.Duration(config.KeyCacheTTL, 24*time.Hour, "response cache TTL when Redis is configured (0 disables)")
	flags.Bool(config.KeyTrackQuota, false, "track per-credential quota in Redis")
	flags.String(config.KeyMetricsAddr, "", "serve Prometheus metrics on this address")

	bindFlags(a.viper, flags,
		config.KeyModule, config.KeyInput, config.KeyOutput, config.KeyFormat,
		config.KeyWorkers, config.KeyBaseURL, config.KeyUserAgent, config.KeyTimeout,
		config.KeyRequestsPerSecond, config.KeyBurst, config.KeyRedisAddr,
		config.KeyCacheTTL, config.KeyTrackQuota, config.KeyMetricsAddr,
	)
	if err := a.viper.BindPFlag(config.KeyCredentials, flags.Lookup("credential")); err != nil {
		panic(fmt.Sprintf("failed to bind credential flag: %v", err))
	}

	return cmd
}

func runReconcile(ctx context.Context, cfg *config.Config, overrides map[string]string, stdin io.Reader, stdout, stderr io.Writer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := logging.NewLogger("reconcile")

	settings := reconciler.Settings{}
	for k, v := range cfg.Settings {
		settings[k] = v
	}
	for k, v := range overrides {
		settings[k] = v
	}

	module, err := reconciler.Build(cfg.Module, settings)
	if err != nil {
		return err
	}

	entries, err := readEntries(cfg.Input, stdin)
	if err != nil {
		return err
	}

	clientCfg := client.DefaultConfig(cfg.Module, len(cfg.Credentials))
	clientCfg.UserAgent = cfg.UserAgent
	clientCfg.Timeout = cfg.Timeout
	clientCfg.RequestsPerSecond = cfg.RequestsPerSecond
	clientCfg.Burst = cfg.Burst

	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()

		if err := redisClient.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("connect to redis at %s: %w", cfg.RedisAddr, err)
		}
		logger.Info().Str("addr", cfg.RedisAddr).Msg("Connected to Redis")

		clientCfg.Redis = redisClient
		clientCfg.CacheTTL = cfg.CacheTTL
		clientCfg.TrackQuota = cfg.TrackQuota
	}

	if cfg.MetricsAddr != "" {
		endpoint, err := startMetrics(cfg.MetricsAddr, logger)
		if err != nil {
			return err
		}
		defer endpoint.Stop()
	}

	collector := alert.NewCollector()
	p, err := pipeline.New(module, pipeline.Config{
		Credentials: cfg.Credentials,
		Alerts:      alert.Multi{alert.NewLogSink(logging.NewLogger("alerts")), collector},
		Client:      clientCfg,
		Workers:     cfg.Workers,
		BaseURL:     cfg.BaseURL,
	})
	if err != nil {
		return err
	}

	results, err := p.Run(ctx, entries)
	if err != nil {
		return err
	}

	if err := writeRows(cfg.Output, cfg.Format, p.Schema(), results, stdout); err != nil {
		return err
	}

	fmt.Fprintf(stderr, "%d entries, %d rows, %d errors, %d warnings\n",
		len(entries), len(results),
		collector.Count(alert.ImportanceError), collector.Count(alert.ImportanceWarning))
	return nil
}

func readEntries(path string, stdin io.Reader) ([]record.Entry, error) {
	if path == "" || path == "-" {
		return rows.ReadCSV(stdin)
	}
	return rows.ReadCSVFile(path)
}

func writeRows(path string, format rows.Format, schema record.Schema, results []record.Row, stdout io.Writer) error {
	if path == "" || path == "-" {
		return rows.Write(stdout, format, schema, results)
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := rows.Write(file, format, schema, results); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}
