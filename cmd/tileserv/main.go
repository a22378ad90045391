package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tileforge/tileserv/internal/serving"
	"github.com/tileforge/tileserv/pkg/config"
	"github.com/tileforge/tileserv/pkg/logger"
	"github.com/tileforge/tileserv/pkg/observability"
	"github.com/tileforge/tileserv/pkg/style"
	"github.com/tileforge/tileserv/pkg/tms"
)

var version = "0.1.0"

// trashDrainInterval is how often retired descriptors are released after a
// reload. One interval is long enough for any in-flight request to finish.
const trashDrainInterval = 30 * time.Second

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "tileserv",
		Short: "Tileserv - pooled resource core for a WMS/WMTS tile server",
		Long: `Tileserv manages the shared resources of a map tile server: per-worker
HTTP clients and reprojection contexts, shared storage backend contexts,
a bounded slab-index cache and hot-reloadable descriptor registries.`,
	}

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Tileserv v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	var configFile string

	validateCmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configFile)
			if err != nil {
				return err
			}
			if err := validateBooks(cfg); err != nil {
				return err
			}
			fmt.Printf("configuration OK: %d workers, cache %d entries / %ds validity\n",
				cfg.Server.Workers, cfg.Cache.Size, cfg.Cache.ValiditySeconds)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&configFile, "config", "c", "tileserv.yaml", "configuration file")
	root.AddCommand(validateCmd)

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the tile-serving core",
		Long: `Run the tile-serving core with the given configuration. Exposes
/metrics and /healthz on the admin listener. SIGHUP reloads the descriptor
books without dropping in-flight requests.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(configFile)
		},
	}
	serveCmd.Flags().StringVarP(&configFile, "config", "c", "tileserv.yaml", "configuration file")
	root.AddCommand(serveCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// validateBooks parses the configured descriptor directories so broken
// descriptors are caught before a deploy rather than skipped at reload.
func validateBooks(cfg *config.Config) error {
	quiet := zap.NewNop()

	if dir := cfg.Books.TMSDirectory; dir != "" {
		book, err := tms.LoadDirectory(dir, quiet)
		if err != nil {
			return err
		}
		fmt.Printf("tile matrix sets: %d descriptors in %s\n", len(book), dir)
	}
	if dir := cfg.Books.StyleDirectory; dir != "" {
		book, err := style.LoadDirectory(dir, cfg.Books.Inspire, quiet)
		if err != nil {
			return err
		}
		fmt.Printf("styles: %d descriptors in %s\n", len(book), dir)
	}
	return nil
}

func serve(configFile string) error {
	cfg, err := config.LoadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Logging.Level,
		Encoding:    cfg.Logging.Encoding,
		Development: cfg.Logging.Development,
	}); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()

	if err := observability.Init(cfg.Observability); err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}

	services, err := serving.New(cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize serving resources: %w", err)
	}

	if err := services.LoadBooks(); err != nil {
		return fmt.Errorf("failed to load descriptor books: %w", err)
	}

	log.Info("tileserv starting",
		zap.String("version", version),
		zap.Int("workers", cfg.Server.Workers),
		zap.String("admin_addr", cfg.Server.AdminAddr))

	admin := adminServer(cfg, services)
	go func() {
		if err := admin.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("admin listener failed", zap.Error(err))
		}
	}()

	drain := time.NewTicker(trashDrainInterval)
	defer drain.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		select {
		case <-drain.C:
			services.DrainTrash()

		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				log.Info("reload requested")
				if err := services.LoadBooks(); err != nil {
					log.Error("reload failed, keeping previous books", zap.Error(err))
				}
				continue
			}

			log.Info("shutting down", zap.String("signal", sig.String()))

			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()

			if err := admin.Shutdown(ctx); err != nil {
				log.Warn("admin listener shutdown", zap.Error(err))
			}
			if err := observability.Shutdown(ctx); err != nil {
				log.Warn("tracing shutdown", zap.Error(err))
			}
			if err := services.Close(); err != nil {
				return fmt.Errorf("failed to release serving resources: %w", err)
			}

			log.Info("tileserv stopped")
			return nil
		}
	}
}

// adminServer exposes the operational endpoints on the admin listener.
func adminServer(cfg *config.Config, services *serving.Services) *http.Server {
	mux := http.NewServeMux()

	if cfg.Observability.EnableMetrics {
		mux.Handle("/metrics", promhttp.Handler())
	}

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		stats := services.CacheStats()
		fmt.Fprintf(w, `{"status":"ok","cache":{"hits":%d,"misses":%d,"evictions":%d,"expirations":%d}}`+"\n",
			stats.Hits, stats.Misses, stats.Evictions, stats.Expirations)
	})

	return &http.Server{
		Addr:              cfg.Server.AdminAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}
