// Command fhircore-server is the entrypoint binary: a cobra root command
// with a `serve` subcommand (HTTP search/terminology API), an `lsp`
// subcommand (the SQL Language Server, stdio or TCP), and a `migrate`
// subcommand.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/octofhir/fhircore/internal/canonical"
	"github.com/octofhir/fhircore/internal/config"
	"github.com/octofhir/fhircore/internal/fhirmodel"
	"github.com/octofhir/fhircore/internal/fhirpath"
	"github.com/octofhir/fhircore/internal/httpapi"
	"github.com/octofhir/fhircore/internal/lsp"
	"github.com/octofhir/fhircore/internal/lsp/rpc"
	"github.com/octofhir/fhircore/internal/platform/db"
	"github.com/octofhir/fhircore/internal/search"
	"github.com/octofhir/fhircore/internal/storage"
	"github.com/octofhir/fhircore/internal/terminology"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fhircore-server",
		Short: "FHIR search, terminology and SQL language server core",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(lspCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the FHIR search/terminology HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func lspCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "lsp",
		Short: "Start the FHIR-aware SQL language server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLSP()
		},
	}
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx, "public")
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			var tables []string
			for _, rt := range search.CommonResourceTypes {
				tables = append(tables, storage.TableName(rt))
			}
			if err := migrator.EnsureResourceTables(ctx, tables); err != nil {
				return fmt.Errorf("resource table bootstrap failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	return cmd
}

func secondsToDuration(s int64) time.Duration {
	return time.Duration(s) * time.Second
}

func runServer() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	registry := search.NewRegistry(search.DefaultParamDefs(), fhirpath.NewValidator())
	cache := search.NewCache(cfg.SearchCacheCapacity).WithMaxAge(secondsToDuration(cfg.SearchCacheTTLSeconds))
	store := storage.NewPostgresStore(pool)

	termCache := terminology.NewCache(secondsToDuration(cfg.TerminologyCacheTTLSeconds))
	canonicalStore := canonical.New(store)
	termEngine := terminology.NewEngine(termCache, canonicalStore, nil)

	handler := httpapi.New(registry, cache, store, termEngine, 100)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())

	e.GET("/health", db.HealthHandler(pool))
	e.GET("/stats/search-cache", handler.Stats)

	fhirGroup := e.Group("/fhir")
	handler.RegisterRoutes(fhirGroup)

	addr := ":" + cfg.Port
	logger.Info().Str("addr", addr).Msg("starting FHIR search/terminology API")
	return e.Start(addr)
}

func runLSP() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	logger := newLogger(cfg.Env)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()

	provider := fhirmodel.NewStaticProvider()
	resolver := lsp.NewFHIRResolver(provider)
	tables := lsp.NewTableResolver()

	resourceTypeForTable := make(map[string]string)
	for _, rt := range provider.GetResourceTypes() {
		resourceTypeForTable[storage.TableName(rt)] = rt
	}
	schemaCache := lsp.NewSchemaCache(pool, resourceTypeForTable)
	if err := schemaCache.Refresh(ctx); err != nil {
		logger.Warn().Err(err).Msg("lsp: initial schema refresh failed, continuing with empty snapshot")
	}

	// Singleton background refresher: idempotent, swaps snapshots
	// atomically, and dies with the process.
	go func() {
		ticker := time.NewTicker(secondsToDuration(cfg.LSPSchemaRefreshSeconds))
		defer ticker.Stop()
		for range ticker.C {
			if err := schemaCache.Refresh(ctx); err != nil {
				logger.Warn().Err(err).Msg("lsp: periodic schema refresh failed")
			}
		}
	}()

	engine := lsp.NewCompletionEngine(schemaCache, resolver, tables)
	analyzer := lsp.NewAnalyzer(schemaCache, resolver, tables)

	if cfg.LSPTransport == "tcp" {
		return runLSPOverTCP(ctx, cfg.LSPListenAddr, logger, engine, analyzer, schemaCache)
	}

	conn := rpc.NewConn(os.Stdin, os.Stdout)
	server := lsp.NewServer(conn, logger, engine, analyzer, schemaCache)
	return server.Run(ctx)
}

func runLSPOverTCP(ctx context.Context, addr string, logger zerolog.Logger, engine *lsp.Engine, analyzer *lsp.Analyzer, schemaCache *lsp.SchemaCache) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("lsp: listen on %s: %w", addr, err)
	}
	defer ln.Close()
	logger.Info().Str("addr", addr).Msg("lsp: listening over tcp")

	for {
		c, err := ln.Accept()
		if err != nil {
			return err
		}
		go func() {
			defer c.Close()
			conn := rpc.NewConn(c, c)
			server := lsp.NewServer(conn, logger, engine, analyzer, schemaCache)
			if err := server.Run(ctx); err != nil {
				logger.Warn().Err(err).Msg("lsp: connection closed")
			}
		}()
	}
}
