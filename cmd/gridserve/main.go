// Command gridserve serves one database table as a DataTables endpoint.
//
//	gridserve --driver duckdb --dsn data.db --table users --columns id,name,email
//
// Flags may also come from a config file (--config) or GRIDSERVE_* environment
// variables, e.g. GRIDSERVE_DSN or GRIDSERVE_DATATABLE_ENGINE_OUTPUTFORMAT.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hugr-lab/datatable-go"
	"github.com/hugr-lab/datatable-go/internal/gridserver"
	"github.com/hugr-lab/datatable-go/sqlexpr"
)

const envPrefix = "GRIDSERVE"

func main() {
	if err := newRootCmd(viper.New()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "gridserve",
		Short:        "Serve a database table as a DataTables endpoint",
		SilenceUsage: true,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return loadConfig(v)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), v)
		},
	}

	f := cmd.Flags()
	f.String("config", "", "config file (yaml, json, toml or .env)")
	f.String("driver", "duckdb", "database/sql driver: duckdb, sqlite3, pgx or mysql")
	f.String("dsn", "", "data source name")
	f.String("table", "", "table to serve")
	f.StringSlice("columns", nil, "displayed columns in grid order")
	f.StringSlice("search-columns", nil, "searchable field specs (default: columns)")
	f.StringSlice("order-columns", nil, "sortable field specs (default: all columns)")
	f.Bool("empty-at-end", false, "sort NULL values last in both directions")
	f.String("addr", ":8080", "listen address")
	f.String("path", "/grid", "endpoint path")
	f.Bool("compress", false, "zstd-compress responses for clients that accept it")
	f.String("output-format", "legacy", "payload shape: legacy or modern")
	f.Int("display-length", datatable.DefaultDisplayLength, "page size when the request has none")
	f.Bool("display-all", false, "allow iDisplayLength=-1 to return every row")
	f.Bool("exact-word-search", false, "global search matches whole values")
	f.String("log-level", "info", "log level: debug, info, warn or error")

	bindings := map[string]string{
		"config":                          "config",
		"driver":                          "driver",
		"dsn":                             "dsn",
		"table":                           "table",
		"columns":                         "columns",
		"search_columns":                  "search-columns",
		"order_columns":                   "order-columns",
		"empty_at_end":                    "empty-at-end",
		"addr":                            "addr",
		"path":                            "path",
		"compress":                        "compress",
		datatable.KeyOutputFormat:         "output-format",
		datatable.KeyDefaultDisplayLength: "display-length",
		datatable.KeyEnableDisplayAll:     "display-all",
		datatable.KeyExactWordSearch:      "exact-word-search",
		datatable.KeyLogLevel:             "log-level",
	}
	for key, flag := range bindings {
		_ = v.BindPFlag(key, f.Lookup(flag))
	}

	return cmd
}

func loadConfig(v *viper.Viper) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path := v.GetString("config"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}
	return nil
}

func run(ctx context.Context, v *viper.Viper) error {
	grid, err := datatable.ConfigFromViper(v)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if grid.LogLevel != nil {
		level = *grid.LogLevel
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	grid.Logger = logger

	driver := v.GetString("driver")
	dialect, err := sqlexpr.DialectFor(driver)
	if err != nil {
		return err
	}

	db, err := sql.Open(driver, v.GetString("dsn"))
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", driver, err)
	}

	h, err := gridserver.New(gridserver.Config{
		DB:            db,
		Dialect:       dialect,
		Table:         v.GetString("table"),
		Columns:       v.GetStringSlice("columns"),
		SearchColumns: v.GetStringSlice("search_columns"),
		OrderColumns:  v.GetStringSlice("order_columns"),
		EmptyAtEnd:    v.GetBool("empty_at_end"),
		Grid:          grid,
		Compress:      v.GetBool("compress"),
		Logger:        logger,
	})
	if err != nil {
		return err
	}
	defer h.Close()

	srv := &http.Server{
		Addr:              v.GetString("addr"),
		Handler:           h.Mux(v.GetString("path")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Grid server listening", "addr", srv.Addr, "path", v.GetString("path"), "table", v.GetString("table"), "driver", driver)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down grid server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
