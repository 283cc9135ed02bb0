package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/lmittmann/tint"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/sqltools-project/sqltools-mcp/internal/database"
	"github.com/sqltools-project/sqltools-mcp/internal/server"
	"github.com/sqltools-project/sqltools-mcp/internal/server/metrics"
)

var (
	// Set by LDFLAGS
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	defaultListenAddr   = "0.0.0.0:8010"
	defaultQueryTimeout = 30 * time.Second
	autoConnectTimeout  = 10 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	verboseFlag := flag.Bool("verbose", false, "enable verbose (debug) logging")
	transportFlag := flag.String("transport", "stdio", "MCP transport (stdio, http)")
	listenAddrFlag := flag.String("listen-addr", defaultListenAddr, "HTTP server listen address (http transport)")
	metricsAddrFlag := flag.String("metrics-addr", "", "address to listen on for prometheus metrics (empty to disable)")
	allowedTokensFlag := flag.StringSlice("allowed-tokens", nil, "bearer tokens allowed on the http transport (empty for no auth)")
	maxRowsFlag := flag.Int("max-rows", database.DefaultMaxRows, "maximum number of result rows returned per query")
	queryTimeoutFlag := flag.Duration("query-timeout", defaultQueryTimeout, "default execute_sql timeout")
	noAutoConnectFlag := flag.Bool("no-auto-connect", false, "skip the DB_* environment auto-connect at startup")
	flag.Parse()

	// Best effort: a local .env complements the environment, it is not
	// required to exist.
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := newLogger(*verboseFlag)

	var metricsServerErrCh = make(chan error, 1)
	if *metricsAddrFlag != "" {
		metrics.BuildInfo.WithLabelValues(version, commit, date).Set(1)
		go func() {
			listener, err := net.Listen("tcp", *metricsAddrFlag)
			if err != nil {
				log.Error("failed to start prometheus metrics server listener", "error", err)
				metricsServerErrCh <- err
				return
			}
			log.Info("prometheus metrics server listening", "address", listener.Addr().String())
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.Serve(listener, mux); err != nil {
				log.Error("failed to start prometheus metrics server", "error", err)
				metricsServerErrCh <- err
				return
			}
		}()
	}

	manager, err := database.NewManager(database.ManagerConfig{
		Logger:  log,
		Clock:   clockwork.NewRealClock(),
		MaxRows: *maxRowsFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}

	if !*noAutoConnectFlag {
		autoConnect(ctx, log, manager)
	}

	srv, err := server.New(server.Config{
		Logger:        log,
		Manager:       manager,
		Version:       version,
		ListenAddr:    *listenAddrFlag,
		QueryTimeout:  *queryTimeoutFlag,
		AllowedTokens: *allowedTokensFlag,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		var err error
		switch *transportFlag {
		case "stdio":
			err = srv.RunStdio(ctx)
		case "http":
			err = srv.RunHTTP(ctx)
		default:
			err = fmt.Errorf("unknown transport %q (supported: stdio, http)", *transportFlag)
		}
		serverErrCh <- err
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-serverErrCh:
		return err
	case err := <-metricsServerErrCh:
		return err
	}
}

// autoConnect attempts a startup connection from the DB_* environment when
// the minimum fields for the selected backend are present. Failure is
// logged and ignored; tools report not-connected until a manual
// connect_database.
func autoConnect(ctx context.Context, log *slog.Logger, manager *database.Manager) {
	dbType := os.Getenv("DB_TYPE")
	if dbType == "" {
		dbType = "sqlite"
	}
	backendType, err := database.ParseBackendType(dbType)
	if err != nil {
		log.Warn("auto-connect: unsupported DB_TYPE, skipping", "dbType", dbType)
		return
	}

	cfg := database.ConnectionConfig{
		Type:     backendType,
		Host:     os.Getenv("DB_HOST"),
		Username: os.Getenv("DB_USER"),
		Password: os.Getenv("DB_PASSWORD"),
		Database: os.Getenv("DB_NAME"),
	}
	if portStr := os.Getenv("DB_PORT"); portStr != "" {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Warn("auto-connect: invalid DB_PORT, skipping", "dbPort", portStr)
			return
		}
		cfg.Port = port
	}

	if cfg.Database == "" {
		return
	}
	if backendType != database.BackendSQLite && (cfg.Username == "" || cfg.Password == "") {
		return
	}

	connectCtx, cancel := context.WithTimeout(ctx, autoConnectTimeout)
	defer cancel()
	if _, err := manager.Connect(connectCtx, cfg); err != nil {
		log.Warn("auto-connect: startup connection failed, continuing without it", "error", err)
	}
}

func newLogger(verbose bool) *slog.Logger {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	// Logs go to stderr: stdout belongs to the stdio transport.
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: logLevel,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				t := a.Value.Time().UTC()
				a.Value = slog.StringValue(formatRFC3339Millis(t))
			}
			if s, ok := a.Value.Any().(string); ok && s == "" {
				return slog.Attr{}
			}
			return a
		},
	}))
}

func formatRFC3339Millis(t time.Time) string {
	t = t.UTC()
	base := t.Format("2006-01-02T15:04:05")
	ms := t.Nanosecond() / 1_000_000
	return fmt.Sprintf("%s.%03dZ", base, ms)
}
