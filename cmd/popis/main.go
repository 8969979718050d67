package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/erazemk/popis/internal/api"
	"github.com/erazemk/popis/internal/auth"
	"github.com/erazemk/popis/internal/config"
	"github.com/erazemk/popis/internal/db"
	"github.com/erazemk/popis/internal/store"
)

// levelRouter is a slog.Handler that routes INFO/WARN to stdout and ERROR+ to stderr.
type levelRouter struct {
	stdout slog.Handler
	stderr slog.Handler
}

func (lr *levelRouter) Enabled(_ context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo
}

func (lr *levelRouter) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelError {
		return lr.stderr.Handle(ctx, r)
	}
	return lr.stdout.Handle(ctx, r)
}

func (lr *levelRouter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithAttrs(attrs),
		stderr: lr.stderr.WithAttrs(attrs),
	}
}

func (lr *levelRouter) WithGroup(name string) slog.Handler {
	return &levelRouter{
		stdout: lr.stdout.WithGroup(name),
		stderr: lr.stderr.WithGroup(name),
	}
}

// setupLogger configures structured logging. INFO/WARN go to stdout, ERROR goes
// to stderr. If logPath is non-empty, all levels are also written to that file.
func setupLogger(logPath string) (func(), error) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var cleanup func()

	stdoutW := io.Writer(os.Stdout)
	stderrW := io.Writer(os.Stderr)

	if logPath != "" {
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		cleanup = func() { f.Close() }
		stdoutW = io.MultiWriter(os.Stdout, f)
		stderrW = io.MultiWriter(os.Stderr, f)
	}

	handler := &levelRouter{
		stdout: slog.NewTextHandler(stdoutW, opts),
		stderr: slog.NewTextHandler(stderrW, opts),
	}
	slog.SetDefault(slog.New(handler))
	return cleanup, nil
}

func main() {
	fs := flag.NewFlagSet("popis", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	// Flags left unset fall through to the config file and environment.
	overrides := map[string]*string{}
	for key, names := range map[string][]string{
		"database.path":        {"db", "d"},
		"server.addr":          {"addr", "a"},
		"bootstrap.admin_user": {"user", "u"},
		"server.log_file":      {"log", "l"},
	} {
		var value string
		for _, name := range names {
			fs.StringVar(&value, name, "", "")
		}
		overrides[key] = &value
	}

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: popis [flags]

Flags:
  -c, -config <path>      YAML config file (default: none)
  -d, -db <path>          SQLite database path (default: popis.sqlite3)
  -a, -addr <host:port>   listen address (default: :8080)
  -u, -user <name>        admin username on first run (default: admin)
  -l, -log <path>         log file path (default: no file, stdout/stderr only)
  -h, -help               show this help and exit

Every setting can also be given as an environment variable, e.g.
POPIS_DATABASE_PATH or POPIS_LEDGER_ALLOW_INACTIVE_TRANSFER.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	v := config.New()
	for key, value := range overrides {
		if *value != "" {
			v.Set(key, *value)
		}
	}
	cfg, err := config.Load(v, configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	closeLog, err := setupLogger(cfg.Server.LogFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	if closeLog != nil {
		defer closeLog()
	}

	if err := run(cfg); err != nil {
		slog.Error("fatal", "error", err)
		if closeLog != nil {
			closeLog()
		}
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.EnsureSchema(database); err != nil {
		return fmt.Errorf("ensuring database schema: %w", err)
	}
	slog.Info("database ready", "path", cfg.Database.Path)

	ctx := context.Background()
	if err := bootstrapAdmin(ctx, database, cfg.Bootstrap.AdminUser); err != nil {
		return err
	}

	secret := cfg.Security.JWTSecret
	if secret == "" {
		if secret, err = store.GetJWTSecret(ctx, database); err != nil {
			return err
		}
	}

	router := api.NewRouter(database, api.Options{
		Issuer:                auth.NewIssuer(secret, cfg.Security.TokenTTL),
		AllowInactiveTransfer: cfg.Ledger.AllowInactiveTransfer,
		Reports:               store.ReportOptions{IncludeInactive: cfg.Reports.IncludeInactive},
		LoginRate:             rate.Limit(cfg.Security.LoginRateRPS),
		LoginBurst:            cfg.Security.LoginRateBurst,
	})

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.RequestID(api.LoggingMiddleware(router)),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(ctx); err != nil {
			slog.Error("server forced to shutdown", "error", err)
		}
	}()

	slog.Info("server started", "addr", cfg.Server.Addr,
		"allow_inactive_transfer", cfg.Ledger.AllowInactiveTransfer,
		"reports_include_inactive", cfg.Reports.IncludeInactive)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

// bootstrapAdmin creates the first user with a random password when the
// database has no users yet.
func bootstrapAdmin(ctx context.Context, database *sql.DB, username string) error {
	n, err := store.CountUsers(ctx, database)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	password, err := generatePassword(16)
	if err != nil {
		return fmt.Errorf("generating password: %w", err)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := store.CreateUser(ctx, database, username, hash); err != nil {
		return fmt.Errorf("creating admin user: %w", err)
	}

	printInitResult(username, password)
	return nil
}

// printInitResult prints the first-run credentials to stdout.
func printInitResult(username, password string) {
	fmt.Println("Admin account created:")
	fmt.Printf("  Username: %s\n", username)
	fmt.Printf("  Password: %s\n", password)
	fmt.Println()
	fmt.Println("Save this password, it cannot be recovered.")
	fmt.Println("It can be changed after logging in.")
	fmt.Println()
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
