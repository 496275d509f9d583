package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	identityapp "github.com/invoicer/backend/internal/application/identity"
	"github.com/invoicer/backend/internal/infrastructure/auth"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"github.com/invoicer/backend/internal/infrastructure/migration"
	"github.com/invoicer/backend/internal/infrastructure/persistence"
	"github.com/invoicer/backend/migrations"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

func main() {
	var (
		migrationsPath string
		logLevel       string
	)

	flag.StringVar(&migrationsPath, "path", "", "Read migrations from this directory instead of the embedded set")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	log, err := logger.New(&logger.Config{
		Level:      logLevel,
		Format:     "console",
		Output:     "stdout",
		TimeFormat: "2006-01-02 15:04:05",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync(log)

	if migrationsPath != "" {
		if migrationsPath, err = filepath.Abs(migrationsPath); err != nil {
			log.Fatal("Failed to resolve migrations path", zap.Error(err))
		}
	}

	log.Info("Migration CLI started",
		zap.String("command", command),
		zap.String("migrations_path", migrationsPath),
	)

	// create and list never touch the database
	switch command {
	case "create":
		if len(args) < 2 {
			log.Fatal("Migration name required. Usage: migrate -path <dir> create <name> [description]")
		}
		if migrationsPath == "" {
			migrationsPath = "migrations"
		}
		mf, err := migration.CreateMigration(migrationsPath, args[1], strings.Join(args[2:], " "))
		if err != nil {
			log.Fatal("Failed to create migration", zap.Error(err))
		}
		log.Info("Migration created",
			zap.String("version", mf.Version),
			zap.String("up_file", mf.UpPath),
			zap.String("down_file", mf.DownPath),
		)
		return

	case "list":
		fsys := migrationsFS(migrationsPath)
		names, err := migration.ListMigrations(fsys)
		if err != nil {
			log.Fatal("Failed to list migrations", zap.Error(err))
		}
		log.Info("Available migrations", zap.Int("count", len(names)))
		for _, name := range names {
			fmt.Println("  -", name)
		}
		return
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}

	if command == "create-user" {
		createUser(cfg, args[1:], log)
		return
	}

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatal("Failed to ping database", zap.Error(err))
	}

	var m *migration.Migrator
	if migrationsPath != "" {
		m, err = migration.New(db, migrationsPath, log)
	} else {
		m, err = migration.NewEmbedded(db, migrations.FS, log)
	}
	if err != nil {
		log.Fatal("Failed to create migrator", zap.Error(err))
	}
	defer m.Close()

	switch command {
	case "up":
		if err := m.Up(); err != nil {
			log.Fatal("Migration up failed", zap.Error(err))
		}

	case "down":
		if !hasConfirm(args[1:]) {
			log.Fatal("Rolling back every migration drops all invoices. Use 'migrate down -confirm'.")
		}
		if err := m.Down(); err != nil {
			log.Fatal("Migration down failed", zap.Error(err))
		}

	case "step":
		if len(args) < 2 {
			log.Fatal("Step count required. Usage: migrate step <n>")
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid step count", zap.String("value", args[1]))
		}
		if err := m.Steps(n); err != nil {
			log.Fatal("Migration step failed", zap.Error(err))
		}

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatal("Failed to get version", zap.Error(err))
		}
		if version == 0 {
			log.Info("No migrations applied")
			return
		}
		log.Info("Current migration version", zap.Uint("version", version), zap.Bool("dirty", dirty))

	case "force":
		if len(args) < 2 {
			log.Fatal("Version required. Usage: migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			log.Fatal("Invalid version number", zap.String("value", args[1]))
		}
		if err := m.Force(version); err != nil {
			log.Fatal("Force version failed", zap.Error(err))
		}

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

// createUser provisions an account able to sign in to the API
func createUser(cfg *config.Config, args []string, log *zap.Logger) {
	if len(args) < 2 {
		log.Fatal("Usage: migrate create-user <email> <password> [display name]")
	}

	db, err := persistence.NewDatabase(&cfg.Database, nil)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	sessions := identityapp.NewSessionService(
		persistence.NewGormUserRepository(db.DB),
		auth.NewJWTService(cfg.JWT),
		nil,
		log,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	user, err := sessions.Register(ctx, args[0], args[1], strings.Join(args[2:], " "))
	if err != nil {
		log.Fatal("Failed to create user", zap.Error(err))
	}
	log.Info("User created", zap.String("user_id", user.ID.String()), zap.String("email", user.Email))
}

func migrationsFS(path string) fs.FS {
	if path == "" {
		return migrations.FS
	}
	return os.DirFS(path)
}

func hasConfirm(args []string) bool {
	for _, arg := range args {
		if arg == "-confirm" || arg == "--confirm" {
			return true
		}
	}
	return false
}

func printUsage() {
	fmt.Println(`Invoice Database Migration Tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  up                                 Apply all pending migrations
  down -confirm                      Roll back all migrations (drops every invoice)
  step <n>                           Apply n migrations (positive=up, negative=down)
  version                            Show current migration version
  force <version>                    Force set migration version (repairs a dirty schema)
  create <name> [desc]               Create a new numbered migration pair in -path
  list                               List available migrations
  create-user <email> <password> [name]
                                     Create an account that can sign in

Flags:
  -path string          Read migrations from a directory (default: the embedded set)
  -log-level string     Log level: debug, info, warn, error (default: info)

Environment Variables:
  INVOICE_DATABASE_HOST, INVOICE_DATABASE_PORT, INVOICE_DATABASE_USER,
  INVOICE_DATABASE_PASSWORD, INVOICE_DATABASE_DBNAME, INVOICE_DATABASE_SSLMODE

Examples:
  migrate up
  migrate step -1
  migrate -path ./migrations create add_invoice_status "Track sent invoices"
  migrate create-user owner@atob.example 'a-long-password' "AtoB Traders"`)
}
