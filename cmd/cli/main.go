package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/akeren/waitlist-intake/config"
	"github.com/akeren/waitlist-intake/internal/log"
	"github.com/akeren/waitlist-intake/pkg/migrations"
	"github.com/akeren/waitlist-intake/pkg/utils"
)

const migrateTimeout = 5 * time.Minute

func main() {
	logger := log.NewLoggerWithJSONOutput()

	config.InitializeEnvFile(logger)

	args := os.Args[1:]
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "migrate":
		if err := runMigrate(logger); err != nil {
			logger.Error("Database migration failed", "error", err.Error())
			os.Exit(1)
		}
		logger.Info("Database migrations completed")

	case "migrations", "list-migrations":
		names, err := migrations.Files()
		if err != nil {
			logger.Error("Failed to list migrations", "error", err.Error())
			os.Exit(1)
		}
		for _, name := range names {
			fmt.Println(name)
		}

	case "help", "-h", "--help":
		printUsage()

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func runMigrate(logger *log.Logger) error {
	db, err := config.NewDatabase(logger, nil)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("sql handle: %w", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logger.Warn("Failed to close SQL DB after migration", "error", err.Error())
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
	defer cancel()

	// An empty MIGRATIONS_DIR applies the SQL compiled into the binary.
	return migrations.Up(ctx, sqlDB, migrations.Config{
		Dir:             utils.GetEnvTrimmedOrDefault("MIGRATIONS_DIR", ""),
		MigrationsTable: utils.GetEnvTrimmedOrDefault("MIGRATIONS_TABLE", "schema_migrations"),
		Logger:          logger,
	})
}

func printUsage() {
	fmt.Println("Usage: cli <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate      Apply pending SQL migrations and exit (MIGRATIONS_DIR overrides the embedded set)")
	fmt.Println("  migrations   List the embedded migration files")
}
