package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/kdimtricp/repcoach/internal/config"
	"github.com/kdimtricp/repcoach/internal/database"
)

func main() {
	status := flag.Bool("status", false, "Show migration status only")
	migrationsPath := flag.String("migrations", "", "Path to migrations directory (default MIGRATIONS_PATH)")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	cfg, err := config.Load()
	if err != nil {
		fatal("failed to load config", err)
	}
	if *migrationsPath != "" {
		cfg.MigrationsPath = *migrationsPath
	}
	if cfg.Database.Type != "postgres" {
		fmt.Println("SQLite databases create their schema on open; nothing to migrate.")
		return
	}

	db, err := database.NewDB(cfg.Database)
	if err != nil {
		fatal("failed to connect to database", err)
	}
	defer db.Close()

	if !*status {
		fmt.Printf("Running migrations from %s...\n", cfg.MigrationsPath)
		if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
			fatal("failed to run migrations", err)
		}
		fmt.Println("Migrations completed successfully!")
		return
	}

	migrator := database.NewMigrator(db.Conn(), db.Type())
	if err := migrator.Initialize(); err != nil {
		fatal("failed to initialize migrator", err)
	}

	applied, err := migrator.AppliedVersions()
	if err != nil {
		fatal("failed to get applied migrations", err)
	}

	migrations, err := database.LoadMigrations(cfg.MigrationsPath)
	if err != nil {
		fatal("failed to load migrations", err)
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	for _, m := range migrations {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
