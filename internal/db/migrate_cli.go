package db

import (
	"fmt"
	"strconv"

	"github.com/banshee-data/position.report/internal/monitoring"
)

// RunMigrateCommand dispatches a 'migrate' subcommand against the database
// at dbPath. Recognized verbs: up, down, status, to <n>, force <n>, help.
// The daemon exposes this so operators never need a separate migration
// binary on site units.
func RunMigrateCommand(args []string, dbPath, migrationsDir string) error {
	if len(args) < 1 {
		PrintMigrateHelp()
		return fmt.Errorf("missing migrate action")
	}
	action := args[0]

	database, err := NewDB(dbPath)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	switch action {
	case "up":
		monitoring.Logf("Running migrations...")
		if err := database.MigrateUp(migrationsDir); err != nil {
			return err
		}
		version, dirty, _ := database.MigrateVersion(migrationsDir)
		monitoring.Logf("All migrations applied; current version: %d (dirty: %v)", version, dirty)
		return nil

	case "down":
		monitoring.Logf("Rolling back one migration...")
		if err := database.MigrateDown(migrationsDir); err != nil {
			return err
		}
		version, dirty, _ := database.MigrateVersion(migrationsDir)
		monitoring.Logf("Rolled back; current version: %d (dirty: %v)", version, dirty)
		return nil

	case "status":
		version, dirty, err := database.MigrateVersion(migrationsDir)
		if err != nil {
			return fmt.Errorf("failed to get migration status: %w", err)
		}
		latest, err := LatestMigrationVersion(migrationsDir)
		if err != nil {
			return err
		}
		monitoring.Logf("Migration status: version %d of %d (dirty: %v)", version, latest, dirty)
		if dirty {
			monitoring.Logf("WARNING: database is dirty; a migration failed mid-execution. Inspect the database, then 'migrate force <n>' to the last known-good version and re-run 'migrate up'.")
		}
		return nil

	case "to":
		if len(args) < 2 {
			return fmt.Errorf("usage: position-report migrate to <version>")
		}
		version, err := strconv.ParseUint(args[1], 10, 32)
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return database.MigrateTo(migrationsDir, uint(version))

	case "force":
		if len(args) < 2 {
			return fmt.Errorf("usage: position-report migrate force <version>")
		}
		version, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[1], err)
		}
		return database.MigrateForce(migrationsDir, version)

	case "help":
		PrintMigrateHelp()
		return nil

	default:
		PrintMigrateHelp()
		return fmt.Errorf("unknown migrate action: %s", action)
	}
}

// PrintMigrateHelp prints usage for the migrate subcommand.
func PrintMigrateHelp() {
	fmt.Println(`Usage: position-report migrate <action>

Actions:
  up             Apply all pending migrations
  down           Roll back the most recent migration
  status         Show current and latest schema versions
  to <version>   Migrate up or down to a specific version
  force <version> Force the recorded version (recovery from dirty state)
  help           Show this help`)
}
