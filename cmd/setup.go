package main

import (
	"context"
	"os"

	"github.com/desertthunder/encore/internal/shared"
	"github.com/urfave/cli/v3"
)

// Setup writes a starter config file when none exists and initializes the
// match-cache database.
func (r *Runner) Setup(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := shared.CreateConfigFile(configPath); err != nil {
			return err
		}
		r.writePlain("✓ Created %s, fill in your API credentials\n", configPath)
	} else {
		r.writePlain("Config already exists at %s\n", configPath)
	}

	db, _, err := r.openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	r.writePlain("✓ Database ready at %s\n", r.config.Database.Path)
	return nil
}

// SetupRollback rolls back the most recent database migration.
func (r *Runner) SetupRollback(ctx context.Context, cmd *cli.Command) error {
	db, err := shared.NewDatabase(r.config.Database.Path)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := shared.RollbackMigration(db); err != nil {
		return err
	}

	r.writePlain("✓ Rolled back last migration\n")
	return nil
}

// setupCommand handles setup operations for config and the database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Initialize config file and database",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to configuration file",
				Value:   "config.toml",
			},
		},
		Action: r.Setup,
		Commands: []*cli.Command{
			{
				Name:   "rollback",
				Usage:  "Roll back the most recent database migration",
				Action: r.SetupRollback,
			},
		},
	}
}
