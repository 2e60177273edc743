package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// CacheStats prints match-cache entry counts.
func (r *Runner) CacheStats(ctx context.Context, cmd *cli.Command) error {
	db, cache, err := r.openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	total, misses, err := cache.Stats()
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(map[string]int{"total": total, "matches": total - misses, "misses": misses}, true)
	}

	r.writePlain("Cached resolutions: %d\n", total)
	r.writePlain("  Matches: %d\n", total-misses)
	r.writePlain("  Confirmed misses: %d\n", misses)
	return nil
}

// CacheClear empties the match cache.
func (r *Runner) CacheClear(ctx context.Context, cmd *cli.Command) error {
	db, cache, err := r.openCache()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := cache.Clear(); err != nil {
		return err
	}

	return r.writePlain("✓ Match cache cleared\n")
}

// cacheCommand handles match-cache maintenance
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect and maintain the local match cache",
		Commands: []*cli.Command{
			{
				Name:  "stats",
				Usage: "Show cache entry counts",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
				},
				Action: r.CacheStats,
			},
			{
				Name:   "clear",
				Usage:  "Delete all cached resolutions",
				Action: r.CacheClear,
			},
		},
	}
}
