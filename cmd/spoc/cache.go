package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var cacheExpiredOnly bool

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the AI response cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache size and location",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		stats, err := a.cache.Stats()
		if err != nil {
			return err
		}
		fmt.Printf("Directory: %s\n", stats.CacheDir)
		fmt.Printf("Entries:   %d\n", stats.TotalEntries)
		fmt.Printf("Size:      %.2f MB\n", stats.TotalSizeMB)
		return nil
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove cached responses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.close()

		var n int
		if cacheExpiredOnly {
			n, err = a.cache.ClearExpired()
		} else {
			n, err = a.cache.ClearAll()
		}
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Removed %d cache entries", n), color.FgGreen)
		return nil
	},
}

func init() {
	cacheClearCmd.Flags().BoolVar(&cacheExpiredOnly, "expired", false, "Only remove expired or unreadable entries")
	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
