// Command catsort administers the category index and runs the catalog
// categorization batch.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/hkhosravi/catsort"
	"github.com/hkhosravi/catsort/runner"
)

var (
	configPath string
	dbPath     string
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	root := &cobra.Command{
		Use:   "catsort",
		Short: "Assign catalog products to taxonomy categories",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to YAML config file")
	root.PersistentFlags().StringVar(&dbPath, "db", "", "catalog database path (overrides config)")

	root.AddCommand(setupCmd())
	root.AddCommand(runCmd())
	root.AddCommand(productCmd())
	root.AddCommand(progressCmd())
	root.AddCommand(statsCmd())
	root.AddCommand(importCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges file config, environment and flags, in that order.
func loadConfig() (catsort.Config, error) {
	cfg := catsort.DefaultConfig()
	if configPath != "" {
		var err error
		cfg, err = catsort.LoadConfig(configPath)
		if err != nil {
			return cfg, err
		}
	}
	if v := os.Getenv("CATSORT_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("CATSORT_CHECKPOINT_PATH"); v != "" {
		cfg.CheckpointPath = v
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	return cfg, nil
}

func openEngine() (*catsort.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return catsort.New(cfg, slog.Default())
}

// signalContext cancels on SIGINT/SIGTERM so a batch stops cleanly
// between products.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func setupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Create the category index and populate it from the taxonomy",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := signalContext()
			defer cancel()
			if err := eng.Setup(ctx); err != nil {
				return err
			}
			stats, err := eng.Index().IndexStats(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Setup completed. Indexed categories: %d\n", stats.Categories)
			return nil
		},
	}
}

func runCmd() *cobra.Command {
	var resetProgress bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Categorize the whole catalog, resuming from the last checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if resetProgress {
				if err := eng.Checkpoints().Clear(); err != nil {
					return err
				}
				fmt.Println("Progress reset; starting from the beginning.")
			}

			ctx, cancel := signalContext()
			defer cancel()

			res, err := eng.Run(ctx, printProgress)
			fmt.Printf("\nProcessed: %d | Classified: %d | Skipped: %d | Errored: %d\n",
				res.Processed, res.Classified, res.Skipped, res.Errored)
			return err
		},
	}
	cmd.Flags().BoolVar(&resetProgress, "reset-progress", false, "discard the checkpoint and start over")
	return cmd
}

func printProgress(ev runner.Event) {
	switch ev.Outcome {
	case runner.OutcomeClassified:
		path := strings.Join(ev.Path, " / ")
		fmt.Printf("product %d -> %s (score %.1f) [%s]\n", ev.ProductID, ev.Category, ev.Score, path)
	case runner.OutcomeSkipped:
		fmt.Printf("product %d already assigned, skipped\n", ev.ProductID)
	case runner.OutcomeUnmatched:
		fmt.Printf("product %d: no category found\n", ev.ProductID)
	case runner.OutcomeError:
		fmt.Printf("product %d: error: %v\n", ev.ProductID, ev.Err)
	}
}

func productCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "product <id>",
		Short: "Dry-run the categorization of a single product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid product id %q", args[0])
			}

			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := signalContext()
			defer cancel()
			res, err := eng.TestProduct(ctx, id)
			if err != nil {
				return err
			}

			fmt.Printf("Product %d\n", res.ProductID)
			fmt.Printf("  search text: %s\n", res.SearchText)
			fmt.Printf("  keywords:    %s\n", strings.Join(res.Keywords, ", "))
			if !res.Matched {
				fmt.Println("  no category found")
				return nil
			}
			fmt.Printf("  category:    %s (id %d, score %.2f)\n", res.Category, res.CategoryID, res.Score)
			fmt.Printf("  full path:   %s\n", strings.Join(res.Path, " / "))
			return nil
		},
	}
}

func progressCmd() *cobra.Command {
	var reset bool

	cmd := &cobra.Command{
		Use:   "progress",
		Short: "Show or reset the persisted batch checkpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			if reset {
				if err := eng.Checkpoints().Clear(); err != nil {
					return err
				}
				fmt.Println("Progress has been reset.")
				return nil
			}

			cp, err := eng.Checkpoints().Load()
			if err != nil {
				return err
			}
			if cp == nil {
				fmt.Println("No progress found. The batch has not started or completed successfully.")
				return nil
			}

			ctx, cancel := signalContext()
			defer cancel()
			remaining, err := eng.Store().CountProductsFrom(ctx, cp.LastProcessedID+1)
			if err != nil {
				return err
			}
			fmt.Printf("Last processed product ID: %d\n", cp.LastProcessedID)
			fmt.Printf("Last update:               %s\n", cp.Timestamp)
			fmt.Printf("Process ID:                %d\n", cp.ProcessID)
			fmt.Printf("Remaining products:        %d\n", remaining)
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "discard the checkpoint")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show category index statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := signalContext()
			defer cancel()
			stats, err := eng.Index().IndexStats(ctx)
			if err != nil {
				return err
			}
			if !stats.Exists {
				fmt.Println("Index does not exist. Run setup first.")
				return nil
			}
			fmt.Printf("Index exists. Categories indexed: %d\n", stats.Categories)
			fmt.Printf("Healthy: %v\n", eng.Index().Healthy(ctx))
			return nil
		},
	}
}

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <feed.xlsx>",
		Short: "Import products and categories from an XLSX feed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := openEngine()
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, cancel := signalContext()
			defer cancel()
			sum, err := eng.ImportFeed(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d products, %d categories, %d parent links\n",
				sum.Products, sum.Categories, sum.ParentLinks)
			return nil
		},
	}
}
