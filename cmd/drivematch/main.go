package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"drivematch/internal/bootstrap"
	discovery "drivematch/internal/discovery/models"
	discoveryService "drivematch/internal/discovery/service"
	"drivematch/internal/discovery/store/memory"
	directoryPostgres "drivematch/internal/discovery/store/postgres"
	"drivematch/internal/platform/config"
	"drivematch/internal/platform/logger"
	id "drivematch/pkg/domain"
)

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "drivematch",
		Short:         "Driving-lesson onboarding and provider matching",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newWalkthroughCmd())
	root.AddCommand(newCandidatesCmd())
	root.AddCommand(newSeedDirectoryCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if addr != "" {
				cfg.Addr = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := bootstrap.New(ctx, cfg, logger.New())
			if err != nil {
				return err
			}
			defer app.Close()
			return app.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides DRIVEMATCH_ADDR)")
	return cmd
}

func newCandidatesCmd() *cobra.Command {
	var (
		category     string
		transmission string
		maxPrice     float64
		minRating    float64
		name         string
		sortBy       string
		seedPath     string
	)
	cmd := &cobra.Command{
		Use:   "candidates",
		Short: "List providers matching a category and filters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cat, err := id.ParseCategory(category)
			if err != nil {
				return err
			}
			filters := discovery.Filters{NameQuery: name}
			if transmission != "" {
				if filters.Transmission, err = id.ParseTransmission(transmission); err != nil {
					return err
				}
			}
			if cmd.Flags().Changed("max-price") {
				filters.MaxPrice = &maxPrice
			}
			if cmd.Flags().Changed("min-rating") {
				filters.MinRating = &minRating
			}
			key, ok := discovery.ParseSortKey(sortBy)
			if !ok {
				return fmt.Errorf("unsupported sort %q", sortBy)
			}
			filters.SortBy = key

			dir, err := memory.FromFile(seedPath)
			if err != nil {
				return err
			}
			quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
			found, err := discoveryService.New(dir, discoveryService.WithLogger(quiet)).Search(cmd.Context(), cat, filters)
			if err != nil {
				return err
			}
			printCandidates(cmd.OutOrStdout(), found)
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "B", "license category: A, B, C, D or E")
	cmd.Flags().StringVar(&transmission, "transmission", "", "manual or automatic")
	cmd.Flags().Float64Var(&maxPrice, "max-price", 0, "maximum hourly price")
	cmd.Flags().Float64Var(&minRating, "min-rating", 0, "minimum rating")
	cmd.Flags().StringVar(&name, "name", "", "case-insensitive name filter")
	cmd.Flags().StringVar(&sortBy, "sort", "", "price or rating")
	cmd.Flags().StringVar(&seedPath, "seed", os.Getenv("DIRECTORY_SEED"), "directory seed YAML (embedded seed when empty)")
	return cmd
}

func printCandidates(out io.Writer, candidates []discovery.Candidate) {
	if len(candidates) == 0 {
		_, _ = fmt.Fprintln(out, "no providers match")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "NAME\tCATEGORIES\tGEARBOX\tPRICE\tRATING\tVEHICLE")
	for _, c := range candidates {
		_, _ = fmt.Fprintf(tw, "%s\t%v\t%s\t%.2f\t%.1f\t%s %d\n",
			c.Name, c.Categories, c.Transmission, c.HourlyPrice, c.Rating, c.VehicleModel, c.VehicleYear)
	}
	_ = tw.Flush()
}

func newSeedDirectoryCmd() *cobra.Command {
	var seedPath string
	cmd := &cobra.Command{
		Use:   "seed-directory",
		Short: "Upsert provider listings into the PostgreSQL directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromEnv()
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required")
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()

			pool, err := bootstrap.ConnectDirectory(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()
			dir := directoryPostgres.New(pool)
			if err := bootstrap.SeedDirectory(ctx, dir, seedPath); err != nil {
				return err
			}
			listed, err := dir.List(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "directory holds %d listings\n", len(listed))
			return nil
		},
	}
	cmd.Flags().StringVar(&seedPath, "seed", os.Getenv("DIRECTORY_SEED"), "directory seed YAML (embedded seed when empty)")
	return cmd
}
