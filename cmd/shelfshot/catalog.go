package main

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vbonduro/shelfshot/internal/config"
	"github.com/vbonduro/shelfshot/internal/domain"
	"github.com/vbonduro/shelfshot/internal/logging"
)

// withCatalog loads the config and opens the catalog for a one-shot command.
func withCatalog(fn func(*catalog) error) error {
	cfg := config.Load()
	logger, cleanup, err := logging.New(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer cleanup()

	cat, err := openCatalog(cfg, logger)
	if err != nil {
		return err
	}
	defer cat.close()
	return fn(cat)
}

func newProductsCmd() *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "products",
		Short: "List products in the index",
		Example: `  # List every product
  shelfshot products

  # Find products by SKU alias or name
  shelfshot products --search mug`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(cat *catalog) error {
				ctx := cmd.Context()
				var list []domain.ProductSummary
				var err error
				if query == "" {
					list, err = cat.index.List(ctx)
				} else {
					list, err = cat.index.Search(ctx, query)
				}
				if err != nil {
					return fmt.Errorf("failed to list products: %w", err)
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "SKU\tNAME\tIMAGES\tUPDATED\tID")
				for _, p := range list {
					fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
						p.SKUAlias, p.DisplayName, p.ImageCount, p.UpdatedAt.Format("2006-01-02 15:04"), p.ProductID)
				}
				return w.Flush()
			})
		},
	}
	cmd.Flags().StringVarP(&query, "search", "s", "", "filter by SKU alias or display name")
	return cmd
}

func newReindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the product index from the manifests on disk",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCatalog(func(cat *catalog) error {
				n, err := cat.svc.Reindex(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to reindex: %w", err)
				}
				slog.Info("product index rebuilt", "count", n)
				fmt.Fprintf(cmd.OutOrStdout(), "indexed %d product(s)\n", n)
				return nil
			})
		},
	}
}

func newSettingsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "settings",
		Short: "Print the marketplace settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			s, err := config.LoadSettings(cfg.SettingsFile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", cfg.SettingsFile)
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			defer enc.Close()
			return enc.Encode(s)
		},
	}
}
