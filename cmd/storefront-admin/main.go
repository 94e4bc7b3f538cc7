package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/admin"
	"github.com/fjod/go_cart/storefront/internal/app"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/logging"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

// opener connects the admin service; the returned func releases it.
type opener func(ctx context.Context, verbose bool) (*admin.Service, func() error, error)

func main() {
	if err := newRootCmd(openService, os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func openService(ctx context.Context, verbose bool) (*admin.Service, func() error, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	level := "warn"
	if verbose {
		level = "debug"
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		return nil, nil, err
	}
	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return app.NewAdminService(cfg, stores, logger), stores.Close, nil
}

var productFilters = []string{"category", "active", "min_price", "max_price", "created_after", "created_before"}

var auditFilters = []string{"actor", "action", "entity", "since", "until"}

var pageFlags = []string{"cursor", "direction", "page_size"}

func newRootCmd(open opener, out io.Writer) *cobra.Command {
	var (
		verbose bool
		timeout time.Duration
	)

	rootCmd := &cobra.Command{
		Use:          "storefront-admin",
		Short:        "Back-office listing and catalog management for the storefront",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "Operation timeout")

	// withService runs fn against a freshly opened admin service.
	withService := func(cmd *cobra.Command, fn func(ctx context.Context, svc *admin.Service) (any, error)) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		svc, closeFn, err := open(ctx, verbose)
		if err != nil {
			return err
		}
		defer func() { _ = closeFn() }()

		result, err := fn(ctx, svc)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	productsCmd := &cobra.Command{Use: "products", Short: "Manage the product catalog"}

	productsListCmd := &cobra.Command{
		Use:   "list",
		Short: "List products, newest first",
		Long: `Lists one page of products. Pass the last_cursor of a page as --cursor
to continue, or its first_cursor with --direction backward to go back.

Example:
  storefront-admin products list --category books --min-price 10 --page-size 5`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := admin.ParseProductQuery(flagValues(cmd, productFilters))
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *admin.Service) (any, error) {
				return svc.ListProducts(ctx, q)
			})
		},
	}
	addQueryFlags(productsListCmd, productFilters)

	var (
		in    admin.ProductInput
		price string
		actor string
	)
	productsAddCmd := &cobra.Command{
		Use:   "add",
		Short: "Create a product and record it in the audit log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := decimal.NewFromString(price)
			if err != nil {
				return fmt.Errorf("invalid price %q: %w", price, err)
			}
			in.Price = p
			return withService(cmd, func(ctx context.Context, svc *admin.Service) (any, error) {
				return svc.CreateProduct(ctx, actor, in)
			})
		},
	}
	productsAddCmd.Flags().StringVar(&in.Name, "name", "", "Product name (required)")
	productsAddCmd.Flags().StringVar(&in.Description, "description", "", "Product description")
	productsAddCmd.Flags().StringVar(&in.Category, "category", "", "Product category")
	productsAddCmd.Flags().StringVar(&price, "price", "0", "Unit price")
	productsAddCmd.Flags().StringVar(&in.SKU, "sku", "", "Stock keeping unit")
	productsAddCmd.Flags().StringVar(&in.ImageURL, "image-url", "", "Image URL")
	productsAddCmd.Flags().BoolVar(&in.Active, "active", true, "Whether the product can be added to carts")
	productsAddCmd.Flags().StringVar(&actor, "actor", "cli", "Actor recorded in the audit log")
	_ = productsAddCmd.MarkFlagRequired("name")

	auditCmd := &cobra.Command{Use: "audit", Short: "Inspect the audit log"}

	auditListCmd := &cobra.Command{
		Use:   "list",
		Short: "List audit entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := admin.ParseAuditQuery(flagValues(cmd, auditFilters))
			if err != nil {
				return err
			}
			return withService(cmd, func(ctx context.Context, svc *admin.Service) (any, error) {
				return svc.ListAuditLogs(ctx, q)
			})
		},
	}
	addQueryFlags(auditListCmd, auditFilters)

	productsCmd.AddCommand(productsListCmd)
	productsCmd.AddCommand(productsAddCmd)
	auditCmd.AddCommand(auditListCmd)
	rootCmd.AddCommand(productsCmd)
	rootCmd.AddCommand(auditCmd)
	return rootCmd
}

// addQueryFlags exposes the query parameters of the HTTP listing endpoints
// as string flags, with dashes instead of underscores.
func addQueryFlags(cmd *cobra.Command, filters []string) {
	for _, name := range append(append([]string{}, filters...), pageFlags...) {
		cmd.Flags().String(flagName(name), "", "Filter or page parameter "+name)
	}
}

func flagValues(cmd *cobra.Command, filters []string) url.Values {
	v := url.Values{}
	for _, name := range append(append([]string{}, filters...), pageFlags...) {
		if s, _ := cmd.Flags().GetString(flagName(name)); s != "" {
			v.Set(name, s)
		}
	}
	return v
}

func flagName(param string) string {
	return strings.ReplaceAll(param, "_", "-")
}
