package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"catalog-ingest/config"
	"catalog-ingest/models"
	"catalog-ingest/scraper/sites"
	"catalog-ingest/storage"
	"catalog-ingest/utils"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the catalog schema in PostgreSQL",
	RunE: func(_ *cobra.Command, _ []string) error {
		logger := utils.NewLogger()
		store, err := storage.NewPostgresStore(context.Background(), config.Load().DSN())
		if err != nil {
			return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		defer store.Close()
		logger.Info("Catalog schema is up to date")
		return nil
	},
}

var vendorCmd = &cobra.Command{
	Use:   "vendor",
	Short: "Provision vendors",
}

var vendorAddCmd = &cobra.Command{
	Use:   "add NAME",
	Short: "Register a vendor so its catalog can be ingested",
	Args:  cobra.ExactArgs(1),
	RunE:  runVendorAdd,
}

var vendorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List provisioned vendors",
	RunE:  runVendorList,
}

var adaptersCmd = &cobra.Command{
	Use:   "adapters",
	Short: "Validate VENDORS_FILE and list the site adapters it defines",
	RunE:  runAdapters,
}

var (
	vendorLogo    string
	vendorWebsite string
)

func init() {
	vendorAddCmd.Flags().StringVar(&vendorLogo, "logo", "", "Logo URL")
	vendorAddCmd.Flags().StringVar(&vendorWebsite, "website", "", "Storefront URL")

	vendorCmd.AddCommand(vendorAddCmd, vendorListCmd)
	rootCmd.AddCommand(migrateCmd, vendorCmd, adaptersCmd)
}

func openAdmin(ctx context.Context) (*storage.PostgresStore, error) {
	store, err := storage.NewPostgresStore(ctx, config.Load().DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return store, nil
}

func runVendorAdd(_ *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	v, err := store.CreateVendor(ctx, models.Vendor{Name: args[0], Logo: vendorLogo, Website: vendorWebsite})
	if err != nil {
		return fmt.Errorf("failed to create vendor %q: %w", args[0], err)
	}
	fmt.Printf("Vendor %s created with id %s\n", v.Name, v.ID)
	return nil
}

func runVendorList(_ *cobra.Command, _ []string) error {
	ctx := context.Background()
	store, err := openAdmin(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	vendors, err := store.ListVendors(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tWEBSITE")
	for _, v := range vendors {
		fmt.Fprintf(w, "%s\t%s\t%s\n", v.ID, v.Name, v.Website)
	}
	return w.Flush()
}

func runAdapters(_ *cobra.Command, _ []string) error {
	cfg := config.Load()
	adapters, err := sites.Load(cfg.VendorsFile)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VENDOR\tPAGINATION\tENTRIES")
	for _, a := range adapters {
		fmt.Fprintf(w, "%s\t%s\t%d\n", a.Vendor(), a.Pagination().Strategy, len(a.Entries()))
	}
	return w.Flush()
}
