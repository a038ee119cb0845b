package main

import (
	"context"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/catalog"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import catalog CSV exports into the store",
	Long:  "Loads curator-exported CSV files: products, categories, category memberships, attributes, allowable values, recommendations, and gap rows.",
}

var importGapsReplace bool

// runImport opens the CSV and feeds it through the importer, logging
// the row count. All import subcommands share this shape.
func runImport(cmd *cobra.Command, path, table string,
	fn func(ctx context.Context, im *catalog.Importer, r io.Reader) (int, error)) error {
	ctx := cmd.Context()

	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	f, err := os.Open(path)
	if err != nil {
		return eris.Wrapf(err, "open %s", path)
	}
	defer f.Close() //nolint:errcheck

	n, err := fn(ctx, catalog.NewImporter(st, storePool(st)), f)
	if err != nil {
		return err
	}

	zap.L().Info("import complete",
		zap.String("table", table),
		zap.Int("rows", n),
		zap.String("csv", path),
	)
	return nil
}

var importProductsCmd = &cobra.Command{
	Use:   "products <file.csv>",
	Short: "Import products (key,code,name,description)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "products",
			func(ctx context.Context, im *catalog.Importer, r io.Reader) (int, error) {
				return im.Products(ctx, r)
			})
	},
}

var importCategoriesCmd = &cobra.Command{
	Use:   "categories <file.csv>",
	Short: "Import categories (key,code,name)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "categories",
			func(ctx context.Context, im *catalog.Importer, r io.Reader) (int, error) {
				return im.Categories(ctx, r)
			})
	},
}

var importMembershipsCmd = &cobra.Command{
	Use:   "memberships <file.csv>",
	Short: "Import product-category assignments (product_key,category_key)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "product_categories",
			func(ctx context.Context, im *catalog.Importer, r io.Reader) (int, error) {
				return im.Memberships(ctx, r)
			})
	},
}

var importAttributesCmd = &cobra.Command{
	Use:   "attributes <file.csv>",
	Short: "Import attributes (key,code,name)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "attributes",
			func(ctx context.Context, im *catalog.Importer, r io.Reader) (int, error) {
				return im.Attributes(ctx, r)
			})
	},
}

var importValuesCmd = &cobra.Command{
	Use:   "values <file.csv>",
	Short: "Import allowable values (attribute_key,category_key,value,scope)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "allowable_values",
			func(ctx context.Context, im *catalog.Importer, r io.Reader) (int, error) {
				return im.AllowableValues(ctx, r)
			})
	},
}

var importRecommendationsCmd = &cobra.Command{
	Use:   "recommendations <file.csv>",
	Short: "Import curator recommendations (key,product_code,attribute_code,action,...)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "recommendations",
			func(ctx context.Context, im *catalog.Importer, r io.Reader) (int, error) {
				return im.Recommendations(ctx, r)
			})
	},
}

var importGapsCmd = &cobra.Command{
	Use:   "gaps <file.csv>",
	Short: "Import gap rows (product_key,attribute_key,recommendation_id)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runImport(cmd, args[0], "product_gaps",
			func(ctx context.Context, im *catalog.Importer, r io.Reader) (int, error) {
				return im.GapRows(ctx, r, importGapsReplace)
			})
	},
}

func init() {
	importGapsCmd.Flags().BoolVar(&importGapsReplace, "replace", false, "truncate and reload via COPY (postgres only)")

	importCmd.AddCommand(importProductsCmd)
	importCmd.AddCommand(importCategoriesCmd)
	importCmd.AddCommand(importMembershipsCmd)
	importCmd.AddCommand(importAttributesCmd)
	importCmd.AddCommand(importValuesCmd)
	importCmd.AddCommand(importRecommendationsCmd)
	importCmd.AddCommand(importGapsCmd)
	rootCmd.AddCommand(importCmd)
}
