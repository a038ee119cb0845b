package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/facet-cli/internal/similarity"
	"github.com/sells-group/facet-cli/internal/store"
)

// newSearcher builds an embedding searcher with the configured cache
// size and neighbor count.
func newSearcher(st store.Store) *similarity.Searcher {
	return similarity.NewSearcher(st, similarity.NewCache(cfg.Similar.CacheSize), cfg.Similar.TopK)
}

var similarTopK int

var similarCmd = &cobra.Command{
	Use:   "similar <product-code>",
	Short: "Find the most similar products by embedding distance",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		topK := similarTopK
		if topK == 0 {
			topK = cfg.Similar.TopK
		}
		searcher := similarity.NewSearcher(st, similarity.NewCache(cfg.Similar.CacheSize), topK)

		product, err := st.GetProductByCode(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "similar %s", args[0])
		}

		resp, err := searcher.SimilarProducts(ctx, product.Key)
		if err != nil {
			return eris.Wrapf(err, "similar %s", args[0])
		}
		if len(resp.Matches) == 0 {
			fmt.Fprintln(os.Stderr, "No similar products found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "CODE\tNAME\tSCORE")
		_, _ = fmt.Fprintln(w, "----\t----\t-----")
		for _, m := range resp.Matches {
			match, err := st.GetProduct(ctx, m.ProductKey)
			if err != nil {
				return eris.Wrapf(err, "similar: load %s", m.ProductKey)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%.4f\n", match.Code, match.Name, m.Score)
		}
		_ = w.Flush()
		return nil
	},
}

func init() {
	similarCmd.Flags().IntVar(&similarTopK, "top", 0, "number of matches to return (default from config)")
	rootCmd.AddCommand(similarCmd)
}
