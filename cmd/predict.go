package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/facet-cli/internal/model"
)

var predictCmd = &cobra.Command{
	Use:   "predict <product-code>",
	Short: "Predict a single product's missing facets (dry run)",
	Long:  "Resolves the product's attribute gaps and asks the model for each value. Nothing is persisted; no experiment is created.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		o, err := initOrchestrator(st, newSearcher(st))
		if err != nil {
			return err
		}

		preds, err := o.PredictProduct(ctx, args[0])
		if err != nil {
			return eris.Wrapf(err, "predict %s", args[0])
		}
		if len(preds) == 0 {
			fmt.Fprintln(os.Stderr, "No resolvable gaps for product.")
			return nil
		}

		type predictionView struct {
			model.FacetPrediction
			ConfidenceLevel model.ConfidenceLevel `json:"confidence_level"`
		}
		views := make([]predictionView, len(preds))
		for i, p := range preds {
			views[i] = predictionView{
				FacetPrediction: p,
				ConfidenceLevel: model.ClassifyConfidence(p.Confidence),
			}
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(views)
	},
}

func init() {
	rootCmd.AddCommand(predictCmd)
}
