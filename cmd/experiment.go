package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/facet-cli/internal/experiment"
	"github.com/sells-group/facet-cli/internal/gaps"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/predictor"
	"github.com/sells-group/facet-cli/internal/similarity"
	"github.com/sells-group/facet-cli/internal/store"
	"github.com/sells-group/facet-cli/internal/validator"
	"github.com/sells-group/facet-cli/pkg/anthropic"
)

var experimentCmd = &cobra.Command{
	Use:   "experiment",
	Short: "Run and inspect facet prediction experiments",
	Long:  "Commands for running prediction experiments over the catalog and reviewing their accuracy.",
}

// initOrchestrator wires the prediction pipeline against the store.
// With a searcher, worked examples come from each product's nearest
// neighbors; the built-in examples remain the fallback.
func initOrchestrator(st store.Store, searcher *similarity.Searcher) (*experiment.Orchestrator, error) {
	if cfg.Anthropic.Key == "" {
		return nil, eris.New("anthropic API key is required (FACET_ANTHROPIC_KEY)")
	}

	pred := predictor.New(anthropic.NewClient(cfg.Anthropic.Key), predictor.Config{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Concurrency: cfg.Predict.Concurrency,
		RateLimit:   cfg.Anthropic.RateLimit,
		Examples:    predictor.DefaultExamples(cfg.Predict.ExampleCount),
	})
	val := validator.New(st, cfg.Validate.SimilarityThreshold)

	var opts []experiment.Option
	if searcher != nil {
		opts = append(opts, experiment.WithSimilarExamples(searcher, cfg.Predict.ExampleCount))
	}
	return experiment.NewOrchestrator(st, gaps.NewResolver(st), pred, val, opts...), nil
}

// -- experiment run --

var experimentRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full prediction experiment",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.Predict.TimeoutSeconds > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, time.Duration(cfg.Predict.TimeoutSeconds)*time.Second)
			defer cancel()
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		o, err := initOrchestrator(st, newSearcher(st))
		if err != nil {
			return err
		}

		description, _ := cmd.Flags().GetString("description")
		limit, _ := cmd.Flags().GetInt("limit")
		if limit == 0 {
			limit = cfg.Predict.ProductLimit
		}

		exp, err := o.Run(ctx, experiment.RunOptions{
			Description:  description,
			ProductLimit: limit,
			Metadata: map[string]any{
				"model":                cfg.Anthropic.Model,
				"concurrency":          cfg.Predict.Concurrency,
				"example_count":        cfg.Predict.ExampleCount,
				"similarity_threshold": cfg.Validate.SimilarityThreshold,
			},
		})
		if err != nil {
			return eris.Wrap(err, "experiment run")
		}

		formatExperiment(os.Stdout, exp)
		return nil
	},
}

// -- experiment list --

var experimentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List experiments, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		limit, _ := cmd.Flags().GetInt("limit")
		exps, err := st.ListExperiments(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "experiment list")
		}

		if len(exps) == 0 {
			fmt.Fprintln(os.Stderr, "No experiments found.")
			return nil
		}

		formatExperimentList(os.Stdout, exps)
		return nil
	},
}

// -- experiment show --

var experimentShowCmd = &cobra.Command{
	Use:   "show <experiment-key>",
	Short: "Show full details of an experiment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		exp, err := st.GetExperiment(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "experiment show")
		}

		withPredictions, _ := cmd.Flags().GetBool("predictions")
		out := struct {
			*model.Experiment
			Predictions []model.PredictionResult `json:"predictions,omitempty"`
		}{Experiment: exp}

		if withPredictions {
			preds, err := st.ListPredictions(ctx, exp.Key)
			if err != nil {
				return eris.Wrap(err, "experiment show")
			}
			out.Predictions = preds
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	experimentRunCmd.Flags().String("description", "", "experiment description")
	experimentRunCmd.Flags().Int("limit", 0, "max products to process (default from config)")

	experimentListCmd.Flags().Int("limit", 50, "max number of experiments to display")

	experimentShowCmd.Flags().Bool("predictions", false, "include stored prediction rows")

	experimentCmd.AddCommand(experimentRunCmd)
	experimentCmd.AddCommand(experimentListCmd)
	experimentCmd.AddCommand(experimentShowCmd)
	rootCmd.AddCommand(experimentCmd)
}

// formatExperimentList writes a tabular list of experiments to w.
func formatExperimentList(out io.Writer, exps []model.Experiment) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "KEY\tDESCRIPTION\tPRODUCTS\tPREDICTIONS\tACCURACY\tCREATED\tSTATUS")
	_, _ = fmt.Fprintln(w, "---\t-----------\t--------\t-----------\t--------\t-------\t------")

	for _, e := range exps {
		status := "running"
		if e.Completed() {
			status = "complete"
		}

		desc := e.Description
		if len(desc) > 30 {
			desc = desc[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f%%\t%s\t%s\n",
			truncateKey(e.Key),
			desc,
			e.TotalProducts,
			e.TotalPredictions,
			e.Accuracy*100,
			e.CreatedAt.Format("2006-01-02 15:04"),
			status,
		)
	}
	_ = w.Flush()
}

// formatExperiment writes a single experiment summary to w.
func formatExperiment(out io.Writer, e *model.Experiment) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Experiment:\t%s\n", e.Key)
	if e.Description != "" {
		_, _ = fmt.Fprintf(w, "Description:\t%s\n", e.Description)
	}
	_, _ = fmt.Fprintf(w, "Products:\t%d\n", e.TotalProducts)
	_, _ = fmt.Fprintf(w, "Predictions:\t%d\n", e.TotalPredictions)
	_, _ = fmt.Fprintf(w, "Validated:\t%d\n", e.ValidatedPredictions)
	_, _ = fmt.Fprintf(w, "Correct:\t%d\n", e.CorrectPredictions)
	_, _ = fmt.Fprintf(w, "Accuracy:\t%.1f%%\n", e.Accuracy*100)
	if e.AvgPredictionMs != nil {
		_, _ = fmt.Fprintf(w, "Avg prediction:\t%.0fms\n", *e.AvgPredictionMs)
	}
	_ = w.Flush()
}

// truncateKey returns the first 8 characters of a UUID for compact display.
func truncateKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}
