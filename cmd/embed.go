package main

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/facet-cli/internal/executor"
	"github.com/sells-group/facet-cli/internal/model"
	"github.com/sells-group/facet-cli/internal/resilience"
	"github.com/sells-group/facet-cli/internal/store"
	"github.com/sells-group/facet-cli/pkg/openai"
)

var (
	embedLimit   int
	embedRefresh bool
)

var embedCmd = &cobra.Command{
	Use:   "embed",
	Short: "Generate embedding vectors for catalog products",
	Long:  "Embeds each product's name, description, and categories for similarity search. Products that already have a vector are skipped unless --refresh is set.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if cfg.OpenAI.Key == "" {
			return eris.New("openai API key is required (FACET_OPENAI_KEY)")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		embedder, err := openai.NewEmbedder(cfg.OpenAI.Key, cfg.OpenAI.EmbeddingModel, cfg.OpenAI.ChunkTokens)
		if err != nil {
			return err
		}

		products, err := st.ListProducts(ctx, embedLimit)
		if err != nil {
			return eris.Wrap(err, "embed: list products")
		}

		pending := products
		if !embedRefresh {
			pending, err = withoutEmbedded(ctx, st, products)
			if err != nil {
				return err
			}
		}
		if len(pending) == 0 {
			zap.L().Info("all products already embedded", zap.Int("products", len(products)))
			return nil
		}

		retryCfg := resilience.DefaultRetryConfig()
		retryCfg.OnRetry = resilience.RetryLogger("openai", "embed")

		_, err = executor.Map(ctx, cfg.Predict.Concurrency, pending,
			func(ctx context.Context, p model.Product) (struct{}, error) {
				text, err := productText(ctx, st, p)
				if err != nil {
					return struct{}{}, err
				}
				vector, err := resilience.DoVal(ctx, retryCfg, func(ctx context.Context) ([]float32, error) {
					return embedder.Embed(ctx, text)
				})
				if err != nil {
					return struct{}{}, eris.Wrapf(err, "embed %s", p.Code)
				}
				if err := st.UpsertProductEmbedding(ctx, p.Key, vector); err != nil {
					return struct{}{}, err
				}
				return struct{}{}, nil
			})
		if err != nil {
			return err
		}

		zap.L().Info("embedding complete",
			zap.Int("embedded", len(pending)),
			zap.Int("skipped", len(products)-len(pending)),
		)
		return nil
	},
}

// withoutEmbedded filters out products that already have a stored vector.
func withoutEmbedded(ctx context.Context, st store.Store, products []model.Product) ([]model.Product, error) {
	existing, err := st.ListProductEmbeddings(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "embed: list embeddings")
	}
	embedded := make(map[string]bool, len(existing))
	for _, e := range existing {
		embedded[e.ProductKey] = true
	}

	var pending []model.Product
	for _, p := range products {
		if !embedded[p.Key] {
			pending = append(pending, p)
		}
	}
	return pending, nil
}

// productText assembles the text fed to the embedding model.
func productText(ctx context.Context, st store.Store, p model.Product) (string, error) {
	var sb strings.Builder
	sb.WriteString(p.Name)
	if p.Description != "" {
		sb.WriteString("\n")
		sb.WriteString(p.Description)
	}

	categories, err := st.ListProductCategories(ctx, p.Key)
	if err != nil {
		return "", eris.Wrapf(err, "embed: categories for %s", p.Code)
	}
	if len(categories) > 0 {
		names := make([]string, len(categories))
		for i, c := range categories {
			names[i] = c.Name
		}
		sb.WriteString("\nCategories: ")
		sb.WriteString(strings.Join(names, ", "))
	}
	return sb.String(), nil
}

func init() {
	embedCmd.Flags().IntVar(&embedLimit, "limit", 0, "max products to embed (0 = all)")
	embedCmd.Flags().BoolVar(&embedRefresh, "refresh", false, "re-embed products that already have vectors")
	rootCmd.AddCommand(embedCmd)
}
