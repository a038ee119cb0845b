// Package openai produces product text embeddings via the OpenAI API.
package openai

import (
	"context"
	"math"

	"github.com/pkoukk/tiktoken-go"
	"github.com/rotisserie/eris"
	gopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// EmbeddingAPI is the slice of the go-openai client the embedder uses.
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, conv gopenai.EmbeddingRequestConverter) (gopenai.EmbeddingResponse, error)
}

// tokenizer abstracts tiktoken for tests.
type tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// Embedder turns product text into a single embedding vector. Text
// longer than the chunk budget is split on token boundaries, each
// chunk embedded separately, and the chunks combined into one vector
// by a token-count-weighted average.
type Embedder struct {
	api         EmbeddingAPI
	enc         tokenizer
	model       string
	chunkTokens int
}

// NewEmbedder creates an Embedder for the given embedding model.
func NewEmbedder(apiKey, model string, chunkTokens int) (*Embedder, error) {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, eris.Wrap(err, "openai: load tokenizer")
	}
	if chunkTokens <= 0 {
		chunkTokens = 8000
	}
	return &Embedder{
		api:         gopenai.NewClient(apiKey),
		enc:         enc,
		model:       model,
		chunkTokens: chunkTokens,
	}, nil
}

// Embed returns a normalized embedding for the text.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, eris.New("openai: empty text")
	}

	chunks, weights := e.chunk(text)
	resp, err := e.api.CreateEmbeddings(ctx, gopenai.EmbeddingRequestStrings{
		Input: chunks,
		Model: gopenai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, eris.Wrap(err, "openai: create embeddings")
	}
	if len(resp.Data) != len(chunks) {
		return nil, eris.Errorf("openai: got %d embeddings for %d chunks", len(resp.Data), len(chunks))
	}

	if len(chunks) > 1 {
		zap.L().Debug("embedded text in chunks",
			zap.Int("chunks", len(chunks)),
			zap.String("model", e.model))
	}

	vectors := make([][]float32, len(resp.Data))
	for i, d := range resp.Data {
		vectors[i] = d.Embedding
	}
	return normalize(weightedAverage(vectors, weights)), nil
}

// chunk splits text into pieces of at most chunkTokens tokens and
// returns each piece with its token count.
func (e *Embedder) chunk(text string) ([]string, []int) {
	tokens := e.enc.Encode(text, nil, nil)
	if len(tokens) <= e.chunkTokens {
		return []string{text}, []int{len(tokens)}
	}

	var chunks []string
	var weights []int
	for start := 0; start < len(tokens); start += e.chunkTokens {
		end := start + e.chunkTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunks = append(chunks, e.enc.Decode(tokens[start:end]))
		weights = append(weights, end-start)
	}
	return chunks, weights
}

// weightedAverage combines chunk vectors weighted by token count.
func weightedAverage(vectors [][]float32, weights []int) []float32 {
	if len(vectors) == 0 {
		return nil
	}
	if len(vectors) == 1 {
		return vectors[0]
	}

	out := make([]float32, len(vectors[0]))
	var total float64
	for _, w := range weights {
		total += float64(w)
	}
	for i, vec := range vectors {
		w := float64(weights[i]) / total
		for j, v := range vec {
			out[j] += float32(float64(v) * w)
		}
	}
	return out
}

// normalize scales a vector to unit length. Zero vectors pass through.
func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
