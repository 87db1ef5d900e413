package embed

import (
	"context"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/orderdesk-cli/internal/resilience"
)

// Client produces embedding vectors for free text. The catalog index uses it
// to build product vectors and to embed customer descriptions at query time.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Config holds OpenAI embeddings settings.
type Config struct {
	APIKey string
	Model  string
}

type sdkClient struct {
	client openai.Client
	model  string
}

// NewClient creates an embeddings client backed by the OpenAI SDK.
func NewClient(cfg Config) Client {
	return &sdkClient{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  cfg.Model,
	}
}

func (c *sdkClient) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := resilience.Retry(ctx, resilience.DefaultPolicy(), "embed",
		func(ctx context.Context) (*openai.CreateEmbeddingResponse, error) {
			return c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
				Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
				Model: openai.EmbeddingModel(c.model),
			})
		})
	if err != nil {
		return nil, eris.Wrap(err, "embed: create embeddings")
	}
	if len(resp.Data) != len(texts) {
		return nil, eris.Errorf("embed: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		out[d.Index] = d.Embedding
	}

	zap.L().Debug("embed: vectors created",
		zap.String("model", c.model),
		zap.Int("inputs", len(texts)),
		zap.Int64("prompt_tokens", resp.Usage.PromptTokens),
	)
	return out, nil
}
