package oracle

import (
	"context"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/orderdesk-cli/internal/model"
	"github.com/sells-group/orderdesk-cli/internal/resilience"
)

// Client defines the natural-language oracle operations used by the
// workflow. Everything deterministic lives outside this interface; the
// oracle only reads text and writes text (or structured classifications).
type Client interface {
	// Classify extracts intent and product mentions from an inbound email.
	Classify(ctx context.Context, email model.Email) (model.Classification, model.TokenUsage, error)
	// Advise answers the inquiry portion of an email against a snapshot of
	// candidate products.
	Advise(ctx context.Context, email model.Email, inquiries []string, candidates []model.Candidate) (string, model.TokenUsage, error)
	// Compose writes the final customer-facing reply from the processing
	// outcome.
	Compose(ctx context.Context, in ComposeInput) (string, model.TokenUsage, error)
}

// ComposeInput is everything the response writer gets to see.
type ComposeInput struct {
	Email    model.Email
	Category model.RequestCategory
	Order    *model.Order
	Advice   string
}

// Config holds API settings for the oracle client.
type Config struct {
	APIKey         string
	Model          string
	MaxTokens      int64
	RequestsPerSec float64
	Burst          int
}

// modelPricing holds per-million-token pricing for known models.
var modelPricing = map[string][2]float64{
	// maps model id to {input, output} dollars per million tokens
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// EstimateCost computes an estimated cost in USD for a usage total against a
// model ID. Returns 0 for unknown models.
func EstimateCost(u model.TokenUsage, modelID string) float64 {
	pricing, ok := modelPricing[modelID]
	if !ok {
		return 0
	}
	return (float64(u.InputTokens)/1e6)*pricing[0] + (float64(u.OutputTokens)/1e6)*pricing[1]
}

// LogCost logs token usage and estimated cost with structured zap fields.
func LogCost(u model.TokenUsage, modelID, stage string) {
	zap.L().Info("cost attribution",
		zap.String("model", modelID),
		zap.String("stage", stage),
		zap.Int("input_tokens", u.InputTokens),
		zap.Int("output_tokens", u.OutputTokens),
		zap.Float64("estimated_cost_usd", EstimateCost(u, modelID)),
	)
}

// sdkClient implements Client using the official anthropic-sdk-go, with a
// token-bucket limiter so batch runs stay inside the account rate limits.
type sdkClient struct {
	client  sdk.Client
	model   string
	maxTok  int64
	limiter *rate.Limiter
}

// NewClient creates an oracle client backed by the SDK.
func NewClient(cfg Config) Client {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 2.0
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}
	return &sdkClient{
		client:  sdk.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		maxTok:  cfg.MaxTokens,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// complete runs one message round-trip and returns the concatenated text.
func (c *sdkClient) complete(ctx context.Context, stage, system, prompt string) (string, model.TokenUsage, error) {
	var usage model.TokenUsage

	if err := c.limiter.Wait(ctx); err != nil {
		return "", usage, eris.Wrap(err, "oracle: rate limiter")
	}

	msg, err := resilience.Retry(ctx, resilience.DefaultPolicy(), "oracle."+stage,
		func(ctx context.Context) (*sdk.Message, error) {
			return c.client.Messages.New(ctx, sdk.MessageNewParams{
				Model:     sdk.Model(c.model),
				MaxTokens: c.maxTok,
				System:    []sdk.TextBlockParam{{Text: system}},
				Messages: []sdk.MessageParam{
					sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
				},
			})
		})
	if err != nil {
		return "", usage, eris.Wrap(err, fmt.Sprintf("oracle: %s", stage))
	}

	usage = model.TokenUsage{
		InputTokens:  int(msg.Usage.InputTokens),
		OutputTokens: int(msg.Usage.OutputTokens),
	}
	LogCost(usage, c.model, stage)

	var text string
	for _, block := range msg.Content {
		if block.Text != "" {
			if text != "" {
				text += "\n"
			}
			text += block.Text
		}
	}
	return text, usage, nil
}

func (c *sdkClient) Classify(ctx context.Context, email model.Email) (model.Classification, model.TokenUsage, error) {
	text, usage, err := c.complete(ctx, "classify", classifySystemPrompt, classifyPrompt(email))
	if err != nil {
		return model.Classification{}, usage, err
	}

	cls, err := parseClassification(text)
	if err != nil {
		return model.Classification{}, usage, eris.Wrap(err, "oracle: parse classification")
	}
	return cls, usage, nil
}

func (c *sdkClient) Advise(ctx context.Context, email model.Email, inquiries []string, candidates []model.Candidate) (string, model.TokenUsage, error) {
	return c.complete(ctx, "advise", adviseSystemPrompt, advisePrompt(email, inquiries, candidates))
}

func (c *sdkClient) Compose(ctx context.Context, in ComposeInput) (string, model.TokenUsage, error) {
	return c.complete(ctx, "compose", composeSystemPrompt, composePrompt(in))
}
