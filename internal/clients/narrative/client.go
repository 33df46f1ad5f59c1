// Package narrative wraps the Anthropic messages API as the report narrative
// collaborator. The engines never depend on the returned text, only embed it:
// any failure here degrades a report to numbers-only, it never fails one.
package narrative

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"

	"github.com/openlend/keel/internal/domain"
)

const (
	defaultModel     = "claude-sonnet-4-20250514"
	premiumModel     = "claude-opus-4-20250514"
	defaultMaxTokens = 1024
	requestTimeout   = 60 * time.Second
)

// Client calls the Anthropic messages API. Implements domain.NarrativeGenerator.
type Client struct {
	client  anthropic.Client
	model   string
	premium string
	log     zerolog.Logger
}

// Config holds narrative client configuration.
type Config struct {
	APIKey string
	// Model overrides the standard-tier model. Premium tier always uses the
	// premium model.
	Model string
}

// New creates a new narrative client. Returns nil when no API key is
// configured; callers treat a nil generator as "no collaborator".
func New(cfg Config, log zerolog.Logger) *Client {
	if cfg.APIKey == "" {
		return nil
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &Client{
		client:  anthropic.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   model,
		premium: premiumModel,
		log:     log.With().Str("service", "narrative").Logger(),
	}
}

// Generate requests a narrative for the given prompt. Failures are logged and
// reported through the OK flag, never as errors: the caller's numbers remain
// valid without the text.
func (c *Client) Generate(ctx context.Context, prompt string, opts domain.NarrativeOptions) domain.NarrativeResult {
	model := c.model
	if opts.Tier == "premium" {
		model = c.premium
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Messages.New(timeoutCtx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		c.log.Warn().Err(err).Str("model", model).Msg("Narrative generation failed")
		return domain.NarrativeResult{}
	}

	text := joinTextBlocks(resp.Content)
	if text == "" {
		c.log.Warn().Str("model", model).Msg("Narrative generation returned no text")
		return domain.NarrativeResult{}
	}

	c.log.Debug().
		Str("model", model).
		Int("response_length", len(text)).
		Dur("duration", time.Since(start)).
		Msg("Narrative generated")

	return domain.NarrativeResult{Text: text, OK: true}
}

// joinTextBlocks concatenates the text content blocks of a response,
// skipping tool-use and other non-text block types.
func joinTextBlocks(blocks []anthropic.ContentBlockUnion) string {
	var text strings.Builder
	for _, block := range blocks {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String()
}
