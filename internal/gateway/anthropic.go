// Package gateway adapts external services to the classification ports.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"call-classifier/internal/classification"
	"call-classifier/pkg/logger"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const DefaultAnthropicModel = "claude-3-5-haiku-latest"

var errAPIKeyRequired = errors.New("API key required")

// AnthropicClassifier classifies text with the Anthropic Messages API.
// It makes exactly one request per call.
type AnthropicClassifier struct {
	client anthropic.Client
	model  anthropic.Model
}

// NewAnthropicClassifier builds a classifier. Extra options are passed to
// the SDK client; tests use them to point at a local server.
func NewAnthropicClassifier(apiKey, model string, opts ...option.RequestOption) (*AnthropicClassifier, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY", errAPIKeyRequired)
	}
	if model == "" {
		model = DefaultAnthropicModel
	}

	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	return &AnthropicClassifier{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  anthropic.Model(model),
	}, nil
}

func (a *AnthropicClassifier) Classify(ctx context.Context, text string, schema classification.CategorySchema) (classification.Category, error) {
	tracer := otel.Tracer("call-classifier/gateway")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("classifier.model", string(a.model)),
		attribute.String("classifier.schema", schema.String()),
	)

	log := logger.Get().With("component", "anthropic_classifier", "model", a.model)
	log.Debugw("classifying text", "chars", len(text))

	params := anthropic.MessageNewParams{
		Model:     a.model,
		MaxTokens: 16,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(text, schema))),
		},
	}

	start := time.Now()
	message, err := a.client.Messages.New(ctx, params)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		log.Warnw("classifier request failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("%w: %w", classification.ErrClassifierFailed, err)
	}
	span.SetAttributes(
		attribute.Int64("classifier.input_tokens", message.Usage.InputTokens),
		attribute.Int64("classifier.output_tokens", message.Usage.OutputTokens),
	)

	if len(message.Content) == 0 {
		err := fmt.Errorf("%w: no content blocks", classification.ErrUnexpectedResponse)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	block := message.Content[0]
	if block.Type != "text" {
		err := fmt.Errorf("%w: not a text block (type=%s)", classification.ErrUnexpectedResponse, block.Type)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	category, err := schema.Parse(block.Text)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	log.Debugw("text classified", "category", category, "duration_ms", time.Since(start).Milliseconds())
	return category, nil
}

func buildPrompt(text string, schema classification.CategorySchema) string {
	var b strings.Builder
	b.WriteString("Classify the following text into one of the following categories: ")
	b.WriteString(schema.String())
	b.WriteString(".\nAnswer with the category name only.\n\nClassify this text:\n\n")
	b.WriteString(text)
	return b.String()
}
