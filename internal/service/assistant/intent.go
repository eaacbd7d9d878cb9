package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/telemetry"
)

// Intent is the coarse question category an IntentParser may return.
type Intent string

const (
	IntentGetStatus    Intent = "GET_STATUS"
	IntentListPlanned  Intent = "LIST_PLANNED"
	IntentListExecuted Intent = "LIST_EXECUTED"
	IntentListFailed   Intent = "LIST_FAILED"
	IntentHelp         Intent = "HELP"
)

// ParsedIntent is the structured reading of a question. It only steers
// retrieval: answer text is always composed from stored records.
type ParsedIntent struct {
	NormalizedQuestion string `json:"normalized_question"`
	Intent             Intent `json:"intent"`
	OpID               string `json:"op_id"`
}

// IntentParser classifies a question. knownIDs lets the parser map a
// misspelled operation reference onto an id that exists.
type IntentParser interface {
	ParseIntent(ctx context.Context, question string, knownIDs []string) (ParsedIntent, error)
}

// guard clamps parser output to the closed vocabulary.
func (p ParsedIntent) guard() ParsedIntent {
	switch p.Intent {
	case IntentGetStatus, IntentListPlanned, IntentListExecuted, IntentListFailed, IntentHelp:
	default:
		p.Intent = IntentHelp
	}
	p.OpID = strings.ToUpper(strings.TrimSpace(p.OpID))
	if !opIDPattern.MatchString(p.OpID) || opIDPattern.FindString(p.OpID) != p.OpID {
		p.OpID = ""
	}
	if p.Intent == IntentGetStatus && p.OpID == "" {
		p.Intent = IntentHelp
	}
	return p
}

// apply folds a guarded intent into keyword signals.
func (p ParsedIntent) apply(s Signals) Signals {
	switch p.Intent {
	case IntentGetStatus:
		s.addOpID(p.OpID)
	case IntentListPlanned:
		s.addStatus(model.StatusPlanned)
	case IntentListExecuted:
		s.addStatus(model.StatusExecuted)
	case IntentListFailed:
		s.addStatus(model.StatusFailed)
	}
	return s
}

const intentSystemPrompt = `You classify questions about network configuration operations.
Reply with a single JSON object and nothing else:
{"normalized_question": string, "intent": "GET_STATUS"|"LIST_PLANNED"|"LIST_EXECUTED"|"LIST_FAILED"|"HELP", "op_id": string}
Rules:
- GET_STATUS requires op_id in the form OP-YYYY-NNNN. If the question mentions an
  operation with a typo, use the closest id from the known list.
- op_id is "" for every other intent.
- Use HELP when the question is about anything else.
- Never answer the question itself.`

// maxKnownIDs bounds the id list sent to the model.
const maxKnownIDs = 200

// AnthropicParser classifies questions with a Claude model.
type AnthropicParser struct {
	client  anthropic.Client
	model   anthropic.Model
	timeout time.Duration
}

// NewAnthropicParser creates a parser for apiKey and model. Each call is
// bounded by timeout and never retried.
func NewAnthropicParser(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) *AnthropicParser {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}, opts...)
	intentMetricsOnce.Do(initIntentMetrics)
	return &AnthropicParser{
		client:  anthropic.NewClient(opts...),
		model:   anthropic.Model(model),
		timeout: timeout,
	}
}

var intentMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var intentMetricsOnce sync.Once

func initIntentMetrics() {
	m := telemetry.Meter("netops/assistant")
	intentMetrics.inputTokens, _ = m.Int64Counter("netops.intent.input_tokens",
		metric.WithDescription("Intent model input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	intentMetrics.outputTokens, _ = m.Int64Counter("netops.intent.output_tokens",
		metric.WithDescription("Intent model output tokens generated"),
		metric.WithUnit("{token}"),
	)
	intentMetrics.duration, _ = m.Float64Histogram("netops.intent.duration",
		metric.WithDescription("Intent model request duration"),
		metric.WithUnit("ms"),
	)
}

// ParseIntent implements IntentParser.
func (p *AnthropicParser) ParseIntent(ctx context.Context, question string, knownIDs []string) (ParsedIntent, error) {
	ctx, span := telemetry.Tracer("netops/assistant").Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(attribute.String("netops.intent.model", string(p.model)))

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if len(knownIDs) > maxKnownIDs {
		knownIDs = knownIDs[len(knownIDs)-maxKnownIDs:]
	}
	prompt := fmt.Sprintf("Known operation ids: %s\n\nQuestion: %s", strings.Join(knownIDs, ", "), question)

	t0 := time.Now()
	message, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       p.model,
		MaxTokens:   256,
		System:      []anthropic.TextBlockParam{{Text: intentSystemPrompt}},
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
		Temperature: anthropic.Float(0),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return ParsedIntent{}, fmt.Errorf("assistant: intent request: %w", err)
	}

	modelAttr := metric.WithAttributes(attribute.String("model", string(p.model)))
	intentMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, modelAttr)
	intentMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, modelAttr)
	intentMetrics.duration.Record(ctx, float64(time.Since(t0).Milliseconds()), modelAttr)

	if len(message.Content) == 0 || message.Content[0].Type != "text" {
		return ParsedIntent{}, errors.New("assistant: intent response has no text block")
	}
	parsed, err := decodeIntent(message.Content[0].Text)
	if err != nil {
		span.RecordError(err)
		return ParsedIntent{}, err
	}
	span.SetAttributes(attribute.String("netops.intent", string(parsed.Intent)))
	return parsed, nil
}

// decodeIntent reads the strict JSON reply. A fenced code block around the
// object is tolerated; anything else is an error.
func decodeIntent(text string) (ParsedIntent, error) {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")

	dec := json.NewDecoder(bytes.NewReader([]byte(strings.TrimSpace(text))))
	dec.DisallowUnknownFields()
	var p ParsedIntent
	if err := dec.Decode(&p); err != nil {
		return ParsedIntent{}, fmt.Errorf("assistant: decode intent: %w", err)
	}
	if dec.More() {
		return ParsedIntent{}, errors.New("assistant: decode intent: trailing data")
	}
	return p, nil
}
