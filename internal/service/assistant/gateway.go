// Package assistant answers free-text questions about operations using only
// records it retrieved through the operations service.
//
// Every answer carries the op_ids it was built from. Before an answer leaves
// the package it is checked against the retrieved set: any op_id in the text
// that no referenced record accounts for turns the answer into the explicit
// no-data reply.
package assistant

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/yami-59/network-ops-demo/internal/ctxutil"
	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/service/operations"
	"github.com/yami-59/network-ops-demo/internal/telemetry"
)

// DefaultMaxReferences caps how many records one answer may cite.
const DefaultMaxReferences = 12

// OperationReader is the read side of the operations service.
type OperationReader interface {
	List(ctx context.Context, in operations.ListInput) ([]model.Operation, error)
	Get(ctx context.Context, opID string) (model.OperationDetail, error)
}

// Options tunes a Gateway. Zero values pick the defaults.
type Options struct {
	Now           func() time.Time
	MaxReferences int
	// Language is "fr" (default) or "en".
	Language string
}

// Gateway is the grounded question-answering entry point.
type Gateway struct {
	reader    OperationReader
	parser    IntentParser
	extractor *SignalExtractor
	logger    *slog.Logger
	now       func() time.Time
	maxRefs   int
	text      phrasebook

	answers metric.Int64Counter
}

// New creates a Gateway. parser may be nil, in which case only keyword
// signals are used.
func New(reader OperationReader, parser IntentParser, logger *slog.Logger, opts Options) *Gateway {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxReferences <= 0 {
		opts.MaxReferences = DefaultMaxReferences
	}
	answers, _ := telemetry.Meter("netops/assistant").Int64Counter("netops.assistant.answers",
		metric.WithDescription("Assistant answers by outcome"),
	)
	return &Gateway{
		reader:    reader,
		parser:    parser,
		extractor: NewSignalExtractor(),
		logger:    logger,
		now:       opts.Now,
		maxRefs:   opts.MaxReferences,
		text:      phrasebookFor(opts.Language),
		answers:   answers,
	}
}

// candidate is one retrieved record the answer may draw on. History is only
// loaded for records looked up by id.
type candidate struct {
	op      model.Operation
	history []model.HistoryEntry
}

// Ask answers question. It never fails: errors degrade to the no-data reply.
func (g *Gateway) Ask(ctx context.Context, question string) model.Answer {
	question = strings.TrimSpace(question)
	if question == "" {
		return g.finish(ctx, "help", g.help())
	}

	sig := g.extractor.Extract(question, g.now())
	if g.parser != nil {
		sig = g.parseIntent(ctx, question, sig)
	}
	if sig.Empty() {
		return g.finish(ctx, "help", g.help())
	}

	cands, err := g.selectCandidates(ctx, sig)
	if err != nil {
		g.logger.WarnContext(ctx, "assistant: retrieval failed", append(ctxutil.LogAttrs(ctx), "error", err)...)
		return g.finish(ctx, "no_data", g.noData())
	}
	if len(cands) == 0 {
		return g.finish(ctx, "no_data", g.noData())
	}

	return g.grounded(ctx, g.compose(sig, cands), cands)
}

// grounded releases ans only if it passes checkGrounding against cands.
func (g *Gateway) grounded(ctx context.Context, ans model.Answer, cands []candidate) model.Answer {
	if err := checkGrounding(ans, cands); err != nil {
		g.logger.ErrorContext(ctx, "assistant: ungrounded answer suppressed", append(ctxutil.LogAttrs(ctx), "error", err)...)
		return g.finish(ctx, "no_data", g.noData())
	}
	return g.finish(ctx, "answered", ans)
}

func (g *Gateway) finish(ctx context.Context, outcome string, a model.Answer) model.Answer {
	g.answers.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	return a
}

func (g *Gateway) help() model.Answer {
	return model.Answer{Answer: g.text.help, References: []string{}}
}

func (g *Gateway) noData() model.Answer {
	return model.Answer{Answer: g.text.noData, References: []string{}}
}

// parseIntent runs the optional parser once. Its failure leaves the keyword
// signals untouched.
func (g *Gateway) parseIntent(ctx context.Context, question string, sig Signals) Signals {
	var known []string
	if ops, err := g.reader.List(ctx, operations.ListInput{}); err == nil {
		for _, op := range ops {
			known = append(known, op.OpID)
		}
	}
	parsed, err := g.parser.ParseIntent(ctx, question, known)
	if err != nil {
		g.logger.WarnContext(ctx, "assistant: intent parser failed, using keywords", append(ctxutil.LogAttrs(ctx), "error", err)...)
		return sig
	}
	return parsed.guard().apply(sig)
}

// selectCandidates retrieves the records sig points at. Explicit ids win
// over status and window signals.
func (g *Gateway) selectCandidates(ctx context.Context, sig Signals) ([]candidate, error) {
	if len(sig.OpIDs) > 0 {
		var out []candidate
		for _, id := range sig.OpIDs {
			detail, err := g.reader.Get(ctx, id)
			if errors.Is(err, model.ErrNotFound) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, candidate{op: detail.Request, history: detail.History})
			if len(out) == g.maxRefs {
				break
			}
		}
		return out, nil
	}

	var ops []model.Operation
	if len(sig.Statuses) == 0 {
		all, err := g.reader.List(ctx, operations.ListInput{})
		if err != nil {
			return nil, err
		}
		ops = all
	} else {
		for _, st := range sig.Statuses {
			got, err := g.reader.List(ctx, operations.ListInput{Status: string(st)})
			if err != nil {
				return nil, err
			}
			ops = append(ops, got...)
		}
		slices.SortStableFunc(ops, func(a, b model.Operation) int {
			if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
				return c
			}
			return strings.Compare(a.OpID, b.OpID)
		})
	}

	var out []candidate
	for _, op := range ops {
		if sig.Window != nil && !inWindow(op, *sig.Window) {
			continue
		}
		out = append(out, candidate{op: op})
		if len(out) == g.maxRefs {
			break
		}
	}
	return out, nil
}

// inWindow matches the planned date, or the desired date when none is planned.
func inWindow(op model.Operation, w Window) bool {
	switch {
	case op.PlannedDate != nil:
		return w.Contains(*op.PlannedDate)
	case op.DesiredDate != nil:
		return w.Contains(*op.DesiredDate)
	default:
		return false
	}
}

// checkGrounding verifies that the references are exactly the candidate ids
// and that every op_id quoted in the text is either referenced or appears
// inside a referenced record's free-text fields.
func checkGrounding(a model.Answer, cands []candidate) error {
	ids := make(map[string]bool, len(cands))
	var recordText strings.Builder
	for _, c := range cands {
		ids[c.op.OpID] = true
		writeRecordText(&recordText, c)
	}
	for _, ref := range a.References {
		if !ids[ref] {
			return errors.New("reference " + ref + " was not retrieved")
		}
	}
	quoted := make(map[string]bool)
	for _, id := range opIDPattern.FindAllString(recordText.String(), -1) {
		quoted[strings.ToUpper(id)] = true
	}
	for _, id := range opIDPattern.FindAllString(a.Answer, -1) {
		id = strings.ToUpper(id)
		if !slices.Contains(a.References, id) && !quoted[id] {
			return errors.New("answer mentions unreferenced " + id)
		}
	}
	return nil
}

func writeRecordText(b *strings.Builder, c candidate) {
	op := c.op
	for _, f := range []string{op.Feature, op.Parameter, op.Value, op.Zone, op.CreatedBy.Name, op.UpdatedBy.Name} {
		b.WriteString(f + " ")
	}
	if op.InitialComment != nil {
		b.WriteString(*op.InitialComment + " ")
	}
	for _, h := range c.history {
		b.WriteString(h.Comment + " " + h.ActorName + " ")
	}
}
