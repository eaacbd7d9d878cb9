// Package operations is the lifecycle engine for network operations.
//
// It validates creation and transition requests against the catalog and the
// transition policy, serializes writers per op_id, and serves the filtered
// listings and detail reads that the HTTP API, the MCP server and the
// assistant all go through.
package operations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/yami-59/network-ops-demo/internal/config"
	"github.com/yami-59/network-ops-demo/internal/ctxutil"
	"github.com/yami-59/network-ops-demo/internal/integrity"
	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/storage"
	"github.com/yami-59/network-ops-demo/internal/telemetry"
)

// sharedReadTimeout bounds a coalesced Get, which runs detached from the
// context of the caller that started it.
const sharedReadTimeout = 10 * time.Second

// CreationComment is recorded on the creation entry when the caller gives
// no initial comment.
const CreationComment = "Création de la demande."

// Options tunes a Service. Zero values pick the defaults.
type Options struct {
	// Now is the clock. Defaults to time.Now.
	Now func() time.Time
	// Policy decides legal transitions. Defaults to PermissivePolicy.
	Policy TransitionPolicy
}

// Service implements the Transition Engine and the Query/Filter Engine.
type Service struct {
	store   storage.Store
	catalog config.Catalog
	logger  *slog.Logger
	now     func() time.Time
	policy  TransitionPolicy

	locks  *keyedLocks
	reads  singleflight.Group
	tracer trace.Tracer

	created            metric.Int64Counter
	transitions        metric.Int64Counter
	transitionDuration metric.Float64Histogram
}

// New creates a Service over store.
func New(store storage.Store, catalog config.Catalog, logger *slog.Logger, opts Options) *Service {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Policy == nil {
		opts.Policy = PermissivePolicy{}
	}
	meter := telemetry.Meter("netops/operations")
	created, _ := meter.Int64Counter("netops.operations.created",
		metric.WithDescription("Operations created"),
	)
	transitions, _ := meter.Int64Counter("netops.transitions",
		metric.WithDescription("Status transitions applied"),
	)
	dur, _ := meter.Float64Histogram("netops.transition.duration",
		metric.WithDescription("Time to apply a status transition (ms)"),
		metric.WithUnit("ms"),
	)
	return &Service{
		store:              store,
		catalog:            catalog,
		logger:             logger,
		now:                opts.Now,
		policy:             opts.Policy,
		locks:              newKeyedLocks(),
		tracer:             telemetry.Tracer("netops/operations"),
		created:            created,
		transitions:        transitions,
		transitionDuration: dur,
	}
}

// Catalog returns the feature catalog the service validates against.
func (s *Service) Catalog() config.Catalog { return s.catalog }

// Policy returns the active transition policy.
func (s *Service) Policy() TransitionPolicy { return s.policy }

// Create validates in and stores a new PENDING operation together with its
// creation ledger entry.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.Operation, error) {
	v, err := validateCreate(s.catalog, in)
	if err != nil {
		return model.Operation{}, err
	}

	ctx, span := s.tracer.Start(ctx, "operations.Create")
	defer span.End()

	now := s.timestamp()
	op := model.Operation{
		Feature:        v.feature,
		Parameter:      v.parameter,
		Value:          v.value,
		Zone:           v.zone,
		Sites:          v.sites,
		DesiredDate:    v.desiredDate,
		Priority:       v.priority,
		Status:         model.StatusPending,
		InitialComment: v.initialComment,
		CreatedBy:      v.actor,
		UpdatedBy:      v.actor,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	comment := CreationComment
	if v.initialComment != nil {
		comment = *v.initialComment
	}
	creation := model.HistoryEntry{
		At:         now,
		Department: model.DepartmentEngineering,
		ToStatus:   model.StatusPending,
		Comment:    comment,
		ActorName:  v.actor.Name,
	}

	op, err = s.store.InsertOperation(ctx, op, creation)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return model.Operation{}, s.storageErr(ctx, "create", "", err)
	}

	span.SetAttributes(attribute.String("netops.op_id", op.OpID))
	s.created.Add(ctx, 1, metric.WithAttributes(attribute.String("feature", op.Feature)))
	s.logger.InfoContext(ctx, "operation created",
		append(ctxutil.LogAttrs(ctx), "op_id", op.OpID, "feature", op.Feature, "parameter", op.Parameter)...)
	return op, nil
}

// Transition moves opID to in.ToStatus and appends the matching ledger
// entry. Input is validated before the store is touched; an invalid request
// never changes state.
func (s *Service) Transition(ctx context.Context, opID string, in TransitionInput) (model.Operation, error) {
	v, err := validateTransition(in)
	if err != nil {
		return model.Operation{}, err
	}

	ctx, span := s.tracer.Start(ctx, "operations.Transition", trace.WithAttributes(
		attribute.String("netops.op_id", opID),
		attribute.String("netops.to_status", string(v.to)),
	))
	defer span.End()
	start := time.Now()

	unlock := s.locks.Lock(opID)
	defer unlock()

	if _, permissive := s.policy.(PermissivePolicy); !permissive {
		detail, err := s.store.GetOperation(ctx, opID, false)
		if err != nil {
			return model.Operation{}, s.storageErr(ctx, "transition", opID, err)
		}
		if err := checkPolicy(s.policy, detail.Request.Status, v.to); err != nil {
			return model.Operation{}, err
		}
	}

	op, entry, err := s.store.ApplyTransition(ctx, opID, model.Transition{
		Department:  v.department,
		ToStatus:    v.to,
		Comment:     v.comment,
		Actor:       v.actor,
		PlannedDate: v.plannedDate,
		At:          s.timestamp(),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transition failed")
		return model.Operation{}, s.storageErr(ctx, "transition", opID, err)
	}
	// A read that started before this write must not serve later callers.
	s.reads.Forget(opID)

	from := string(*entry.FromStatus)
	attrs := metric.WithAttributes(attribute.String("from", from), attribute.String("to", string(entry.ToStatus)))
	s.transitions.Add(ctx, 1, attrs)
	s.transitionDuration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
	s.logger.InfoContext(ctx, "operation transitioned",
		append(ctxutil.LogAttrs(ctx),
			"op_id", opID, "from", from, "to", entry.ToStatus,
			"department", entry.Department, "seq", entry.Seq)...)
	return op, nil
}

// List returns the operations matching every supplied filter, in creation order.
func (s *Service) List(ctx context.Context, in ListInput) ([]model.Operation, error) {
	f, err := validateList(in)
	if err != nil {
		return nil, err
	}
	ops, err := s.store.ListOperations(ctx, f)
	if err != nil {
		return nil, s.storageErr(ctx, "list", "", err)
	}
	return ops, nil
}

// Get returns opID with its full ordered ledger. Reads of the same id wait
// for an in-flight transition on it, and identical concurrent reads share
// one store round trip. Each caller waits on its own ctx.
func (s *Service) Get(ctx context.Context, opID string) (model.OperationDetail, error) {
	ch := s.reads.DoChan(opID, func() (any, error) {
		// The flight outlives whichever caller started it.
		readCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		unlock := s.locks.RLock(opID)
		defer unlock()
		return s.store.GetOperation(readCtx, opID, true)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return model.OperationDetail{}, fmt.Errorf("operations: get %s: %w", opID, ctx.Err())
	case res = <-ch:
	}
	if res.Err != nil {
		return model.OperationDetail{}, s.storageErr(ctx, "get", opID, res.Err)
	}
	detail := res.Val.(model.OperationDetail)
	// Results may be shared between callers.
	detail.Request.Sites = slices.Clone(detail.Request.Sites)
	detail.History = slices.Clone(detail.History)
	return detail, nil
}

// History returns the ordered ledger of opID.
func (s *Service) History(ctx context.Context, opID string) ([]model.HistoryEntry, error) {
	detail, err := s.Get(ctx, opID)
	if err != nil {
		return nil, err
	}
	return detail.History, nil
}

// Planning returns PLANNED operations ordered by planned date, undated last.
func (s *Service) Planning(ctx context.Context) ([]model.Operation, error) {
	ops, err := s.store.ListPlanned(ctx)
	if err != nil {
		return nil, s.storageErr(ctx, "planning", "", err)
	}
	return ops, nil
}

// Verify recomputes the hash chain of opID's ledger.
func (s *Service) Verify(ctx context.Context, opID string) (integrity.Report, error) {
	detail, err := s.Get(ctx, opID)
	if err != nil {
		return integrity.Report{}, err
	}
	report := integrity.VerifyChain(opID, detail.History, detail.Request.Status)
	if !report.Valid {
		s.logger.WarnContext(ctx, "ledger verification failed",
			append(ctxutil.LogAttrs(ctx), "op_id", opID, "problems", report.Problems)...)
	}
	return report, nil
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

// storageErr maps store errors onto the domain taxonomy.
func (s *Service) storageErr(ctx context.Context, op, opID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &model.NotFoundError{OpID: opID}
	}
	if errors.Is(err, storage.ErrDuplicate) {
		s.logger.ErrorContext(ctx, "op_id collision", append(ctxutil.LogAttrs(ctx), "op", op, "op_id", opID, "error", err)...)
		return &model.ConflictError{OpID: opID, Reason: "op_id already allocated"}
	}
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return err
	}
	s.logger.ErrorContext(ctx, "store failure", append(ctxutil.LogAttrs(ctx), "op", op, "op_id", opID, "error", err)...)
	return &model.StorageError{Op: op, Err: err}
}
