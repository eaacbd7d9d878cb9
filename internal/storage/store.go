package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/yami-59/network-ops-demo/internal/integrity"
	"github.com/yami-59/network-ops-demo/internal/model"
)

// Store is the persistence contract for operations and their ledgers.
// It carries no business rules: callers validate before writing.
// Implementations must make each write method a single atomic unit.
type Store interface {
	// InsertOperation allocates the next op_id for the year of op.CreatedAt
	// and writes op together with its creation entry.
	InsertOperation(ctx context.Context, op model.Operation, creation model.HistoryEntry) (model.Operation, error)

	// ApplyTransition changes the status of opID and appends the matching
	// ledger entry. from_status is the status read inside the transaction.
	ApplyTransition(ctx context.Context, opID string, t model.Transition) (model.Operation, model.HistoryEntry, error)

	// GetOperation reads an operation and, optionally, its ordered ledger
	// from one consistent snapshot.
	GetOperation(ctx context.Context, opID string, includeHistory bool) (model.OperationDetail, error)

	ListHistory(ctx context.Context, opID string) ([]model.HistoryEntry, error)

	// ListOperations returns operations matching every set filter field in
	// creation order.
	ListOperations(ctx context.Context, f model.OperationFilter) ([]model.Operation, error)

	// ListPlanned returns PLANNED operations ordered by planned date, undated last.
	ListPlanned(ctx context.Context) ([]model.Operation, error)

	Ping(ctx context.Context) error
	Backend() string
	Close(ctx context.Context)
}

// FormatOpID renders the n-th op_id of year.
func FormatOpID(year, n int) string {
	return fmt.Sprintf("OP-%04d-%04d", year, n)
}

// SealCreation stamps the creation entry of a freshly allocated op_id.
func SealCreation(opID string, e model.HistoryEntry) model.HistoryEntry {
	e.OpID = opID
	e.Seq = 1
	e.FromStatus = nil
	return integrity.Seal(e, "")
}

// NextEntry builds the ledger entry that moves an operation out of current.
// Its time never precedes the previous entry so the ledger stays ordered
// even if the wall clock steps backwards.
func NextEntry(opID string, current model.Status, last model.HistoryEntry, t model.Transition) model.HistoryEntry {
	at := t.At
	if at.Before(last.At) {
		at = last.At
	}
	from := current
	e := model.HistoryEntry{
		OpID:       opID,
		Seq:        last.Seq + 1,
		At:         at,
		Department: t.Department,
		FromStatus: &from,
		ToStatus:   t.ToStatus,
		Comment:    t.Comment,
		ActorName:  t.Actor.Name,
	}
	return integrity.Seal(e, last.ContentHash)
}

// LikePattern turns a free-text query into a case-insensitive LIKE pattern
// with wildcards escaped. The escape character is a backslash.
func LikePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}
