package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yami-59/network-ops-demo/internal/model"
)

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const operationColumns = `op_id, feature, parameter, value, zone, sites,
	to_char(desired_date, 'YYYY-MM-DD'), to_char(planned_date, 'YYYY-MM-DD'),
	priority, status, initial_comment,
	created_by_name, created_by_email, updated_by_name, updated_by_email,
	created_at, updated_at`

const historyColumns = `op_id, seq, at, department, from_status, to_status,
	comment, actor_name, prev_hash, content_hash`

// InsertOperation allocates an op_id and writes the operation plus its
// creation entry in one transaction.
func (db *DB) InsertOperation(ctx context.Context, op model.Operation, creation model.HistoryEntry) (model.Operation, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Operation{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	year := op.CreatedAt.UTC().Year()
	var n int
	if err := tx.QueryRow(ctx,
		`INSERT INTO op_id_counters (year, last_value) VALUES ($1, 1)
		 ON CONFLICT (year) DO UPDATE SET last_value = op_id_counters.last_value + 1
		 RETURNING last_value`, year,
	).Scan(&n); err != nil {
		return model.Operation{}, fmt.Errorf("storage: allocate op_id: %w", err)
	}
	op.OpID = FormatOpID(year, n)

	_, err = tx.Exec(ctx,
		`INSERT INTO operations (op_id, feature, parameter, value, zone, sites,
		 desired_date, planned_date, priority, status, initial_comment,
		 created_by_name, created_by_email, updated_by_name, updated_by_email,
		 created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::text::date, $8::text::date, $9, $10, $11,
		 $12, $13, $14, $15, $16, $17)`,
		op.OpID, op.Feature, op.Parameter, op.Value, op.Zone, op.Sites,
		op.DesiredDate, op.PlannedDate, string(op.Priority), string(op.Status), op.InitialComment,
		op.CreatedBy.Name, op.CreatedBy.Email, op.UpdatedBy.Name, op.UpdatedBy.Email,
		op.CreatedAt, op.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return model.Operation{}, fmt.Errorf("storage: insert operation %s: %w", op.OpID, ErrDuplicate)
		}
		return model.Operation{}, fmt.Errorf("storage: insert operation: %w", err)
	}

	if err := insertHistory(ctx, tx, SealCreation(op.OpID, creation)); err != nil {
		return model.Operation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Operation{}, fmt.Errorf("storage: commit create: %w", err)
	}
	return op, nil
}

// ApplyTransition locks the operation row, appends the ledger entry and
// updates the status in one transaction.
func (db *DB) ApplyTransition(ctx context.Context, opID string, t model.Transition) (model.Operation, model.HistoryEntry, error) {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("storage: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM operations WHERE op_id = $1 FOR UPDATE`, opID).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("storage: operation %s: %w", opID, ErrNotFound)
		}
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("storage: lock operation: %w", err)
	}

	last, err := scanHistory(tx.QueryRow(ctx,
		`SELECT `+historyColumns+` FROM operation_history WHERE op_id = $1 ORDER BY seq DESC LIMIT 1`, opID))
	if err != nil {
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("storage: read ledger head: %w", err)
	}

	entry := NextEntry(opID, model.Status(current), last, t)
	if err := insertHistory(ctx, tx, entry); err != nil {
		return model.Operation{}, model.HistoryEntry{}, err
	}

	if _, err := tx.Exec(ctx,
		`UPDATE operations SET status = $2, updated_at = GREATEST($3, created_at),
		 updated_by_name = $4, updated_by_email = $5,
		 planned_date = COALESCE($6::text::date, planned_date)
		 WHERE op_id = $1`,
		opID, string(t.ToStatus), entry.At, t.Actor.Name, t.Actor.Email, t.PlannedDate,
	); err != nil {
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("storage: update status: %w", err)
	}

	op, err := getOperation(ctx, tx, opID)
	if err != nil {
		return model.Operation{}, model.HistoryEntry{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("storage: commit transition: %w", err)
	}
	return op, entry, nil
}

// GetOperation reads an operation and optionally its ledger from a single
// repeatable-read snapshot.
func (db *DB) GetOperation(ctx context.Context, opID string, includeHistory bool) (model.OperationDetail, error) {
	tx, err := db.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead, AccessMode: pgx.ReadOnly})
	if err != nil {
		return model.OperationDetail{}, fmt.Errorf("storage: begin read tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	op, err := getOperation(ctx, tx, opID)
	if err != nil {
		return model.OperationDetail{}, err
	}
	detail := model.OperationDetail{Request: op}
	if includeHistory {
		detail.History, err = listHistory(ctx, tx, opID)
		if err != nil {
			return model.OperationDetail{}, err
		}
	}
	return detail, nil
}

// ListHistory returns the ordered ledger of opID.
func (db *DB) ListHistory(ctx context.Context, opID string) ([]model.HistoryEntry, error) {
	detail, err := db.GetOperation(ctx, opID, true)
	if err != nil {
		return nil, err
	}
	return detail.History, nil
}

// ListOperations returns operations matching every set filter field in
// creation order.
func (db *DB) ListOperations(ctx context.Context, f model.OperationFilter) ([]model.Operation, error) {
	where, args := buildOperationWhere(f)
	rows, err := db.pool.Query(ctx,
		`SELECT `+operationColumns+` FROM operations`+where+` ORDER BY seq ASC`, args...)
	if err != nil {
		return nil, fmt.Errorf("storage: list operations: %w", err)
	}
	return collectOperations(rows)
}

// ListPlanned returns PLANNED operations by planned date, undated last.
func (db *DB) ListPlanned(ctx context.Context) ([]model.Operation, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE status = 'PLANNED'
		 ORDER BY planned_date ASC NULLS LAST, seq ASC`)
	if err != nil {
		return nil, fmt.Errorf("storage: list planned: %w", err)
	}
	return collectOperations(rows)
}

func buildOperationWhere(f model.OperationFilter) (string, []any) {
	var conds []string
	var args []any
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Feature != "" {
		add("feature = $%d", f.Feature)
	}
	if f.Parameter != "" {
		add("parameter = $%d", f.Parameter)
	}
	if f.Priority != "" {
		add("priority = $%d", string(f.Priority))
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if strings.TrimSpace(f.Query) != "" {
		args = append(args, LikePattern(f.Query))
		n := len(args)
		conds = append(conds, fmt.Sprintf(
			"(lower(op_id) LIKE $%[1]d OR lower(feature) LIKE $%[1]d OR lower(parameter) LIKE $%[1]d OR lower(zone) LIKE $%[1]d OR lower(value) LIKE $%[1]d)", n))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func getOperation(ctx context.Context, q querier, opID string) (model.Operation, error) {
	op, err := scanOperation(q.QueryRow(ctx, `SELECT `+operationColumns+` FROM operations WHERE op_id = $1`, opID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Operation{}, fmt.Errorf("storage: operation %s: %w", opID, ErrNotFound)
		}
		return model.Operation{}, fmt.Errorf("storage: get operation: %w", err)
	}
	return op, nil
}

func listHistory(ctx context.Context, q querier, opID string) ([]model.HistoryEntry, error) {
	rows, err := q.Query(ctx,
		`SELECT `+historyColumns+` FROM operation_history WHERE op_id = $1 ORDER BY seq ASC`, opID)
	if err != nil {
		return nil, fmt.Errorf("storage: list history: %w", err)
	}
	defer rows.Close()

	var out []model.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, q querier, e model.HistoryEntry) error {
	var from *string
	if e.FromStatus != nil {
		s := string(*e.FromStatus)
		from = &s
	}
	_, err := q.Exec(ctx,
		`INSERT INTO operation_history (`+historyColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		e.OpID, e.Seq, e.At, string(e.Department), from, string(e.ToStatus),
		e.Comment, e.ActorName, e.PrevHash, e.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("storage: append history: %w", err)
	}
	return nil
}

func collectOperations(rows pgx.Rows) ([]model.Operation, error) {
	defer rows.Close()
	out := []model.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("storage: scan operation: %w", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: iterate operations: %w", err)
	}
	return out, nil
}

func scanOperation(row pgx.Row) (model.Operation, error) {
	var (
		op                 model.Operation
		priority, status   string
		createdAt, updated time.Time
	)
	err := row.Scan(
		&op.OpID, &op.Feature, &op.Parameter, &op.Value, &op.Zone, &op.Sites,
		&op.DesiredDate, &op.PlannedDate, &priority, &status, &op.InitialComment,
		&op.CreatedBy.Name, &op.CreatedBy.Email, &op.UpdatedBy.Name, &op.UpdatedBy.Email,
		&createdAt, &updated,
	)
	if err != nil {
		return model.Operation{}, err
	}
	op.Priority = model.Priority(priority)
	op.Status = model.Status(status)
	op.CreatedAt = createdAt.UTC()
	op.UpdatedAt = updated.UTC()
	return op, nil
}

func scanHistory(row pgx.Row) (model.HistoryEntry, error) {
	var (
		e        model.HistoryEntry
		dept, to string
		from     *string
		at       time.Time
	)
	if err := row.Scan(&e.OpID, &e.Seq, &at, &dept, &from, &to,
		&e.Comment, &e.ActorName, &e.PrevHash, &e.ContentHash); err != nil {
		return model.HistoryEntry{}, err
	}
	e.At = at.UTC()
	e.Department = model.Department(dept)
	e.ToStatus = model.Status(to)
	if from != nil {
		s := model.Status(*from)
		e.FromStatus = &s
	}
	return e, nil
}
