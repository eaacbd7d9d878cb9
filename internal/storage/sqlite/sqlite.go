// Package sqlite implements storage.Store on an embedded SQLite database.
//
// It backs single-node deployments and the test suites. All access goes
// through one connection, so every write transaction is serialized and an
// operation's ledger can never be torn by concurrent transitions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/storage"
)

const driverName = "sqlite"

// tsLayout keeps a fixed fraction width so stored timestamps sort lexically.
const tsLayout = "2006-01-02T15:04:05.000000Z07:00"

// Store is the SQLite-backed storage.Store.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and applies the
// schema. An empty path or ":memory:" opens a private in-memory database.
func Open(ctx context.Context, path string, logger *slog.Logger) (*Store, error) {
	path = strings.TrimSpace(path)
	var dsn string
	switch {
	case path == "" || path == ":memory:":
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	default:
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("sqlite: create dir: %w", err)
			}
		}
		dsn = "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// PathFromDSN extracts a database path from a sqlite:// or file: DSN.
func PathFromDSN(dsn string) string {
	for _, prefix := range []string{"sqlite://", "sqlite:", "file:"} {
		if strings.HasPrefix(dsn, prefix) {
			return strings.TrimPrefix(dsn, prefix)
		}
	}
	return dsn
}

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS op_id_counters (
			year INTEGER PRIMARY KEY,
			last_value INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS operations (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			op_id TEXT NOT NULL UNIQUE,
			feature TEXT NOT NULL,
			parameter TEXT NOT NULL,
			value TEXT NOT NULL CHECK (value <> ''),
			zone TEXT NOT NULL,
			sites_json TEXT NOT NULL,
			desired_date TEXT,
			planned_date TEXT,
			priority TEXT NOT NULL CHECK (priority IN ('High', 'Medium', 'Low')),
			status TEXT NOT NULL CHECK (status IN ('PENDING', 'PLANNED', 'EXECUTED', 'FAILED')),
			initial_comment TEXT,
			created_by_name TEXT NOT NULL,
			created_by_email TEXT NOT NULL DEFAULT '',
			updated_by_name TEXT NOT NULL,
			updated_by_email TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_status ON operations(status, seq);`,
		`CREATE INDEX IF NOT EXISTS idx_operations_feature ON operations(feature, parameter, seq);`,
		`CREATE TABLE IF NOT EXISTS operation_history (
			op_id TEXT NOT NULL REFERENCES operations(op_id),
			seq INTEGER NOT NULL CHECK (seq > 0),
			at TEXT NOT NULL,
			department TEXT NOT NULL CHECK (department IN ('Engineering', 'Pilotage', 'Operations')),
			from_status TEXT,
			to_status TEXT NOT NULL,
			comment TEXT NOT NULL,
			actor_name TEXT NOT NULL,
			prev_hash TEXT NOT NULL DEFAULT '',
			content_hash TEXT NOT NULL,
			PRIMARY KEY (op_id, seq),
			CHECK ((seq = 1) = (from_status IS NULL))
		);`,
		`CREATE TRIGGER IF NOT EXISTS operation_history_no_update
			BEFORE UPDATE ON operation_history
			BEGIN SELECT RAISE(ABORT, 'operation_history is append-only'); END;`,
		`CREATE TRIGGER IF NOT EXISTS operation_history_no_delete
			BEFORE DELETE ON operation_history
			BEGIN SELECT RAISE(ABORT, 'operation_history is append-only'); END;`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite: migrate: %w", err)
		}
	}
	return nil
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Backend names the storage engine.
func (s *Store) Backend() string { return "sqlite" }

// Close releases the database handle.
func (s *Store) Close(_ context.Context) {
	if err := s.db.Close(); err != nil && s.logger != nil {
		s.logger.Warn("sqlite: close failed", "error", err)
	}
}

type scanner interface {
	Scan(dest ...any) error
}

type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const operationColumns = `op_id, feature, parameter, value, zone, sites_json,
	desired_date, planned_date, priority, status, initial_comment,
	created_by_name, created_by_email, updated_by_name, updated_by_email,
	created_at, updated_at`

const historyColumns = `op_id, seq, at, department, from_status, to_status,
	comment, actor_name, prev_hash, content_hash`

// InsertOperation allocates an op_id and writes the operation with its
// creation entry in one transaction.
func (s *Store) InsertOperation(ctx context.Context, op model.Operation, creation model.HistoryEntry) (model.Operation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Operation{}, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	year := op.CreatedAt.UTC().Year()
	var n int
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO op_id_counters(year, last_value) VALUES (?, 1)
		ON CONFLICT(year) DO UPDATE SET last_value = last_value + 1
		RETURNING last_value
	`, year).Scan(&n); err != nil {
		return model.Operation{}, fmt.Errorf("sqlite: allocate op_id: %w", err)
	}
	op.OpID = storage.FormatOpID(year, n)

	sites, err := json.Marshal(op.Sites)
	if err != nil {
		return model.Operation{}, fmt.Errorf("sqlite: encode sites: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO operations(op_id, feature, parameter, value, zone, sites_json,
			desired_date, planned_date, priority, status, initial_comment,
			created_by_name, created_by_email, updated_by_name, updated_by_email,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		op.OpID, op.Feature, op.Parameter, op.Value, op.Zone, string(sites),
		nullable(op.DesiredDate), nullable(op.PlannedDate), string(op.Priority), string(op.Status), nullable(op.InitialComment),
		op.CreatedBy.Name, op.CreatedBy.Email, op.UpdatedBy.Name, op.UpdatedBy.Email,
		ts(op.CreatedAt), ts(op.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique constraint") {
			return model.Operation{}, fmt.Errorf("sqlite: insert operation %s: %w", op.OpID, storage.ErrDuplicate)
		}
		return model.Operation{}, fmt.Errorf("sqlite: insert operation: %w", err)
	}

	if err := insertHistory(ctx, tx, storage.SealCreation(op.OpID, creation)); err != nil {
		return model.Operation{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Operation{}, fmt.Errorf("sqlite: commit create: %w", err)
	}
	return op, nil
}

// ApplyTransition appends the ledger entry and updates the status of opID in
// one transaction. from_status is read inside that transaction.
func (s *Store) ApplyTransition(ctx context.Context, opID string, t model.Transition) (model.Operation, model.HistoryEntry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("sqlite: begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	current, err := getOperation(ctx, tx, opID)
	if err != nil {
		return model.Operation{}, model.HistoryEntry{}, err
	}
	last, err := scanHistory(tx.QueryRowContext(ctx,
		`SELECT `+historyColumns+` FROM operation_history WHERE op_id = ? ORDER BY seq DESC LIMIT 1`, opID))
	if err != nil {
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("sqlite: read ledger head: %w", err)
	}

	entry := storage.NextEntry(opID, current.Status, last, t)
	if err := insertHistory(ctx, tx, entry); err != nil {
		return model.Operation{}, model.HistoryEntry{}, err
	}

	updatedAt := entry.At
	if updatedAt.Before(current.CreatedAt) {
		updatedAt = current.CreatedAt
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE operations SET status = ?, updated_at = ?, updated_by_name = ?, updated_by_email = ?,
			planned_date = COALESCE(?, planned_date)
		WHERE op_id = ?
	`, string(t.ToStatus), ts(updatedAt), t.Actor.Name, t.Actor.Email, nullable(t.PlannedDate), opID); err != nil {
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("sqlite: update status: %w", err)
	}

	op, err := getOperation(ctx, tx, opID)
	if err != nil {
		return model.Operation{}, model.HistoryEntry{}, err
	}
	if err := tx.Commit(); err != nil {
		return model.Operation{}, model.HistoryEntry{}, fmt.Errorf("sqlite: commit transition: %w", err)
	}
	return op, entry, nil
}

// GetOperation reads an operation and optionally its ledger in one transaction.
func (s *Store) GetOperation(ctx context.Context, opID string, includeHistory bool) (model.OperationDetail, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.OperationDetail{}, fmt.Errorf("sqlite: begin read tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

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
func (s *Store) ListHistory(ctx context.Context, opID string) ([]model.HistoryEntry, error) {
	detail, err := s.GetOperation(ctx, opID, true)
	if err != nil {
		return nil, err
	}
	return detail.History, nil
}

// ListOperations returns operations matching every set filter field in
// creation order.
func (s *Store) ListOperations(ctx context.Context, f model.OperationFilter) ([]model.Operation, error) {
	var conds []string
	var args []any
	if f.Feature != "" {
		conds = append(conds, "feature = ?")
		args = append(args, f.Feature)
	}
	if f.Parameter != "" {
		conds = append(conds, "parameter = ?")
		args = append(args, f.Parameter)
	}
	if f.Priority != "" {
		conds = append(conds, "priority = ?")
		args = append(args, string(f.Priority))
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if strings.TrimSpace(f.Query) != "" {
		p := storage.LikePattern(f.Query)
		conds = append(conds, `(lower(op_id) LIKE ? ESCAPE '\' OR lower(feature) LIKE ? ESCAPE '\'
			OR lower(parameter) LIKE ? ESCAPE '\' OR lower(zone) LIKE ? ESCAPE '\' OR lower(value) LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p, p, p)
	}
	query := `SELECT ` + operationColumns + ` FROM operations`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list operations: %w", err)
	}
	return collectOperations(rows)
}

// ListPlanned returns PLANNED operations by planned date, undated last.
func (s *Store) ListPlanned(ctx context.Context) ([]model.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+operationColumns+` FROM operations
		WHERE status = 'PLANNED'
		ORDER BY planned_date IS NULL, planned_date ASC, seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list planned: %w", err)
	}
	return collectOperations(rows)
}

func getOperation(ctx context.Context, q queryer, opID string) (model.Operation, error) {
	op, err := scanOperation(q.QueryRowContext(ctx,
		`SELECT `+operationColumns+` FROM operations WHERE op_id = ?`, opID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Operation{}, fmt.Errorf("sqlite: operation %s: %w", opID, storage.ErrNotFound)
		}
		return model.Operation{}, fmt.Errorf("sqlite: get operation: %w", err)
	}
	return op, nil
}

func listHistory(ctx context.Context, q queryer, opID string) ([]model.HistoryEntry, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT `+historyColumns+` FROM operation_history WHERE op_id = ? ORDER BY seq ASC`, opID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []model.HistoryEntry
	for rows.Next() {
		e, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan history: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func insertHistory(ctx context.Context, q queryer, e model.HistoryEntry) error {
	var from any
	if e.FromStatus != nil {
		from = string(*e.FromStatus)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO operation_history(`+historyColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		e.OpID, e.Seq, ts(e.At), string(e.Department), from, string(e.ToStatus),
		e.Comment, e.ActorName, e.PrevHash, e.ContentHash,
	)
	if err != nil {
		return fmt.Errorf("sqlite: append history: %w", err)
	}
	return nil
}

func collectOperations(rows *sql.Rows) ([]model.Operation, error) {
	defer func() { _ = rows.Close() }()
	out := []model.Operation{}
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan operation: %w", err)
		}
		out = append(out, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterate operations: %w", err)
	}
	return out, nil
}

func scanOperation(s scanner) (model.Operation, error) {
	var (
		op                        model.Operation
		sitesRaw                  string
		desired, planned, comment sql.NullString
		priority, status          string
		createdRaw, updatedRaw    string
	)
	if err := s.Scan(
		&op.OpID, &op.Feature, &op.Parameter, &op.Value, &op.Zone, &sitesRaw,
		&desired, &planned, &priority, &status, &comment,
		&op.CreatedBy.Name, &op.CreatedBy.Email, &op.UpdatedBy.Name, &op.UpdatedBy.Email,
		&createdRaw, &updatedRaw,
	); err != nil {
		return model.Operation{}, err
	}
	if err := json.Unmarshal([]byte(sitesRaw), &op.Sites); err != nil {
		return model.Operation{}, fmt.Errorf("decode sites_json: %w", err)
	}
	op.DesiredDate = nullString(desired)
	op.PlannedDate = nullString(planned)
	op.InitialComment = nullString(comment)
	op.Priority = model.Priority(priority)
	op.Status = model.Status(status)
	var err error
	if op.CreatedAt, err = parseTS(createdRaw); err != nil {
		return model.Operation{}, fmt.Errorf("created_at: %w", err)
	}
	if op.UpdatedAt, err = parseTS(updatedRaw); err != nil {
		return model.Operation{}, fmt.Errorf("updated_at: %w", err)
	}
	return op, nil
}

func scanHistory(s scanner) (model.HistoryEntry, error) {
	var (
		e           model.HistoryEntry
		atRaw, dept string
		from        sql.NullString
		to          string
	)
	if err := s.Scan(&e.OpID, &e.Seq, &atRaw, &dept, &from, &to,
		&e.Comment, &e.ActorName, &e.PrevHash, &e.ContentHash); err != nil {
		return model.HistoryEntry{}, err
	}
	var err error
	if e.At, err = parseTS(atRaw); err != nil {
		return model.HistoryEntry{}, fmt.Errorf("at: %w", err)
	}
	e.Department = model.Department(dept)
	e.ToStatus = model.Status(to)
	if !e.ToStatus.Valid() {
		return model.HistoryEntry{}, fmt.Errorf("unknown to_status %q", to)
	}
	if from.Valid {
		st := model.Status(from.String)
		if !st.Valid() {
			return model.HistoryEntry{}, fmt.Errorf("unknown from_status %q", from.String)
		}
		e.FromStatus = &st
	}
	return e, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(tsLayout)
}

func parseTS(v string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", v, err)
	}
	return t.UTC(), nil
}

func nullable(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
