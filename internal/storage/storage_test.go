package storage_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yami-59/network-ops-demo/internal/integrity"
	"github.com/yami-59/network-ops-demo/internal/model"
	"github.com/yami-59/network-ops-demo/internal/storage"
	"github.com/yami-59/network-ops-demo/internal/testutil"
	"github.com/yami-59/network-ops-demo/migrations"
)

// testDB holds a shared test database connection for all tests in this
// package. It stays nil when Docker is unavailable.
var testDB *storage.DB

func TestMain(m *testing.M) {
	ctx := context.Background()

	tc, err := testutil.StartPostgres()
	if err != nil {
		fmt.Fprintf(os.Stderr, "postgres tests disabled: %v\n", err)
		os.Exit(m.Run())
	}

	testDB, err = tc.NewTestDB(ctx, testutil.TestLogger())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create DB: %v\n", err)
		tc.Terminate()
		os.Exit(1)
	}

	code := m.Run()

	testDB.Close(ctx)
	tc.Terminate()
	os.Exit(code)
}

func requireDB(t *testing.T) *storage.DB {
	t.Helper()
	if testDB == nil {
		t.Skip("postgres container unavailable")
	}
	return testDB
}

// Each test creates operations in its own year so op_id numbering is
// independent of test order.
func createOp(t *testing.T, db *storage.DB, year int, feature, param string) model.Operation {
	t.Helper()
	at := time.Date(year, 5, 1, 8, 0, 0, 0, time.UTC)
	op, err := db.InsertOperation(context.Background(), model.Operation{
		Feature:   feature,
		Parameter: param,
		Value:     "10",
		Zone:      "Rural",
		Sites:     []string{"SITE_A"},
		Priority:  model.PriorityMedium,
		Status:    model.StatusPending,
		CreatedBy: model.Actor{Name: "eng", Email: "eng@example.com"},
		UpdatedBy: model.Actor{Name: "eng", Email: "eng@example.com"},
		CreatedAt: at,
		UpdatedAt: at,
	}, model.HistoryEntry{
		At:         at,
		Department: model.DepartmentEngineering,
		ToStatus:   model.StatusPending,
		Comment:    "Création de la demande.",
		ActorName:  "eng",
	})
	require.NoError(t, err)
	return op
}

func TestMigrationsAreIdempotent(t *testing.T) {
	db := requireDB(t)
	require.NoError(t, db.RunMigrations(context.Background(), migrations.FS))
}

func TestPostgresInsertAllocatesPerYear(t *testing.T) {
	db := requireDB(t)

	a := createOp(t, db, 2031, "5G – Power Optimization", "TX_POWER")
	b := createOp(t, db, 2031, "5G – Power Optimization", "TX_POWER")
	c := createOp(t, db, 2032, "5G – Power Optimization", "TX_POWER")

	assert.Equal(t, "OP-2031-0001", a.OpID)
	assert.Equal(t, "OP-2031-0002", b.OpID)
	assert.Equal(t, "OP-2032-0001", c.OpID)
}

func TestPostgresTransitionAndHistory(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	op := createOp(t, db, 2033, "5G – Beam Configuration", "BEAM_COUNT")

	planned := "2033-05-10"
	got, entry, err := db.ApplyTransition(ctx, op.OpID, model.Transition{
		Department:  model.DepartmentPilotage,
		ToStatus:    model.StatusPlanned,
		Comment:     "window booked",
		Actor:       model.Actor{Name: "pilot"},
		PlannedDate: &planned,
		At:          time.Date(2033, 5, 2, 8, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, model.StatusPlanned, got.Status)
	require.NotNil(t, got.PlannedDate)
	assert.Equal(t, planned, *got.PlannedDate)
	assert.Equal(t, 2, entry.Seq)

	detail, err := db.GetOperation(ctx, op.OpID, true)
	require.NoError(t, err)
	require.Len(t, detail.History, 2)
	report := integrity.VerifyChain(op.OpID, detail.History, detail.Request.Status)
	assert.True(t, report.Valid, "problems: %v", report.Problems)

	planning, err := db.ListPlanned(ctx)
	require.NoError(t, err)
	var found bool
	for _, p := range planning {
		found = found || p.OpID == op.OpID
	}
	assert.True(t, found)
}

func TestPostgresNotFound(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()

	_, err := db.GetOperation(ctx, "OP-1999-0001", true)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	_, _, err = db.ApplyTransition(ctx, "OP-1999-0001", model.Transition{
		Department: model.DepartmentOperations, ToStatus: model.StatusExecuted, Comment: "x", At: time.Now(),
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestPostgresConcurrentTransitions(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	op := createOp(t, db, 2034, "5G – Power Optimization", "POWER_OFFSET")

	const n = 10
	var wg sync.WaitGroup
	for i := range n {
		wg.Go(func() {
			_, _, err := db.ApplyTransition(ctx, op.OpID, model.Transition{
				Department: model.DepartmentOperations,
				ToStatus:   []model.Status{model.StatusPlanned, model.StatusFailed}[i%2],
				Comment:    "race",
				At:         time.Date(2034, 5, 2, 8, 0, i, 0, time.UTC),
			})
			assert.NoError(t, err)
		})
	}
	wg.Wait()

	history, err := db.ListHistory(ctx, op.OpID)
	require.NoError(t, err)
	require.Len(t, history, n+1)
	detail, err := db.GetOperation(ctx, op.OpID, false)
	require.NoError(t, err)
	report := integrity.VerifyChain(op.OpID, history, detail.Request.Status)
	assert.True(t, report.Valid, "problems: %v", report.Problems)
}

func TestPostgresListFilters(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	marker := "FILTER_2035"
	op := createOp(t, db, 2035, "5G – Power Optimization", marker)

	got, err := db.ListOperations(ctx, model.OperationFilter{Parameter: marker, Status: model.StatusPending})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, op.OpID, got[0].OpID)

	got, err = db.ListOperations(ctx, model.OperationFilter{Query: "filter_2035"})
	require.NoError(t, err)
	require.Len(t, got, 1)

	got, err = db.ListOperations(ctx, model.OperationFilter{Parameter: marker, Status: model.StatusExecuted})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPostgresHistoryAppendOnly(t *testing.T) {
	db := requireDB(t)
	ctx := context.Background()
	op := createOp(t, db, 2036, "5G – Power Optimization", "TX_POWER")

	_, err := db.Pool().Exec(ctx, `UPDATE operation_history SET comment = 'edited' WHERE op_id = $1`, op.OpID)
	require.Error(t, err)
	_, err = db.Pool().Exec(ctx, `DELETE FROM operation_history WHERE op_id = $1`, op.OpID)
	require.Error(t, err)
}
