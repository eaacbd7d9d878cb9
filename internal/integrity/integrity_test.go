package integrity

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yami-59/network-ops-demo/internal/model"
)

func statusPtr(s model.Status) *model.Status { return &s }

func buildLedger(t *testing.T) []model.HistoryEntry {
	t.Helper()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	raw := []model.HistoryEntry{
		{OpID: "OP-2026-0001", Seq: 1, At: base, Department: model.DepartmentEngineering, ToStatus: model.StatusPending, Comment: "Création de la demande.", ActorName: "Yamin"},
		{OpID: "OP-2026-0001", Seq: 2, At: base.Add(time.Hour), Department: model.DepartmentPilotage, FromStatus: statusPtr(model.StatusPending), ToStatus: model.StatusPlanned, Comment: "scheduled", ActorName: "Jean"},
		{OpID: "OP-2026-0001", Seq: 3, At: base.Add(2 * time.Hour), Department: model.DepartmentOperations, FromStatus: statusPtr(model.StatusPlanned), ToStatus: model.StatusExecuted, Comment: "done | ok", ActorName: "Léo"},
	}
	prev := ""
	out := make([]model.HistoryEntry, len(raw))
	for i, e := range raw {
		out[i] = Seal(e, prev)
		prev = out[i].ContentHash
	}
	return out
}

func TestEntryHash_Deterministic(t *testing.T) {
	e := buildLedger(t)[1]

	h1 := EntryHash(e, e.PrevHash)
	h2 := EntryHash(e, e.PrevHash)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, len(hashV1Prefix)+64)
}

func TestEntryHash_DependsOnPredecessor(t *testing.T) {
	e := buildLedger(t)[1]
	assert.NotEqual(t, EntryHash(e, "v1:aaaa"), EntryHash(e, "v1:bbbb"))
}

func TestEntryHash_DelimiterCollision(t *testing.T) {
	a := model.HistoryEntry{OpID: "OP-2026-0001", Seq: 2, Comment: "a|b", ActorName: "c"}
	b := model.HistoryEntry{OpID: "OP-2026-0001", Seq: 2, Comment: "a", ActorName: "b|c"}
	assert.NotEqual(t, EntryHash(a, ""), EntryHash(b, ""))
}

func TestEntryHash_IgnoresSubMicrosecond(t *testing.T) {
	e := buildLedger(t)[0]
	f := e
	f.At = e.At.Add(300 * time.Nanosecond)
	assert.Equal(t, EntryHash(e, ""), EntryHash(f, ""))
}

func TestVerifyChain_Valid(t *testing.T) {
	ledger := buildLedger(t)
	r := VerifyChain("OP-2026-0001", ledger, model.StatusExecuted)
	require.True(t, r.Valid, "problems: %v", r.Problems)
	assert.Equal(t, 3, r.Entries)
	assert.Equal(t, ledger[2].ContentHash, r.HeadHash)
}

func TestVerifyChain_Detects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func([]model.HistoryEntry) []model.HistoryEntry
		current model.Status
	}{
		{
			name: "edited comment",
			mutate: func(l []model.HistoryEntry) []model.HistoryEntry {
				l[1].Comment = "rewritten"
				return l
			},
			current: model.StatusExecuted,
		},
		{
			name: "dropped entry",
			mutate: func(l []model.HistoryEntry) []model.HistoryEntry {
				return append(l[:1], l[2:]...)
			},
			current: model.StatusExecuted,
		},
		{
			name:    "status drift",
			mutate:  func(l []model.HistoryEntry) []model.HistoryEntry { return l },
			current: model.StatusFailed,
		},
		{
			name: "broken status chain",
			mutate: func(l []model.HistoryEntry) []model.HistoryEntry {
				l[2].FromStatus = statusPtr(model.StatusPending)
				l[2] = Seal(l[2], l[2].PrevHash)
				return l
			},
			current: model.StatusExecuted,
		},
		{
			name: "time goes backwards",
			mutate: func(l []model.HistoryEntry) []model.HistoryEntry {
				l[2].At = l[0].At.Add(-time.Minute)
				l[2] = Seal(l[2], l[2].PrevHash)
				return l
			},
			current: model.StatusExecuted,
		},
		{
			name:    "empty",
			mutate:  func([]model.HistoryEntry) []model.HistoryEntry { return nil },
			current: model.StatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ledger := tt.mutate(buildLedger(t))
			r := VerifyChain("OP-2026-0001", ledger, tt.current)
			assert.False(t, r.Valid)
			assert.NotEmpty(t, r.Problems)
		})
	}
}
