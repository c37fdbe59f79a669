package storage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	s, err := NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStateRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	// Sin estado previo devuelve nil, no error.
	st, err := s.LoadState(ctx)
	require.NoError(t, err)
	assert.Nil(t, st)

	start := time.Date(2025, 8, 9, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveState(ctx, domain.LedgerState{
		CapitalInicial:    100,
		CapitalTotal:      112.5,
		CapitalDisponible: 80.25,
		SessionStart:      start,
	}))

	st, err = s.LoadState(ctx)
	require.NoError(t, err)
	require.NotNil(t, st)
	assert.Equal(t, 100.0, st.CapitalInicial)
	assert.Equal(t, 112.5, st.CapitalTotal)
	assert.Equal(t, 80.25, st.CapitalDisponible)
	assert.True(t, st.SessionStart.Equal(start))

	// Segunda escritura sobreescribe la fila única.
	require.NoError(t, s.SaveState(ctx, domain.LedgerState{
		CapitalInicial:    100,
		CapitalTotal:      95,
		CapitalDisponible: 95,
		SessionStart:      start,
	}))
	st, err = s.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, 95.0, st.CapitalTotal)
}

func TestOpenPositionLifecycle(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	pos := domain.Position{
		ConditionID: "0xabc",
		City:        "nyc",
		Question:    "Will the highest temperature in NYC be 90-91°F?",
		Slug:        "highest-temperature-in-nyc-90",
		NoTokenID:   "tok-no",
		EntryNo:     0.85,
		CurrentNo:   0.85,
		Allocated:   8,
		Tokens:      9.41,
		MaxGain:     1.41,
		TrailStop:   0.82,
		Score:       75,
		Status:      domain.StatusOpen,
		EntryTime:   time.Date(2025, 8, 9, 15, 30, 0, 0, time.UTC),
	}
	require.NoError(t, s.UpsertOpenPosition(ctx, pos))

	// Update del refresher: mismo condition_id, precio y trail nuevos.
	pos.CurrentNo = 0.88
	pos.TrailStop = 0.85
	pos.PartialDone = true
	require.NoError(t, s.UpsertOpenPosition(ctx, pos))

	loaded, err := s.LoadOpenPositions(ctx)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[0]
	assert.Equal(t, "0xabc", got.ConditionID)
	assert.Equal(t, 0.88, got.CurrentNo)
	assert.Equal(t, 0.85, got.TrailStop)
	assert.True(t, got.PartialDone)
	assert.Equal(t, domain.StatusOpen, got.Status)
	assert.True(t, got.EntryTime.Equal(pos.EntryTime))

	require.NoError(t, s.DeleteOpenPosition(ctx, "0xabc"))
	loaded, err = s.LoadOpenPositions(ctx)
	require.NoError(t, err)
	assert.Empty(t, loaded)

	// Borrar lo que no existe no es error.
	require.NoError(t, s.DeleteOpenPosition(ctx, "0xabc"))
}

func TestClosedPositionsOrdered(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 8, 9, 10, 0, 0, 0, time.UTC)
	for i, status := range []domain.Status{domain.StatusWon, domain.StatusHardStop, domain.StatusPartial} {
		rec := domain.ClosedPosition{
			RecordID:    uuid.NewString(),
			ConditionID: "0xabc",
			City:        "chicago",
			EntryNo:     0.84,
			Allocated:   6,
			PnL:         float64(i),
			Status:      status,
			Resolution:  "test",
			EntryTime:   base,
			CloseTime:   base.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, s.InsertClosedPosition(ctx, rec))
	}

	records, err := s.LoadClosedPositions(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, domain.StatusWon, records[0].Status)
	assert.Equal(t, domain.StatusPartial, records[2].Status)
	assert.Equal(t, 2.0, records[2].PnL)
}

func TestCapitalHistoryRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	base := time.Date(2025, 8, 9, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, s.AppendCapitalPoint(ctx, domain.CapitalPoint{
			Time:    base.Add(time.Duration(i) * time.Minute),
			Capital: 100 + float64(i),
		}))
	}

	points, err := s.LoadCapitalHistory(ctx)
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.Equal(t, 100.0, points[0].Capital)
	assert.Equal(t, 102.0, points[2].Capital)
	assert.True(t, points[1].Time.Equal(base.Add(time.Minute)))
}
