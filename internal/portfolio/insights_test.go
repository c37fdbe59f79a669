package portfolio

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

func closedRec(city string, hour int, pnl float64, status domain.Status) domain.ClosedPosition {
	entry := time.Date(2025, 8, 9, hour, 15, 0, 0, time.UTC)
	return domain.ClosedPosition{
		RecordID:    uuid.NewString(),
		ConditionID: uuid.NewString(),
		City:        city,
		EntryNo:     0.85,
		Allocated:   8,
		PnL:         pnl,
		Status:      status,
		EntryTime:   entry,
		CloseTime:   entry.Add(time.Hour),
	}
}

func TestInsightsBelowMinimum(t *testing.T) {
	p := newTestPortfolio(100)
	p.Lock()
	defer p.Unlock()

	for i := 0; i < 4; i++ {
		p.closed = append(p.closed, closedRec("nyc", 16, 1, domain.StatusWon))
	}
	assert.Nil(t, p.ComputeInsights())
}

func TestInsightsExcludePartialAndLiquidated(t *testing.T) {
	p := newTestPortfolio(100)
	p.Lock()
	defer p.Unlock()

	for i := 0; i < 4; i++ {
		p.closed = append(p.closed, closedRec("nyc", 16, 1, domain.StatusWon))
	}
	// Estos no cuentan para el mínimo de 5.
	p.closed = append(p.closed, closedRec("nyc", 16, 0.4, domain.StatusPartial))
	p.closed = append(p.closed, closedRec("nyc", 16, -0.1, domain.StatusLiquidated))

	assert.Nil(t, p.ComputeInsights())

	// Un quinto cierre resuelto sí habilita los insights.
	p.closed = append(p.closed, closedRec("chicago", 18, -8, domain.StatusLost))
	ins := p.ComputeInsights()
	require.NotNil(t, ins)
	assert.Equal(t, 5, ins.TotalTrades)
	assert.Equal(t, 0.8, ins.OverallWinRate)
}

func TestInsightsBuckets(t *testing.T) {
	p := newTestPortfolio(100)
	p.Lock()
	defer p.Unlock()

	// nyc a las 16h: 3 ganadas. chicago a las 18h: 1 ganada, 2 perdidas.
	for i := 0; i < 3; i++ {
		p.closed = append(p.closed, closedRec("nyc", 16, 1.2, domain.StatusWon))
	}
	p.closed = append(p.closed, closedRec("chicago", 18, 0.9, domain.StatusWon))
	p.closed = append(p.closed, closedRec("chicago", 18, -8, domain.StatusLost))
	p.closed = append(p.closed, closedRec("chicago", 18, -8, domain.StatusHardStop))
	// Un solo trade en miami: por debajo del mínimo de bucket, no aparece.
	p.closed = append(p.closed, closedRec("miami", 13, 1, domain.StatusWon))

	ins := p.ComputeInsights()
	require.NotNil(t, ins)
	assert.Equal(t, 7, ins.TotalTrades)

	require.Len(t, ins.ByCity, 2)
	assert.Equal(t, "nyc", ins.ByCity[0].City)
	assert.Equal(t, 1.0, ins.ByCity[0].WinRate)
	assert.Equal(t, "chicago", ins.ByCity[1].City)
	assert.InDelta(t, 0.33, ins.ByCity[1].WinRate, 1e-9)

	require.Len(t, ins.ByHour, 2)
	assert.Equal(t, 16, ins.ByHour[0].Hour)
	assert.Equal(t, 3, ins.ByHour[0].Trades)
}
