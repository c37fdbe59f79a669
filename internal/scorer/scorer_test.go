package scorer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

// fixedClock devuelve un scorer cuyo reloj está congelado en el instante dado.
func fixedClock(cfg Config, at time.Time) *MarketScorer {
	s := New(cfg)
	s.now = func() time.Time { return at }
	return s
}

func TestScoreEmptyHistory(t *testing.T) {
	s := New(DefaultConfig())
	result := s.Score("0xnone", "nyc")
	assert.Equal(t, 0, result.Total)
	assert.Equal(t, domain.ZoneNone, result.Zone)
	assert.Equal(t, 0, result.Observations)
}

func TestPriceZones(t *testing.T) {
	s := New(DefaultConfig())
	tests := []struct {
		price    float64
		wantPts  int
		wantZone domain.Zone
	}{
		{0.85, 30, domain.ZoneA},
		{0.88, 30, domain.ZoneA},
		{0.91, 30, domain.ZoneA},
		{0.80, 20, domain.ZoneB},
		{0.84, 20, domain.ZoneB},
		{0.92, 20, domain.ZoneB},
		{0.94, 20, domain.ZoneB},
		{0.78, 10, domain.ZoneC},
		{0.79, 10, domain.ZoneC},
		{0.77, 0, domain.ZoneNone},
		{0.95, 0, domain.ZoneNone},
		{0.50, 0, domain.ZoneNone},
	}
	for _, tt := range tests {
		pts, zone := s.priceScore(tt.price)
		assert.Equal(t, tt.wantPts, pts, "price %.2f", tt.price)
		assert.Equal(t, tt.wantZone, zone, "price %.2f", tt.price)
	}
}

func TestTrajectoryNeedsFourObservations(t *testing.T) {
	s := New(DefaultConfig())
	s.Record("0xm", 0.85, 300)
	s.Record("0xm", 0.85, 300)
	s.Record("0xm", 0.85, 300)

	result := s.Score("0xm", "")
	assert.Equal(t, 0, result.Trajectory)
	assert.Equal(t, 3, result.Observations)
}

func TestTrajectoryClassification(t *testing.T) {
	tests := []struct {
		name   string
		prices []float64
		want   int
	}{
		{"estable", []float64{0.850, 0.852, 0.851, 0.853}, 30},
		{"alza gradual", []float64{0.83, 0.84, 0.85, 0.86}, 20},
		{"alza rápida", []float64{0.78, 0.82, 0.86, 0.90}, 10},
		{"caída", []float64{0.88, 0.87, 0.85, 0.83}, 0},
		{"errática", []float64{0.85, 0.89, 0.83, 0.85}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultConfig())
			for _, p := range tt.prices {
				s.Record("0xm", p, 100)
			}
			result := s.Score("0xm", "")
			assert.Equal(t, tt.want, result.Trajectory)
		})
	}
}

func TestVolumeScore(t *testing.T) {
	s := New(DefaultConfig())
	assert.Equal(t, 20, s.volumeScore(500))
	assert.Equal(t, 20, s.volumeScore(1200))
	assert.Equal(t, 15, s.volumeScore(300))
	assert.Equal(t, 10, s.volumeScore(200))
	assert.Equal(t, 0, s.volumeScore(199))
}

func TestTimeScoreByLocalHour(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CityOffsets = map[string]int{"nyc": -5}

	tests := []struct {
		utcHour int
		want    int
	}{
		{22, 20}, // 17h local
		{21, 20}, // 16h local
		{19, 15}, // 14h local
		{17, 10}, // 12h local
		{15, 0},  // 10h local
	}
	for _, tt := range tests {
		at := time.Date(2025, 8, 9, tt.utcHour, 30, 0, 0, time.UTC)
		s := fixedClock(cfg, at)
		assert.Equal(t, tt.want, s.timeScore("nyc"), "utc hour %d", tt.utcHour)
	}

	// Ciudad sin offset conocido no aporta puntos.
	s := fixedClock(cfg, time.Date(2025, 8, 9, 22, 0, 0, 0, time.UTC))
	assert.Equal(t, 0, s.timeScore("atlantis"))
}

func TestPerfectScore(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CityOffsets = map[string]int{"nyc": -5}
	// 22:00 UTC → 17h local → +20 tiempo
	s := fixedClock(cfg, time.Date(2025, 8, 9, 22, 0, 0, 0, time.UTC))

	// Zona A estable con volumen alto: 30 + 30 + 20 + 20 = 100.
	for _, p := range []float64{0.870, 0.871, 0.870, 0.872} {
		s.Record("0xbest", p, 600)
	}

	result := s.Score("0xbest", "nyc")
	assert.Equal(t, 100, result.Total)
	assert.Equal(t, 30, result.Price)
	assert.Equal(t, 30, result.Trajectory)
	assert.Equal(t, 20, result.Volume)
	assert.Equal(t, 20, result.Time)
	assert.Equal(t, domain.ZoneA, result.Zone)
}

func TestHistoryFIFOCap(t *testing.T) {
	s := New(DefaultConfig())
	for i := 0; i < maxHistoryPerMarket+25; i++ {
		s.Record("0xm", 0.85, 100)
	}
	result := s.Score("0xm", "")
	assert.Equal(t, maxHistoryPerMarket, result.Observations)
}

func TestPurgeOldDropsWholeHistory(t *testing.T) {
	cfg := DefaultConfig()
	cfg.HistoryTTL = time.Hour

	base := time.Date(2025, 8, 9, 10, 0, 0, 0, time.UTC)
	s := fixedClock(cfg, base)

	s.Record("0xstale", 0.85, 300)

	// Avanzar el reloj y registrar actividad solo en el segundo mercado.
	s.now = func() time.Time { return base.Add(2 * time.Hour) }
	s.Record("0xfresh", 0.86, 300)

	purged := s.PurgeOld()
	assert.Equal(t, 1, purged)
	assert.Equal(t, 1, s.Tracked())
	assert.Equal(t, 0, s.Score("0xstale", "").Observations)
	assert.Equal(t, 1, s.Score("0xfresh", "").Observations)
}

func TestAllScoresOmitsTimeSignal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CityOffsets = map[string]int{"nyc": -5}
	s := fixedClock(cfg, time.Date(2025, 8, 9, 22, 0, 0, 0, time.UTC))

	s.Record("0xm", 0.85, 600)

	all := s.AllScores()
	require.Len(t, all, 1)
	assert.Equal(t, 0, all["0xm"].Time)

	// Con ciudad sí aporta.
	assert.Equal(t, 20, s.Score("0xm", "nyc").Time)
}
