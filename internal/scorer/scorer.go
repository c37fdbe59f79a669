package scorer

// scorer.go — sistema de puntuación multi-señal.
//
// Cada mercado acumula un historial de (timestamp, no_price, volume).
// El score 0-100 combina 4 señales independientes:
//
//	Precio      (0/10/20/30): zona A=30, B=20, C=10, fuera=0
//	Trayectoria (0/10/20/30): estable=30, alza gradual=20, alza rápida=10, caída=0
//	Volumen     (0/10/15/20): tres umbrales descendentes
//	Tiempo      (0/10/15/20): ≥16h local=20, 14-16h=15, 12-14h=10, <12h=0

import (
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

const maxHistoryPerMarket = 50

// Config parametriza las bandas y umbrales del scorer.
// Las zonas están anidadas: A ⊂ B ⊂ C — se evalúan en ese orden.
type Config struct {
	// Zona A (sweet spot): [ZoneAMin, ZoneAMax]
	ZoneAMin float64
	ZoneAMax float64
	// Zona B (bordes): [ZoneBMin, ZoneAMin) ∪ (ZoneAMax, ZoneBMax]
	ZoneBMin float64
	ZoneBMax float64
	// Zona C (extremo): [ZoneCMin, ZoneBMin)
	ZoneCMin float64

	// Trayectoria sobre las últimas 4 observaciones
	FastRiseStep    float64 // avg por paso por encima → alza rápida (10)
	GradualRiseStep float64 // avg por paso a partir de → alza gradual (20)
	StableSpread    float64 // variación total por debajo → estable (30)

	// Umbrales de volumen
	VolumeHigh float64
	VolumeMid  float64
	VolumeLow  float64

	// TTL del historial desde la última observación
	HistoryTTL time.Duration

	// Offsets UTC por ciudad para el sub-score de tiempo
	CityOffsets map[string]int
}

// DefaultConfig devuelve las bandas de la estrategia V3.
func DefaultConfig() Config {
	return Config{
		ZoneAMin:        0.85,
		ZoneAMax:        0.91,
		ZoneBMin:        0.80,
		ZoneBMax:        0.94,
		ZoneCMin:        0.78,
		FastRiseStep:    0.02,
		GradualRiseStep: 0.005,
		StableSpread:    0.01,
		VolumeHigh:      500,
		VolumeMid:       300,
		VolumeLow:       200,
		HistoryTTL:      time.Hour,
	}
}

// observation es una lectura de precio/volumen en un instante.
type observation struct {
	ts     time.Time
	price  float64
	volume float64
}

// MarketScorer acumula historiales por mercado y calcula scores.
// Thread-safe con su propio lock, independiente del lock del portfolio.
type MarketScorer struct {
	mu      sync.Mutex
	history map[string][]observation
	cfg     Config
	now     func() time.Time
}

// New crea un MarketScorer con la configuración dada.
func New(cfg Config) *MarketScorer {
	if cfg.HistoryTTL <= 0 {
		cfg.HistoryTTL = time.Hour
	}
	return &MarketScorer{
		history: make(map[string][]observation),
		cfg:     cfg,
		now:     time.Now,
	}
}

// Record añade una observación del CLOB. Mantiene las últimas
// maxHistoryPerMarket entradas (FIFO, se descartan las más viejas).
func (s *MarketScorer) Record(conditionID string, noPrice, volume float64) {
	ts := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	hist := append(s.history[conditionID], observation{ts: ts, price: noPrice, volume: volume})
	if len(hist) > maxHistoryPerMarket {
		hist = hist[len(hist)-maxHistoryPerMarket:]
	}
	s.history[conditionID] = hist
}

// Score devuelve el desglose completo del score de un mercado.
// Sin historial devuelve un resultado en cero con zona "-".
func (s *MarketScorer) Score(conditionID, city string) domain.ScoreResult {
	s.mu.Lock()
	hist := make([]observation, len(s.history[conditionID]))
	copy(hist, s.history[conditionID])
	s.mu.Unlock()

	if len(hist) == 0 {
		return domain.ScoreResult{Zone: domain.ZoneNone}
	}

	last := hist[len(hist)-1]
	pricePts, zone := s.priceScore(last.price)
	trajPts := s.trajectoryScore(hist)
	volPts := s.volumeScore(last.volume)
	timePts := s.timeScore(city)

	return domain.ScoreResult{
		Total:        pricePts + trajPts + volPts + timePts,
		Price:        pricePts,
		Trajectory:   trajPts,
		Volume:       volPts,
		Time:         timePts,
		Observations: len(hist),
		Zone:         zone,
	}
}

// AllScores devuelve el score de todos los mercados en seguimiento.
// Sin contexto de ciudad — el sub-score de tiempo queda en 0.
// Para reporting, no para decisiones de entrada.
func (s *MarketScorer) AllScores() map[string]domain.ScoreResult {
	s.mu.Lock()
	cids := make([]string, 0, len(s.history))
	for cid := range s.history {
		cids = append(cids, cid)
	}
	s.mu.Unlock()

	result := make(map[string]domain.ScoreResult, len(cids))
	for _, cid := range cids {
		result[cid] = s.Score(cid, "")
	}
	return result
}

// PurgeOld elimina historiales cuya última observación supera el TTL.
// Se descarta el historial completo del mercado, no observaciones sueltas.
func (s *MarketScorer) PurgeOld() int {
	cutoff := s.now().Add(-s.cfg.HistoryTTL)
	purged := 0

	s.mu.Lock()
	for cid, hist := range s.history {
		if len(hist) > 0 && hist[len(hist)-1].ts.Before(cutoff) {
			delete(s.history, cid)
			purged++
		}
	}
	s.mu.Unlock()

	if purged > 0 {
		slog.Info("scorer purged stale histories", "count", purged)
	}
	return purged
}

// Tracked devuelve cuántos mercados tienen historial activo.
func (s *MarketScorer) Tracked() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}

// --- sub-scores ---

// priceScore clasifica el último precio NO en las zonas anidadas.
// El orden de evaluación importa: centro antes que bordes antes que extremo.
func (s *MarketScorer) priceScore(noPrice float64) (int, domain.Zone) {
	cfg := s.cfg
	if noPrice >= cfg.ZoneAMin && noPrice <= cfg.ZoneAMax {
		return 30, domain.ZoneA
	}
	if (noPrice >= cfg.ZoneBMin && noPrice < cfg.ZoneAMin) ||
		(noPrice > cfg.ZoneAMax && noPrice <= cfg.ZoneBMax) {
		return 20, domain.ZoneB
	}
	if noPrice >= cfg.ZoneCMin && noPrice < cfg.ZoneBMin {
		return 10, domain.ZoneC
	}
	return 0, domain.ZoneNone
}

// trajectoryScore puntúa las últimas 4 observaciones.
// Un alza rápida se penaliza: momentum sin estabilidad es más arriesgado.
// Requiere al menos 4 observaciones.
func (s *MarketScorer) trajectoryScore(hist []observation) int {
	if len(hist) < 4 {
		return 0
	}
	last4 := hist[len(hist)-4:]

	minP, maxP := last4[0].price, last4[0].price
	for _, o := range last4[1:] {
		if o.price < minP {
			minP = o.price
		}
		if o.price > maxP {
			maxP = o.price
		}
	}
	spread := maxP - minP
	avgStep := (last4[3].price - last4[0].price) / 3

	if avgStep > s.cfg.FastRiseStep {
		return 10
	}
	if avgStep >= s.cfg.GradualRiseStep {
		return 20
	}
	if spread < s.cfg.StableSpread {
		return 30
	}
	return 0 // caída o errática
}

func (s *MarketScorer) volumeScore(volume float64) int {
	switch {
	case volume >= s.cfg.VolumeHigh:
		return 20
	case volume >= s.cfg.VolumeMid:
		return 15
	case volume >= s.cfg.VolumeLow:
		return 10
	}
	return 0
}

// timeScore puntúa según la hora local de la ciudad.
// A última hora de la tarde el clima está casi decidido.
func (s *MarketScorer) timeScore(city string) int {
	offset, ok := s.cfg.CityOffsets[city]
	if !ok {
		return 0
	}
	h := s.now().UTC().Add(time.Duration(offset) * time.Hour).Hour()
	switch {
	case h >= 16:
		return 20
	case h >= 14:
		return 15
	case h >= 12:
		return 10
	}
	return 0
}
