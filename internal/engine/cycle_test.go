package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/weatherbot/internal/domain"
	"github.com/alejandrodnm/weatherbot/internal/portfolio"
	"github.com/alejandrodnm/weatherbot/internal/scorer"
)

// fakeProvider implementa MarketProvider y PriceProvider con respuestas
// programadas por token/slug.
type fakeProvider struct {
	mu         sync.Mutex
	candidates []domain.Candidate
	clobPrices map[string]domain.PricePair // noTokenID → par
	livePrices map[string]domain.PricePair // slug → par
	clobCalls  int
	liveCalls  int
}

func (f *fakeProvider) ScanOpportunities(_ context.Context, excluded map[string]bool) ([]domain.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Candidate
	for _, c := range f.candidates {
		if !excluded[c.ConditionID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeProvider) FetchNoPriceCLOB(_ context.Context, noTokenID string) (float64, float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clobCalls++
	pair, ok := f.clobPrices[noTokenID]
	if !ok {
		return 0, 0, false
	}
	return pair.Yes, pair.No, true
}

func (f *fakeProvider) FetchLivePrices(_ context.Context, slug string) (float64, float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.liveCalls++
	pair, ok := f.livePrices[slug]
	if !ok {
		return 0, 0, false
	}
	return pair.Yes, pair.No, true
}

func testEngineConfig() Config {
	return Config{
		MonitorInterval:     time.Hour,
		PriceUpdateInterval: time.Hour,
		EntryNoMin:          0.78,
		EntryNoMax:          0.93,
		MinEntryScore:       60,
		Sizing:              domain.SizingConfig{MinScore: 60, BasePct: 0.06, MaxPct: 0.10},
		MaxCLOBVerify:       20,
	}
}

func testCandidate(cid, tok string, noPrice float64) domain.Candidate {
	return domain.Candidate{
		ConditionID: cid,
		City:        "nyc",
		Question:    "Will the highest temperature in NYC be 90-91°F?",
		Slug:        "slug-" + cid,
		NoTokenID:   tok,
		NoPrice:     noPrice,
		Volume:      600,
	}
}

// readyScorer devuelve un scorer con historial estable, de forma que el
// siguiente Record produce score 80 (precio 30 + trayectoria 30 + volumen 20).
// Sin offsets de ciudad el sub-score de tiempo siempre es 0: el total no
// depende del reloj del test.
func readyScorer(cid string) *scorer.MarketScorer {
	sc := scorer.New(scorer.DefaultConfig())
	// 3 observaciones previas estables: la cuarta llega del ciclo.
	for i := 0; i < 3; i++ {
		sc.Record(cid, 0.870, 600)
	}
	return sc
}

func newTestRunner(fp *fakeProvider, sc *scorer.MarketScorer) (*Runner, *portfolio.Portfolio) {
	pf := portfolio.New(portfolio.Config{
		MaxPositions:      20,
		TrailStopDistance: 0.03,
		HalfExitGain:      0.07,
		HardStopDrop:      0.05,
	}, nil, 100)
	return New(testEngineConfig(), fp, fp, pf, sc, nil), pf
}

func TestCycleOpensQualifiedCandidate(t *testing.T) {
	fp := &fakeProvider{
		candidates: []domain.Candidate{testCandidate("0xa", "tok-a", 0.87)},
		clobPrices: map[string]domain.PricePair{"tok-a": {Yes: 0.13, No: 0.87}},
	}
	r, pf := newTestRunner(fp, readyScorer("0xa"))

	r.cycle(context.Background())

	// Zona A (30) + estable (30) + volumen 600 (20) ≥ 60 → entra.
	require.Equal(t, 1, pf.OpenCount())

	pf.Lock()
	open := pf.OpenList()
	ledger := pf.Ledger()
	pf.Unlock()

	pos := open[0]
	assert.Equal(t, "0xa", pos.ConditionID)
	assert.Equal(t, 0.87, pos.EntryNo)
	// Score 80 con sizing 60→100 : 6%→10% = 8% de 100.
	assert.InDelta(t, 8.0, pos.Allocated, 1e-9)
	assert.InDelta(t, 92.0, ledger.CapitalDisponible, 1e-9)

	assert.Equal(t, 1, r.ScanCount())
	opps := r.LastOpportunities()
	require.Len(t, opps, 1)
	assert.True(t, opps[0].CLOBOk)
	assert.Equal(t, 80, opps[0].ScoreTotal)
}

func TestCycleRejectsLowScore(t *testing.T) {
	// Sin historial previo (trayectoria 0) ni hora local: 30+20=50 < 60.
	fp := &fakeProvider{
		candidates: []domain.Candidate{testCandidate("0xa", "tok-a", 0.87)},
		clobPrices: map[string]domain.PricePair{"tok-a": {Yes: 0.13, No: 0.87}},
	}
	r, pf := newTestRunner(fp, scorer.New(scorer.DefaultConfig()))

	r.cycle(context.Background())
	assert.Equal(t, 0, pf.OpenCount())
}

func TestCycleRejectsOutOfBandPrice(t *testing.T) {
	fp := &fakeProvider{
		candidates: []domain.Candidate{testCandidate("0xa", "tok-a", 0.95)},
		clobPrices: map[string]domain.PricePair{"tok-a": {Yes: 0.05, No: 0.95}},
	}
	r, pf := newTestRunner(fp, readyScorer("0xa"))

	r.cycle(context.Background())
	assert.Equal(t, 0, pf.OpenCount())
}

func TestCycleDiscardsInvertedToken(t *testing.T) {
	// NO < 0.50 en el CLOB indica tokens invertidos — nunca se opera.
	fp := &fakeProvider{
		candidates: []domain.Candidate{testCandidate("0xa", "tok-a", 0.87)},
		clobPrices: map[string]domain.PricePair{"tok-a": {Yes: 0.87, No: 0.13}},
	}
	r, pf := newTestRunner(fp, readyScorer("0xa"))

	r.cycle(context.Background())
	assert.Equal(t, 0, pf.OpenCount())

	opps := r.LastOpportunities()
	require.Len(t, opps, 1)
	assert.False(t, opps[0].CLOBOk)
}

func TestCycleBreakerStopsCLOBAfterFailures(t *testing.T) {
	// Tres candidatos sin precio CLOB: tras 2 fallos el breaker corta.
	fp := &fakeProvider{
		candidates: []domain.Candidate{
			testCandidate("0xa", "tok-a", 0.87),
			testCandidate("0xb", "tok-b", 0.87),
			testCandidate("0xc", "tok-c", 0.87),
		},
		clobPrices: map[string]domain.PricePair{},
	}
	r, _ := newTestRunner(fp, scorer.New(scorer.DefaultConfig()))

	r.cycle(context.Background())
	assert.Equal(t, clobFailThreshold, fp.clobCalls)
}

func TestCycleSkipsExistingPositions(t *testing.T) {
	fp := &fakeProvider{
		candidates: []domain.Candidate{testCandidate("0xa", "tok-a", 0.87)},
		clobPrices: map[string]domain.PricePair{"tok-a": {Yes: 0.13, No: 0.87}},
	}
	r, pf := newTestRunner(fp, readyScorer("0xa"))

	r.cycle(context.Background())
	require.Equal(t, 1, pf.OpenCount())

	// Segundo ciclo: el mercado ya está en el portfolio y no se re-abre.
	r.cycle(context.Background())
	assert.Equal(t, 1, pf.OpenCount())
	pf.Lock()
	assert.Len(t, pf.OpenList(), 1)
	pf.Unlock()
}

func TestCycleAppliesResolutionToOpenPositions(t *testing.T) {
	fp := &fakeProvider{
		candidates: []domain.Candidate{testCandidate("0xa", "tok-a", 0.87)},
		clobPrices: map[string]domain.PricePair{"tok-a": {Yes: 0.13, No: 0.87}},
	}
	r, pf := newTestRunner(fp, readyScorer("0xa"))

	r.cycle(context.Background())
	require.Equal(t, 1, pf.OpenCount())

	// El mercado resuelve NO: el siguiente ciclo cierra WON.
	fp.mu.Lock()
	fp.clobPrices["tok-a"] = domain.PricePair{Yes: 0.005, No: 0.995}
	fp.mu.Unlock()

	r.cycle(context.Background())
	assert.Equal(t, 0, pf.OpenCount())

	snap := pf.Snapshot()
	assert.Equal(t, 1, snap.Won)
	assert.Greater(t, snap.CapitalTotal, 100.0)
}

func TestCycleLiquidatesOutOfBandEntry(t *testing.T) {
	fp := &fakeProvider{
		candidates: []domain.Candidate{},
		clobPrices: map[string]domain.PricePair{"tok-z": {Yes: 0.04, No: 0.96}},
	}
	r, pf := newTestRunner(fp, scorer.New(scorer.DefaultConfig()))

	// Posición pre-existente con entrada fuera de la banda configurada
	// (p.ej. tras un cambio de config entre sesiones).
	pf.Lock()
	pf.Open(context.Background(), testCandidate("0xz", "tok-z", 0.96), 5, 70)
	pf.Unlock()

	r.cycle(context.Background())

	assert.Equal(t, 0, pf.OpenCount())
	snap := pf.Snapshot()
	assert.Equal(t, 1, snap.Liquidated)
}

func TestFetchOpenPricesFallsBackToGamma(t *testing.T) {
	fp := &fakeProvider{
		candidates: []domain.Candidate{},
		clobPrices: map[string]domain.PricePair{}, // CLOB caído
		livePrices: map[string]domain.PricePair{
			"slug-0xa": {Yes: 0.10, No: 0.90},
		},
	}
	r, pf := newTestRunner(fp, scorer.New(scorer.DefaultConfig()))

	pf.Lock()
	pf.Open(context.Background(), testCandidate("0xa", "tok-a", 0.87), 8, 70)
	pf.Unlock()

	prices := r.fetchOpenPrices(context.Background())
	require.Len(t, prices, 1)
	assert.Equal(t, 0.90, prices["0xa"].No)
	assert.GreaterOrEqual(t, fp.liveCalls, 1)
}

func TestRefreshPricesRatchetsTrail(t *testing.T) {
	fp := &fakeProvider{
		clobPrices: map[string]domain.PricePair{"tok-a": {Yes: 0.09, No: 0.91}},
	}
	r, pf := newTestRunner(fp, scorer.New(scorer.DefaultConfig()))

	pf.Lock()
	pf.Open(context.Background(), testCandidate("0xa", "tok-a", 0.87), 8, 70)
	pf.Unlock()

	r.refreshPrices(context.Background())

	pf.Lock()
	open := pf.OpenList()
	pf.Unlock()
	require.Len(t, open, 1)
	assert.Equal(t, 0.91, open[0].CurrentNo)
	assert.Equal(t, 0.88, open[0].TrailStop)

	// El refresher nunca cierra: solo escribe precio y trail.
	assert.Equal(t, 1, pf.OpenCount())

	_, ok := r.LastPriceUpdate()
	assert.True(t, ok)
}

func TestStartStopLifecycle(t *testing.T) {
	fp := &fakeProvider{}
	r, _ := newTestRunner(fp, scorer.New(scorer.DefaultConfig()))

	assert.False(t, r.IsRunning())
	assert.Equal(t, "stopped", r.Status())

	r.Start(context.Background())
	assert.True(t, r.IsRunning())
	assert.Equal(t, "running", r.Status())
	assert.True(t, r.PriceWorkerAlive())

	// Start repetido es no-op.
	r.Start(context.Background())

	r.Stop()
	r.Wait()
	assert.False(t, r.IsRunning())
}
