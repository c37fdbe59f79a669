package engine

// runner.go — los dos workers del bot y su ciclo de vida.
//
// El ciclo principal corre cada MonitorInterval:
//   1. Gamma discovery → candidatos
//   2. CLOB price para cada candidato → record en el scorer
//   3. score() → si score >= MinEntryScore y NO en rango → entra
//   4. amount = CalcPositionSize(capital_disponible, score)
//   5. apply_price_updates → resoluciones + trail update
//   6. barrido de liquidación por rango + check_trail_exits
//   7. purge del scorer fuera del lock
//
// El price refresher corre cada PriceUpdateInterval y solo escribe
// current_no/trail_stop. Un watchdog en el ciclo principal lo relanza si muere.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alejandrodnm/weatherbot/internal/domain"
	"github.com/alejandrodnm/weatherbot/internal/portfolio"
	"github.com/alejandrodnm/weatherbot/internal/ports"
	"github.com/alejandrodnm/weatherbot/internal/scorer"
)

// clobFailThreshold es el número de fallos CLOB seguidos que deshabilita
// la fuente primaria durante el resto del pase.
const clobFailThreshold = 2

// Config contiene la política de entrada del engine.
type Config struct {
	MonitorInterval     time.Duration
	PriceUpdateInterval time.Duration

	EntryNoMin    float64
	EntryNoMax    float64
	MinEntryScore int
	Sizing        domain.SizingConfig

	MaxCLOBVerify int // candidatos verificados contra el CLOB por ciclo
}

// OpportunityView es la vista de un candidato del último ciclo para el dashboard.
type OpportunityView struct {
	Question    string  `json:"question"`
	City        string  `json:"city"`
	NoPrice     float64 `json:"no_price"`
	YesPrice    float64 `json:"yes_price"`
	Volume      float64 `json:"volume"`
	ProfitCents float64 `json:"profit_cents"`
	ScoreTotal  int     `json:"score_total"`
	ScoreZone   string  `json:"score_zone"`
	ScoreTraj   int     `json:"score_traj"`
	ScoreObs    int     `json:"score_obs"`
	CLOBOk      bool    `json:"clob_ok"`
}

// Runner orquesta el ciclo principal y el price refresher sobre un
// Portfolio y un MarketScorer compartidos.
type Runner struct {
	cfg      Config
	markets  ports.MarketProvider
	prices   ports.PriceProvider
	pf       *portfolio.Portfolio
	scorer   *scorer.MarketScorer
	notifier ports.Notifier // nil = sin salida de consola

	mu              sync.Mutex
	running         bool
	cancel          context.CancelFunc
	wg              sync.WaitGroup
	priceDone       chan struct{}
	scanCount       int
	lastOpps        []OpportunityView
	lastPriceUpdate time.Time
}

// New crea un Runner con todas las dependencias inyectadas.
// notifier puede ser nil.
func New(cfg Config, markets ports.MarketProvider, prices ports.PriceProvider,
	pf *portfolio.Portfolio, sc *scorer.MarketScorer, notifier ports.Notifier) *Runner {
	if cfg.MaxCLOBVerify <= 0 {
		cfg.MaxCLOBVerify = 20
	}
	return &Runner{
		cfg:      cfg,
		markets:  markets,
		prices:   prices,
		pf:       pf,
		scorer:   sc,
		notifier: notifier,
	}
}

// Start lanza los dos workers. No-op si ya están corriendo.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.running = true
	r.priceDone = r.spawnPriceWorker(runCtx)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.run(runCtx)
	}()
}

// Stop señala la parada. Los workers terminan el tick en vuelo y salen;
// usar Wait para bloquear hasta que terminen.
func (r *Runner) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.cancel()
	r.running = false
}

// Wait bloquea hasta que ambos workers hayan salido.
func (r *Runner) Wait() { r.wg.Wait() }

// IsRunning devuelve true si los workers están activos.
func (r *Runner) IsRunning() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Status devuelve "running" o "stopped".
func (r *Runner) Status() string {
	if r.IsRunning() {
		return "running"
	}
	return "stopped"
}

// ScanCount devuelve el número de ciclos completados.
func (r *Runner) ScanCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scanCount
}

// LastOpportunities devuelve los candidatos del último ciclo.
func (r *Runner) LastOpportunities() []OpportunityView {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]OpportunityView, len(r.lastOpps))
	copy(out, r.lastOpps)
	return out
}

// LastPriceUpdate devuelve cuándo terminó el último refresco de precios.
func (r *Runner) LastPriceUpdate() (time.Time, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastPriceUpdate, !r.lastPriceUpdate.IsZero()
}

// PriceWorkerAlive devuelve true si el price refresher sigue vivo.
func (r *Runner) PriceWorkerAlive() bool {
	r.mu.Lock()
	done := r.priceDone
	r.mu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}

// run es el loop del ciclo principal.
func (r *Runner) run(ctx context.Context) {
	slog.Info("bot iniciado — multi-signal score system", "interval", r.cfg.MonitorInterval)

	r.safeCycle(ctx)

	ticker := time.NewTicker(r.cfg.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("bot detenido")
			return
		case <-ticker.C:
			r.safeCycle(ctx)
		}
	}
}

// safeCycle ejecuta un tick aislando cualquier fallo inesperado:
// un tick malo nunca mata el worker.
func (r *Runner) safeCycle(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("pánico en ciclo", "panic", rec)
		}
	}()
	r.cycle(ctx)
}

// watchdog relanza el price refresher si murió.
func (r *Runner) watchdog(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.priceDone == nil {
		return
	}
	select {
	case <-r.priceDone:
		if ctx.Err() == nil {
			slog.Warn("price worker caído — relanzando")
			r.priceDone = r.spawnPriceWorker(ctx)
		}
	default:
	}
}

// spawnPriceWorker lanza el refresher y devuelve su canal de vida.
// Requiere r.mu del caller.
func (r *Runner) spawnPriceWorker(ctx context.Context) chan struct{} {
	done := make(chan struct{})
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer close(done)
		r.runPrices(ctx)
	}()
	return done
}

// breaker deshabilita el CLOB para el resto del pase tras N fallos seguidos.
type breaker struct{ failures int }

func (b *breaker) fail()         { b.failures++ }
func (b *breaker) reset()        { b.failures = 0 }
func (b *breaker) tripped() bool { return b.failures >= clobFailThreshold }
