package portfolio

// portfolio.go — ledger de capital y ciclo de vida de posiciones.
//
// Lógica de salida por posición:
//   - Al abrir: trail_stop = entry_no - TrailStopDistance
//   - En cada update: trail_stop sube con el precio (nunca baja)
//   - Salida parcial (50%): cuando current_no >= entry_no + HalfExitGain
//   - Cierre por trail: cuando current_no <= trail_stop
//   - Hard stop: cuando current_no cae HardStopDrop desde la entrada
//
// Los métodos de mutación del ciclo (CanOpen, Open, ApplyPriceUpdates,
// CheckTrailExits, Liquidate, OpenList, RecordCapital) asumen que el caller
// tiene el lock — el engine compone con ellos una sola sección crítica por
// tick. El resto de métodos exportados toman el lock internamente.

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/weatherbot/internal/domain"
	"github.com/alejandrodnm/weatherbot/internal/ports"
)

const (
	maxCapitalHistory = 500
	// un punto persistido cada ~1h (120 ciclos × 30s)
	capitalPersistEvery = 120
	// capital mínimo para considerar que se puede operar
	minActionableCapital = 1.0
)

// Config parametriza las reglas de salida del portfolio.
type Config struct {
	MaxPositions      int
	TrailStopDistance float64
	HalfExitGain      float64
	HardStopDrop      float64
}

// Portfolio es el ledger de capital y el dueño de las posiciones.
// Compartido entre el ciclo principal, el price refresher y el dashboard.
type Portfolio struct {
	mu    sync.Mutex
	cfg   Config
	store ports.StateStorage // nil = sin persistencia (tests, dry-run)

	capitalInicial    float64
	capitalTotal      float64
	capitalDisponible float64

	positions      map[string]*domain.Position
	closed         []domain.ClosedPosition
	capitalHistory []domain.CapitalPoint
	sessionStart   time.Time
	capRecordCount int

	now func() time.Time
}

// New crea un Portfolio con el capital inicial dado.
func New(cfg Config, store ports.StateStorage, initialCapital float64) *Portfolio {
	now := time.Now
	start := now().UTC()
	return &Portfolio{
		cfg:               cfg,
		store:             store,
		capitalInicial:    initialCapital,
		capitalTotal:      initialCapital,
		capitalDisponible: initialCapital,
		positions:         make(map[string]*domain.Position),
		sessionStart:      start,
		capitalHistory:    []domain.CapitalPoint{{Time: start, Capital: initialCapital}},
		now:               now,
	}
}

// Lock adquiere el lock del portfolio para componer una sección crítica.
func (p *Portfolio) Lock() { p.mu.Lock() }

// Unlock libera el lock del portfolio.
func (p *Portfolio) Unlock() { p.mu.Unlock() }

// Rehydrate restaura el estado desde el store al arrancar.
// Devuelve false si no hay estado previo. Llamar antes de lanzar los workers.
func (p *Portfolio) Rehydrate(ctx context.Context) (bool, error) {
	if p.store == nil {
		return false, nil
	}
	st, err := p.store.LoadState(ctx)
	if err != nil {
		return false, fmt.Errorf("portfolio.Rehydrate: load state: %w", err)
	}
	if st == nil {
		return false, nil
	}

	open, err := p.store.LoadOpenPositions(ctx)
	if err != nil {
		return false, fmt.Errorf("portfolio.Rehydrate: load open: %w", err)
	}
	closed, err := p.store.LoadClosedPositions(ctx)
	if err != nil {
		return false, fmt.Errorf("portfolio.Rehydrate: load closed: %w", err)
	}
	hist, err := p.store.LoadCapitalHistory(ctx)
	if err != nil {
		return false, fmt.Errorf("portfolio.Rehydrate: load capital history: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.capitalInicial = st.CapitalInicial
	p.capitalTotal = st.CapitalTotal
	p.capitalDisponible = st.CapitalDisponible
	p.sessionStart = st.SessionStart
	p.positions = make(map[string]*domain.Position, len(open))
	for i := range open {
		pos := open[i]
		p.positions[pos.ConditionID] = &pos
	}
	p.closed = closed
	if len(hist) > 0 {
		p.capitalHistory = hist
	}

	slog.Info("estado restaurado desde DB",
		"capital", fmt.Sprintf("%.2f", p.capitalTotal),
		"abiertas", len(p.positions),
		"cerradas", len(p.closed),
	)
	return true, nil
}

// CanOpen devuelve true si hay hueco y capital para abrir una posición.
// Requiere lock del caller.
func (p *Portfolio) CanOpen() bool {
	return len(p.positions) < p.cfg.MaxPositions &&
		p.capitalDisponible >= minActionableCapital
}

// Open abre una posición NO con el monto dado. Requiere lock del caller.
func (p *Portfolio) Open(ctx context.Context, cand domain.Candidate, amount float64, score int) {
	tokens := amount / cand.NoPrice
	pos := &domain.Position{
		ConditionID: cand.ConditionID,
		City:        cand.City,
		Question:    cand.Question,
		Slug:        cand.Slug,
		YesTokenID:  cand.YesTokenID,
		NoTokenID:   cand.NoTokenID,
		EntryNo:     cand.NoPrice,
		CurrentNo:   cand.NoPrice,
		Allocated:   amount,
		Tokens:      tokens,
		MaxGain:     tokens*1.0 - amount,
		TrailStop:   round4(cand.NoPrice - p.cfg.TrailStopDistance),
		Score:       score,
		Status:      domain.StatusOpen,
		EntryTime:   p.now().UTC(),
	}
	p.positions[cand.ConditionID] = pos
	p.capitalDisponible -= amount

	p.persistOpen(ctx, *pos)
	p.persistState(ctx)
}

// ApplyPriceUpdates aplica un mapa de precios frescos y gestiona resoluciones.
// Por posición, en este orden y de forma excluyente: LOST (YES ≥0.99),
// WON (NO ≥0.99), HARD_STOP (caída desde entrada). Requiere lock del caller.
func (p *Portfolio) ApplyPriceUpdates(ctx context.Context, prices map[string]domain.PricePair) {
	type pending struct {
		cid        string
		status     domain.Status
		pnl        float64
		resolution string
	}
	var toClose []pending

	for cid, pair := range prices {
		pos, ok := p.positions[cid]
		if !ok {
			continue
		}
		pos.CurrentNo = pair.No

		// Trailing stop: solo sube, nunca baja
		if newTrail := round4(pair.No - p.cfg.TrailStopDistance); newTrail > pos.TrailStop {
			pos.TrailStop = newTrail
		}

		// Resolución YES (perdimos)
		if pair.Yes >= 0.99 {
			toClose = append(toClose, pending{
				cid: cid, status: domain.StatusLost, pnl: -pos.Allocated,
				resolution: fmt.Sprintf("YES resolvió — temperatura superó el umbral (YES=%.1f¢)", pair.Yes*100),
			})
			continue
		}

		// Resolución NO (ganamos)
		if pair.No >= 0.99 {
			toClose = append(toClose, pending{
				cid: cid, status: domain.StatusWon, pnl: pos.MaxGain,
				resolution: fmt.Sprintf("NO resolvió — temperatura no superó el umbral (NO=%.1f¢)", pair.No*100),
			})
			continue
		}

		// Hard stop: caída desde entrada
		if drop := pair.No - pos.EntryNo; drop <= -p.cfg.HardStopDrop {
			toClose = append(toClose, pending{
				cid:    cid,
				status: domain.StatusHardStop,
				pnl:    pos.Tokens*pair.No - pos.Allocated,
				resolution: fmt.Sprintf("Hard stop @ NO=%.1f¢ (entrada %.1f¢, caída %.1f¢)",
					pair.No*100, pos.EntryNo*100, -drop*100),
			})
		}
	}

	for _, c := range toClose {
		p.closeLocked(ctx, c.cid, c.status, c.pnl, c.resolution)
	}
}

// CheckTrailExits evalúa la salida parcial 50% y el trailing stop.
// Una posición que ejecuta la parcial no se re-evalúa hasta el próximo pase.
// Requiere lock del caller.
func (p *Portfolio) CheckTrailExits(ctx context.Context) {
	cids := make([]string, 0, len(p.positions))
	for cid := range p.positions {
		cids = append(cids, cid)
	}

	for _, cid := range cids {
		pos := p.positions[cid]

		// Salida parcial 50%: cuando subimos HalfExitGain desde entrada
		if !pos.PartialDone && pos.CurrentNo >= pos.EntryNo+p.cfg.HalfExitGain {
			p.partialExit(ctx, cid)
			continue
		}

		if pos.CurrentNo <= pos.TrailStop {
			pnl := pos.Tokens*pos.CurrentNo - pos.Allocated
			resolution := fmt.Sprintf("Trail stop @ NO=%.1f¢ (trail=%.1f¢, entrada=%.1f¢)",
				pos.CurrentNo*100, pos.TrailStop*100, pos.EntryNo*100)
			p.closeLocked(ctx, cid, domain.StatusTrailStop, pnl, resolution)
		}
	}
}

// Liquidate fuerza el cierre de una posición fuera de la banda de entrada.
// El P&L es la venta mark-to-market al precio actual. Requiere lock del caller.
func (p *Portfolio) Liquidate(ctx context.Context, cid, resolution string) {
	pos, ok := p.positions[cid]
	if !ok {
		return
	}
	pnl := round2(pos.Tokens*pos.CurrentNo - pos.Allocated)
	p.closeLocked(ctx, cid, domain.StatusLiquidated, pnl, resolution)
}

// OpenList devuelve una copia de las posiciones abiertas.
// Requiere lock del caller.
func (p *Portfolio) OpenList() []domain.Position {
	out := make([]domain.Position, 0, len(p.positions))
	for _, pos := range p.positions {
		out = append(out, *pos)
	}
	return out
}

// Ledger devuelve el estado actual de capital. Requiere lock del caller.
func (p *Portfolio) Ledger() domain.LedgerState {
	return domain.LedgerState{
		CapitalInicial:    p.capitalInicial,
		CapitalTotal:      p.capitalTotal,
		CapitalDisponible: p.capitalDisponible,
		SessionStart:      p.sessionStart,
	}
}

// RecordCapital añade un snapshot de capital_total al histórico en memoria
// y lo persiste de forma espaciada. Requiere lock del caller.
func (p *Portfolio) RecordCapital(ctx context.Context) {
	pt := domain.CapitalPoint{Time: p.now().UTC(), Capital: round2(p.capitalTotal)}
	p.capitalHistory = append(p.capitalHistory, pt)
	if len(p.capitalHistory) > maxCapitalHistory {
		p.capitalHistory = p.capitalHistory[len(p.capitalHistory)-maxCapitalHistory:]
	}
	p.capRecordCount++
	if p.store != nil && p.capRecordCount%capitalPersistEvery == 0 {
		if err := p.store.AppendCapitalPoint(ctx, pt); err != nil {
			slog.Warn("error persistiendo punto de capital", "err", err)
		}
	}
}

// partialExit vende el 50% de los tokens al precio actual.
// La posición sigue abierta con la mitad restante. Requiere lock del caller.
func (p *Portfolio) partialExit(ctx context.Context, cid string) {
	pos := p.positions[cid]
	const fraction = 0.50

	tokensSold := pos.Tokens * fraction
	saleValue := tokensSold * pos.CurrentNo
	costFraction := pos.Allocated * fraction
	realized := saleValue - costFraction

	pos.Tokens *= 1 - fraction
	pos.Allocated *= 1 - fraction
	pos.MaxGain *= 1 - fraction
	pos.PartialDone = true

	p.capitalDisponible += costFraction + realized
	p.capitalTotal += realized

	rec := domain.ClosedPosition{
		RecordID:    uuid.New().String(),
		ConditionID: cid,
		City:        pos.City,
		Question:    pos.Question,
		EntryNo:     pos.EntryNo,
		Allocated:   round2(costFraction),
		PnL:         round2(realized),
		Score:       pos.Score,
		Status:      domain.StatusPartial,
		Resolution: fmt.Sprintf("Salida parcial 50%% @ NO=%.1f¢ (entrada+%.0f¢)",
			pos.CurrentNo*100, p.cfg.HalfExitGain*100),
		EntryTime: pos.EntryTime,
		CloseTime: p.now().UTC(),
	}
	p.closed = append(p.closed, rec)

	p.persistClosed(ctx, rec)
	p.persistOpen(ctx, *pos) // actualizar posición reducida
	p.persistState(ctx)

	slog.Info("salida parcial 50%",
		"market", domain.TruncateQuestion(pos.Question, cid, 40),
		"no", fmt.Sprintf("%.1f¢", pos.CurrentNo*100),
		"pnl", fmt.Sprintf("%.2f", realized),
	)
}

// closeLocked es la única transición terminal. Idempotente: si la posición
// ya no está abierta es un no-op. Requiere lock del caller.
func (p *Portfolio) closeLocked(ctx context.Context, cid string, status domain.Status, pnl float64, resolution string) {
	pos, ok := p.positions[cid]
	if !ok {
		return
	}

	recovered := pos.Allocated + pnl
	p.capitalDisponible += recovered
	p.capitalTotal += pnl

	rec := domain.ClosedPosition{
		RecordID:    uuid.New().String(),
		ConditionID: cid,
		City:        pos.City,
		Question:    pos.Question,
		EntryNo:     pos.EntryNo,
		Allocated:   pos.Allocated,
		PnL:         pnl,
		Score:       pos.Score,
		Status:      status,
		Resolution:  resolution,
		EntryTime:   pos.EntryTime,
		CloseTime:   p.now().UTC(),
	}
	p.closed = append(p.closed, rec)
	delete(p.positions, cid)

	p.persistDelete(ctx, cid)
	p.persistClosed(ctx, rec)
	p.persistState(ctx)

	slog.Info("posición cerrada",
		"status", string(status),
		"market", domain.TruncateQuestion(pos.Question, cid, 40),
		"pnl", fmt.Sprintf("%.2f", pnl),
	)
}

// --- espejo durable ---
//
// Un fallo de escritura no tumba el ciclo: el estado en memoria manda y el
// siguiente evento de capital vuelve a escribir. Solo se loguea.

func (p *Portfolio) persistState(ctx context.Context) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveState(ctx, p.Ledger()); err != nil {
		slog.Warn("error persistiendo estado", "err", err)
	}
}

func (p *Portfolio) persistOpen(ctx context.Context, pos domain.Position) {
	if p.store == nil {
		return
	}
	if err := p.store.UpsertOpenPosition(ctx, pos); err != nil {
		slog.Warn("error persistiendo posición abierta", "cid", pos.ConditionID, "err", err)
	}
}

func (p *Portfolio) persistDelete(ctx context.Context, cid string) {
	if p.store == nil {
		return
	}
	if err := p.store.DeleteOpenPosition(ctx, cid); err != nil {
		slog.Warn("error eliminando posición persistida", "cid", cid, "err", err)
	}
}

func (p *Portfolio) persistClosed(ctx context.Context, rec domain.ClosedPosition) {
	if p.store == nil {
		return
	}
	if err := p.store.InsertClosedPosition(ctx, rec); err != nil {
		slog.Warn("error persistiendo cierre", "cid", rec.ConditionID, "err", err)
	}
}

// --- helpers ---

func round2(v float64) float64 { return math.Round(v*100) / 100 }
func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
