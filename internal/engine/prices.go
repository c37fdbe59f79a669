package engine

import (
	"context"
	"log/slog"
	"math"
	"time"
)

// runPrices es el loop del price refresher. Mantiene current_no y el trail
// de las posiciones abiertas al día entre ticks del ciclo principal.
func (r *Runner) runPrices(ctx context.Context) {
	slog.Info("price refresher iniciado", "interval", r.cfg.PriceUpdateInterval)

	ticker := time.NewTicker(r.cfg.PriceUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("price refresher detenido")
			return
		case <-ticker.C:
			r.safeRefresh(ctx)
		}
	}
}

func (r *Runner) safeRefresh(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("pánico actualizando precios", "panic", rec)
		}
	}()
	r.refreshPrices(ctx)
}

// refreshPrices hace un pase de precios: CLOB → Gamma fallback, con circuit
// breaker. Copia los refs bajo lock, fetch sin lock, aplica bajo lock.
func (r *Runner) refreshPrices(ctx context.Context) {
	refs := r.pf.PositionRefs()
	var clob breaker

	for _, ref := range refs {
		if ctx.Err() != nil {
			return
		}

		var no float64
		var ok bool
		source := "Gamma"

		if !clob.tripped() && ref.NoTokenID != "" {
			_, no, ok = r.prices.FetchNoPriceCLOB(ctx, ref.NoTokenID)
			if ok && no < 0.50 {
				ok = false
			}
			if ok {
				source = "CLOB"
				clob.reset()
			} else {
				clob.fail()
			}
		}
		if !ok {
			_, no, ok = r.prices.FetchLivePrices(ctx, ref.Slug)
		}
		if !ok {
			continue
		}

		old, applied := r.pf.ApplyRefreshedPrice(ref.ConditionID, no)
		if applied && math.Abs(no-old) >= 0.001 {
			slog.Info("precio actualizado",
				"source", source,
				"market", shortRef(ref.Slug, ref.ConditionID),
				"old", old,
				"new", no,
			)
		}
	}

	r.mu.Lock()
	r.lastPriceUpdate = time.Now().UTC()
	r.mu.Unlock()
}

func shortRef(slug, cid string) string {
	if slug != "" {
		if len(slug) > 30 {
			return slug[:30]
		}
		return slug
	}
	if len(cid) > 20 {
		return cid[:20]
	}
	return cid
}
