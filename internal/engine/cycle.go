package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

const maxDisplayOpps = 20

// staged es un candidato verificado contra el CLOB que pasó las puertas
// de entrada (precio en rango y score suficiente).
type staged struct {
	cand  domain.Candidate
	score domain.ScoreResult
}

// cycle ejecuta un tick completo: discovery → score → decisión → una sola
// sección crítica de capital → purge del scorer.
func (r *Runner) cycle(ctx context.Context) {
	r.watchdog(ctx)

	// 1. IDs ya en portfolio (evitar re-entrada)
	excluded := r.pf.ExistingIDs()

	// 2. Gamma discovery
	candidates, err := r.markets.ScanOpportunities(ctx, excluded)
	if err != nil {
		slog.Warn("scan de oportunidades falló", "err", err)
	}

	// 3. CLOB + score para cada candidato
	var entries []staged
	var scored []domain.ScoredCandidate
	var clob breaker

	verify := candidates
	if len(verify) > r.cfg.MaxCLOBVerify {
		verify = verify[:r.cfg.MaxCLOBVerify]
	}

	for _, cand := range verify {
		if ctx.Err() != nil {
			return
		}

		var rtYes, rtNo float64
		var ok bool
		if !clob.tripped() && cand.NoTokenID != "" {
			rtYes, rtNo, ok = r.prices.FetchNoPriceCLOB(ctx, cand.NoTokenID)
			// Sanity: descartar tokens invertidos (NO < 0.50)
			if ok && rtNo < 0.50 {
				ok = false
			}
			if !ok {
				clob.fail()
			}
		}

		if !ok {
			scored = append(scored, domain.ScoredCandidate{
				Candidate: cand,
				Score:     domain.ScoreResult{Zone: domain.ZoneNone},
			})
			continue
		}

		// Registrar observación en el scorer
		r.scorer.Record(cand.ConditionID, rtNo, cand.Volume)

		cand.NoPrice = rtNo
		if rtYes > 0 {
			cand.YesPrice = rtYes
		} else {
			cand.YesPrice = 1 - rtNo
		}

		result := r.scorer.Score(cand.ConditionID, cand.City)
		scored = append(scored, domain.ScoredCandidate{Candidate: cand, Score: result, CLOBOk: true})

		// Puerta de entrada: precio en rango Y score suficiente
		inRange := rtNo >= r.cfg.EntryNoMin && rtNo <= r.cfg.EntryNoMax
		if inRange && result.Total >= r.cfg.MinEntryScore {
			entries = append(entries, staged{cand: cand, score: result})
		} else if inRange {
			slog.Info("score insuficiente",
				"market", domain.TruncateQuestion(cand.Question, cand.ConditionID, 35),
				"no", fmt.Sprintf("%.1f¢", rtNo*100),
				"score", result.Total,
				"min", r.cfg.MinEntryScore,
			)
		}
	}

	// Completar con candidatos sin verificar (para el dashboard)
	for _, cand := range candidates[len(verify):] {
		if len(scored) >= maxDisplayOpps {
			break
		}
		scored = append(scored, domain.ScoredCandidate{
			Candidate: cand,
			Score:     domain.ScoreResult{Zone: domain.ZoneNone},
		})
	}
	if len(scored) > maxDisplayOpps {
		scored = scored[:maxDisplayOpps]
	}

	// 4. Fetch precios de posiciones abiertas — CLOB primero, Gamma fallback
	priceMap := r.fetchOpenPrices(ctx)
	if ctx.Err() != nil {
		return
	}

	// 5. Operaciones de portfolio (con lock — sin HTTP)
	r.pf.Lock()

	for _, e := range entries {
		if !r.pf.CanOpen() {
			break
		}
		amount := domain.CalcPositionSize(r.pf.CapitalDisponible(), e.score.Total, r.cfg.Sizing)
		if amount < 1 {
			continue
		}
		r.pf.Open(ctx, e.cand, amount, e.score.Total)
		slog.Info("posición abierta",
			"market", domain.TruncateQuestion(e.cand.Question, e.cand.ConditionID, 40),
			"no", fmt.Sprintf("%.1f¢", e.cand.NoPrice*100),
			"amount", fmt.Sprintf("$%.2f", amount),
			"score", e.score.Total,
			"zona", string(e.score.Zone),
		)
	}

	if len(priceMap) > 0 {
		r.pf.ApplyPriceUpdates(ctx, priceMap)
	}

	// Auto-liquidar posiciones con entrada fuera del rango configurado
	for _, pos := range r.pf.OpenList() {
		if pos.EntryNo >= r.cfg.EntryNoMin && pos.EntryNo <= r.cfg.EntryNoMax {
			continue
		}
		slog.Warn("auto-liquidación por rango",
			"market", domain.TruncateQuestion(pos.Question, pos.ConditionID, 40),
			"entry_no", fmt.Sprintf("%.1f¢", pos.EntryNo*100),
		)
		r.pf.Liquidate(ctx, pos.ConditionID,
			fmt.Sprintf("Auto-liquidación: entrada %.1f¢ fuera del rango (%.0f–%.0f¢)",
				pos.EntryNo*100, r.cfg.EntryNoMin*100, r.cfg.EntryNoMax*100))
	}

	// Trail exits: partial 50% + trailing stop
	r.pf.CheckTrailExits(ctx)
	r.pf.RecordCapital(ctx)

	openCopy := r.pf.OpenList()
	ledger := r.pf.Ledger()

	r.pf.Unlock()

	// 6. Purge de historiales viejos del scorer (fuera del lock del portfolio)
	r.scorer.PurgeOld()

	r.mu.Lock()
	r.scanCount++
	cycleNum := r.scanCount
	r.lastOpps = toViews(scored)
	r.mu.Unlock()

	if r.notifier != nil {
		if err := r.notifier.NotifyCycle(ctx, cycleNum, scored, openCopy, ledger); err != nil {
			slog.Warn("error notificando ciclo", "err", err)
		}
	}
}

// fetchOpenPrices obtiene precios frescos para las posiciones abiertas.
// Copia los refs bajo lock, hace el I/O sin el lock.
func (r *Runner) fetchOpenPrices(ctx context.Context) map[string]domain.PricePair {
	refs := r.pf.PositionRefs()
	priceMap := make(map[string]domain.PricePair, len(refs))
	var clob breaker

	for _, ref := range refs {
		if ctx.Err() != nil {
			return priceMap
		}

		var yes, no float64
		var ok bool
		if !clob.tripped() && ref.NoTokenID != "" {
			yes, no, ok = r.prices.FetchNoPriceCLOB(ctx, ref.NoTokenID)
			if ok && no < 0.50 {
				ok = false
			}
			if !ok {
				clob.fail()
			}
		}
		if !ok {
			yes, no, ok = r.prices.FetchLivePrices(ctx, ref.Slug)
		}
		if ok {
			priceMap[ref.ConditionID] = domain.PricePair{Yes: yes, No: no}
		}
	}
	return priceMap
}

func toViews(scored []domain.ScoredCandidate) []OpportunityView {
	views := make([]OpportunityView, 0, len(scored))
	for _, sc := range scored {
		views = append(views, OpportunityView{
			Question:    sc.Question,
			City:        sc.City,
			NoPrice:     sc.NoPrice,
			YesPrice:    sc.YesPrice,
			Volume:      sc.Volume,
			ProfitCents: sc.ProfitCents,
			ScoreTotal:  sc.Score.Total,
			ScoreZone:   string(sc.Score.Zone),
			ScoreTraj:   sc.Score.Trajectory,
			ScoreObs:    sc.Score.Observations,
			CLOBOk:      sc.CLOBOk,
		})
	}
	return views
}
