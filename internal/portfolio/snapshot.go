package portfolio

import (
	"time"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

// OpenView es la vista de una posición abierta para el dashboard,
// con el P&L no realizado a precio actual.
type OpenView struct {
	ConditionID string  `json:"condition_id"`
	Question    string  `json:"question"`
	City        string  `json:"city"`
	EntryNo     float64 `json:"entry_no"`
	CurrentNo   float64 `json:"current_no"`
	TrailStop   float64 `json:"trail_stop"`
	Allocated   float64 `json:"allocated"`
	PnL         float64 `json:"pnl"`
	EntryTime   string  `json:"entry_time"`
	Status      string  `json:"status"`
	PartialDone bool    `json:"partial_done"`
	Score       int     `json:"score"`
}

// ClosedView es la vista de un registro de cierre para el dashboard.
type ClosedView struct {
	Question   string  `json:"question"`
	EntryNo    float64 `json:"entry_no"`
	Allocated  float64 `json:"allocated"`
	PnL        float64 `json:"pnl"`
	Score      int     `json:"score"`
	Status     string  `json:"status"`
	Resolution string  `json:"resolution"`
	EntryTime  string  `json:"entry_time"`
	CloseTime  string  `json:"close_time"`
}

// Snapshot es el estado completo del portfolio para reporting.
type Snapshot struct {
	CapitalInicial    float64               `json:"capital_inicial"`
	CapitalTotal      float64               `json:"capital_total"`
	CapitalDisponible float64               `json:"capital_disponible"`
	PnL               float64               `json:"pnl"`
	ROI               float64               `json:"roi"`
	Won               int                   `json:"won"`
	Lost              int                   `json:"lost"`
	TrailStop         int                   `json:"trail_stop"`
	HardStop          int                   `json:"hard_stop"`
	Partial           int                   `json:"partial"`
	Liquidated        int                   `json:"liquidated"`
	OpenPositions     []OpenView            `json:"open_positions"`
	ClosedPositions   []ClosedView          `json:"closed_positions"`
	CapitalHistory    []domain.CapitalPoint `json:"capital_history"`
	SessionStart      string                `json:"session_start"`
	Insights          *domain.Insights      `json:"insights"`
}

// Snapshot construye la vista completa del portfolio. Toma el lock.
func (p *Portfolio) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()

	pnl := p.capitalTotal - p.capitalInicial
	roi := 0.0
	if p.capitalInicial != 0 {
		roi = pnl / p.capitalInicial * 100
	}

	snap := Snapshot{
		CapitalInicial:    round2(p.capitalInicial),
		CapitalTotal:      round2(p.capitalTotal),
		CapitalDisponible: round2(p.capitalDisponible),
		PnL:               round2(pnl),
		ROI:               round2(roi),
		SessionStart:      p.sessionStart.Format(time.RFC3339),
		Insights:          p.ComputeInsights(),
	}

	for _, rec := range p.closed {
		switch rec.Status {
		case domain.StatusTrailStop:
			snap.TrailStop++
		case domain.StatusHardStop:
			snap.HardStop++
		case domain.StatusPartial:
			snap.Partial++
		case domain.StatusLiquidated:
			snap.Liquidated++
		}
		if rec.Status != domain.StatusPartial && rec.Status != domain.StatusLiquidated {
			if rec.PnL > 0 {
				snap.Won++
			} else {
				snap.Lost++
			}
		}

		snap.ClosedPositions = append(snap.ClosedPositions, ClosedView{
			Question:   rec.Question,
			EntryNo:    rec.EntryNo,
			Allocated:  round2(rec.Allocated),
			PnL:        round2(rec.PnL),
			Score:      rec.Score,
			Status:     string(rec.Status),
			Resolution: rec.Resolution,
			EntryTime:  rec.EntryTime.Format(time.RFC3339),
			CloseTime:  rec.CloseTime.Format(time.RFC3339),
		})
	}

	for cid, pos := range p.positions {
		snap.OpenPositions = append(snap.OpenPositions, OpenView{
			ConditionID: cid,
			Question:    pos.Question,
			City:        pos.City,
			EntryNo:     pos.EntryNo,
			CurrentNo:   pos.CurrentNo,
			TrailStop:   pos.TrailStop,
			Allocated:   round2(pos.Allocated),
			PnL:         round2(pos.FloatingPnL()),
			EntryTime:   pos.EntryTime.Format(time.RFC3339),
			Status:      string(pos.Status),
			PartialDone: pos.PartialDone,
			Score:       pos.Score,
		})
	}

	snap.CapitalHistory = append(snap.CapitalHistory, p.capitalHistory...)
	return snap
}
