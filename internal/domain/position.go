package domain

import "time"

// Status es el estado de una posición, abierto o terminal.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusWon        Status = "WON"        // NO resolvió ≥0.99
	StatusLost       Status = "LOST"       // YES resolvió ≥0.99
	StatusTrailStop  Status = "TRAIL_STOP" // trailing stop activado
	StatusHardStop   Status = "HARD_STOP"  // caída brusca desde entrada
	StatusPartial    Status = "PARTIAL"    // salida 50% registrada (la posición sigue abierta)
	StatusLiquidated Status = "LIQUIDATED" // auto-liquidación por rango
)

// IsTerminal devuelve true si el status cierra la posición.
// PARTIAL no es terminal: solo genera un registro en el historial.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusWon, StatusLost, StatusTrailStop, StatusHardStop, StatusLiquidated:
		return true
	}
	return false
}

// Position es una exposición abierta en el lado NO de un mercado.
// Solo el Portfolio muta sus campos, siempre bajo su lock.
type Position struct {
	ConditionID string
	City        string
	Question    string
	Slug        string
	YesTokenID  string
	NoTokenID   string

	EntryNo   float64
	CurrentNo float64 // actualizado por el price refresher
	Allocated float64 // capital comprometido; se reduce en la salida parcial
	Tokens    float64 // se reduce en la salida parcial
	MaxGain   float64 // payoff si NO resuelve a 1.0

	TrailStop   float64 // solo sube, nunca baja
	PartialDone bool    // true después de la salida 50%

	Score  int
	Status Status

	EntryTime time.Time
}

// FloatingPnL es el P&L no realizado a precio actual.
func (p Position) FloatingPnL() float64 {
	return p.Tokens*p.CurrentNo - p.Allocated
}

// ClosedPosition es el registro inmutable de un cierre (terminal o PARTIAL).
type ClosedPosition struct {
	RecordID    string // uuid del registro
	ConditionID string
	City        string
	Question    string
	EntryNo     float64
	Allocated   float64
	PnL         float64
	Score       int
	Status      Status
	Resolution  string
	EntryTime   time.Time
	CloseTime   time.Time
}

// CapitalPoint es un snapshot de capital_total en un instante.
type CapitalPoint struct {
	Time    time.Time `json:"time"`
	Capital float64   `json:"capital"`
}

// TruncateQuestion devuelve la pregunta del mercado truncada a maxLen caracteres.
// Si la pregunta está vacía usa los primeros caracteres del conditionID como fallback.
func TruncateQuestion(question, conditionID string, maxLen int) string {
	q := question
	if q == "" {
		if len(conditionID) > 20 {
			q = conditionID[:20] + "..."
		} else {
			q = conditionID
		}
	}
	if len(q) > maxLen {
		q = q[:maxLen-3] + "..."
	}
	return q
}
