package domain

import "time"

// LedgerState es el ledger de capital persistido entre sesiones.
type LedgerState struct {
	CapitalInicial    float64
	CapitalTotal      float64
	CapitalDisponible float64
	SessionStart      time.Time
}
