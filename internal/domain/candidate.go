package domain

import "time"

// PricePair son los dos lados del mercado en un instante.
type PricePair struct {
	Yes float64
	No  float64
}

// Candidate es un mercado descubierto en Gamma, aún sin verificar contra el CLOB.
type Candidate struct {
	ConditionID string
	City        string
	Question    string
	Slug        string
	YesPrice    float64
	NoPrice     float64
	Volume      float64
	ProfitCents float64 // (1 - no_price) × 100
	EndDate     time.Time
	YesTokenID  string
	NoTokenID   string
}

// ScoredCandidate es un candidato tras el pase de verificación del ciclo,
// con su score y si el precio vino del CLOB.
type ScoredCandidate struct {
	Candidate
	Score  ScoreResult
	CLOBOk bool
}
