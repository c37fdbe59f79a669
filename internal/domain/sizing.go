package domain

// SizingConfig parametriza el sizing por score.
type SizingConfig struct {
	MinScore int     // score mínimo de entrada (fracción base)
	BasePct  float64 // fracción de capital en MinScore
	MaxPct   float64 // fracción de capital en score 100
}

// CalcPositionSize calcula el monto a invertir según el score.
// Interpolación lineal entre BasePct (en MinScore) y MaxPct (en 100).
// Nunca devuelve más que el capital disponible.
func CalcPositionSize(available float64, score int, cfg SizingConfig) float64 {
	scoreRange := 100 - cfg.MinScore
	pct := cfg.BasePct
	if scoreRange > 0 {
		t := float64(score-cfg.MinScore) / float64(scoreRange)
		if t < 0 {
			t = 0
		}
		if t > 1 {
			t = 1
		}
		pct = cfg.BasePct + t*(cfg.MaxPct-cfg.BasePct)
	}
	amount := available * pct
	if amount > available {
		amount = available
	}
	return amount
}
