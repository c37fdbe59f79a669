package domain

// Zone clasifica el precio NO dentro de las bandas anidadas del sub-score.
type Zone string

const (
	ZoneA    Zone = "A" // sweet spot
	ZoneB    Zone = "B" // bordes
	ZoneC    Zone = "C" // extremo
	ZoneNone Zone = "-"
)

// ScoreResult es el desglose completo del score de un mercado.
// Se calcula en cada llamada — nunca se persiste.
type ScoreResult struct {
	Total        int  `json:"total"`
	Price        int  `json:"price"`
	Trajectory   int  `json:"trajectory"`
	Volume       int  `json:"volume"`
	Time         int  `json:"time"`
	Observations int  `json:"observations"`
	Zone         Zone `json:"zone"`
}
