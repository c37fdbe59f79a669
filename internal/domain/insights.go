package domain

// HourStat es el win rate de las entradas en una hora UTC concreta.
type HourStat struct {
	Hour    int     `json:"hour"`
	WinRate float64 `json:"win_rate"`
	Trades  int     `json:"trades"`
}

// CityStat es el win rate de las entradas en una ciudad.
type CityStat struct {
	City    string  `json:"city"`
	WinRate float64 `json:"win_rate"`
	Trades  int     `json:"trades"`
}

// Insights agrega win rates por hora de entrada y por ciudad sobre
// posiciones totalmente resueltas (excluye PARTIAL y LIQUIDATED).
type Insights struct {
	OverallWinRate float64    `json:"overall_win_rate"`
	TotalTrades    int        `json:"total_trades"`
	ByHour         []HourStat `json:"by_hour"`
	ByCity         []CityStat `json:"by_city"`
}
