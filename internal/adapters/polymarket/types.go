package polymarket

import "encoding/json"

// DTOs raw de la API de Polymarket. Solo se usan dentro de este paquete.
// La conversión a domain entities se hace en mapping.go.

// --- CLOB API ---

// bookResponse es la respuesta de GET /book para un token.
type bookResponse struct {
	AssetID        string         `json:"asset_id"`
	Bids           []bookEntryRaw `json:"bids"`
	Asks           []bookEntryRaw `json:"asks"`
	LastTradePrice string         `json:"last_trade_price"`
}

// bookEntryRaw es un nivel de precio raw de la API (strings para mayor precisión).
type bookEntryRaw struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// --- Gamma API ---

// gammaEvent es un evento de Gamma con sus mercados.
type gammaEvent struct {
	Slug    string        `json:"slug"`
	Markets []gammaMarket `json:"markets"`
}

// gammaMarket contiene la metadata de un mercado en Gamma.
// Gamma devuelve varios campos numéricos y arrays como strings JSON.
type gammaMarket struct {
	ConditionID   string      `json:"conditionId"`
	Question      string      `json:"question"`
	Slug          string      `json:"slug"`
	EndDate       string      `json:"endDate"`
	Volume        json.Number `json:"volume"`
	OutcomePrices string      `json:"outcomePrices"` // JSON array codificado: ["yes","no"]
	CLOBTokenIDs  string      `json:"clobTokenIds"`  // JSON array codificado: [yes_id, no_id]
	Active        bool        `json:"active"`
	Closed        bool        `json:"closed"`
}
