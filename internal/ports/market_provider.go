package ports

import (
	"context"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

// MarketProvider descubre mercados candidatos vía Gamma.
type MarketProvider interface {
	// ScanOpportunities devuelve los candidatos del lado NO para hoy y los
	// próximos días, excluyendo los conditionIDs dados, ordenados por
	// cercanía al centro del rango de entrada.
	ScanOpportunities(ctx context.Context, excluded map[string]bool) ([]domain.Candidate, error)
}

// PriceProvider obtiene el mejor precio actual de un mercado.
type PriceProvider interface {
	// FetchNoPriceCLOB devuelve (yes, no) desde el order book del CLOB.
	// Devuelve (0, 0, false) si no hay precio disponible.
	FetchNoPriceCLOB(ctx context.Context, noTokenID string) (yes, no float64, ok bool)

	// FetchLivePrices devuelve (yes, no) desde Gamma (cache ~2 min).
	// Fuente secundaria cuando el CLOB falla.
	FetchLivePrices(ctx context.Context, slug string) (yes, no float64, ok bool)
}
