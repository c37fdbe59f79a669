package polymarket

import (
	"context"
	"fmt"
	"net/url"
)

// fetchEventBySlug obtiene un evento de Gamma por su slug exacto.
// Devuelve nil si no existe.
func (c *Client) fetchEventBySlug(ctx context.Context, slug string) (*gammaEvent, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("limit", "1")

	var events []gammaEvent
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+"/events?"+q.Encode(), &events); err != nil {
		return nil, fmt.Errorf("polymarket.fetchEventBySlug: %s: %w", slug, err)
	}
	if len(events) == 0 {
		return nil, nil
	}
	return &events[0], nil
}

// fetchMarketBySlug obtiene un mercado individual de Gamma por slug.
func (c *Client) fetchMarketBySlug(ctx context.Context, slug string) (*gammaMarket, error) {
	q := url.Values{}
	q.Set("slug", slug)
	q.Set("limit", "1")

	var markets []gammaMarket
	if err := c.get(ctx, c.gammaLimiter, c.gammaBase+"/markets?"+q.Encode(), &markets); err != nil {
		return nil, fmt.Errorf("polymarket.fetchMarketBySlug: %s: %w", slug, err)
	}
	if len(markets) == 0 {
		return nil, nil
	}
	return &markets[0], nil
}

// FetchLivePrices obtiene los precios actuales de un mercado vía Gamma.
// Es el fallback cuando CLOB no responde. El precio viene del campo
// outcomePrices del propio mercado, menos fresco que el orderbook pero
// suficiente para el trailing stop.
func (c *Client) FetchLivePrices(ctx context.Context, slug string) (yes, no float64, ok bool) {
	if slug == "" {
		return 0, 0, false
	}
	market, err := c.fetchMarketBySlug(ctx, slug)
	if err != nil || market == nil {
		return 0, 0, false
	}
	return parseOutcomePrices(market.OutcomePrices)
}
