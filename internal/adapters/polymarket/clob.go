package polymarket

import (
	"context"
	"log/slog"
	"math"
	"net/url"
)

// FetchNoPriceCLOB obtiene el precio NO real desde el orderbook de CLOB.
// Prioridad: mejor ask (precio al que podríamos comprar), luego mejor bid,
// luego último precio de trade. Devuelve ok=false si el libro está vacío o
// el precio cae fuera de (0, 1).
func (c *Client) FetchNoPriceCLOB(ctx context.Context, noTokenID string) (yes, no float64, ok bool) {
	if noTokenID == "" {
		return 0, 0, false
	}

	q := url.Values{}
	q.Set("token_id", noTokenID)

	var book bookResponse
	if err := c.get(ctx, c.bookLimiter, c.clobBase+"/book?"+q.Encode(), &book); err != nil {
		slog.Debug("polymarket: fallo consultando orderbook",
			"token", shortToken(noTokenID), "error", err)
		return 0, 0, false
	}

	no, ok = bestBookPrice(&book)
	if !ok || no <= 0 || no >= 1 {
		return 0, 0, false
	}
	yes = math.Round((1-no)*1e6) / 1e6
	return yes, no, true
}

// bestBookPrice elige el precio representativo del libro: ask más bajo,
// si no hay asks el bid más alto, y como último recurso el last trade.
func bestBookPrice(book *bookResponse) (float64, bool) {
	if len(book.Asks) > 0 {
		best := math.MaxFloat64
		found := false
		for _, e := range book.Asks {
			if p, ok := parsePrice(e.Price); ok && p < best {
				best = p
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	if len(book.Bids) > 0 {
		best := 0.0
		found := false
		for _, e := range book.Bids {
			if p, ok := parsePrice(e.Price); ok && p > best {
				best = p
				found = true
			}
		}
		if found {
			return best, true
		}
	}
	if p, ok := parsePrice(book.LastTradePrice); ok && p > 0 {
		return p, true
	}
	return 0, false
}

func shortToken(id string) string {
	if len(id) > 10 {
		return id[:10]
	}
	return id
}
