package polymarket

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

// Filtro ancho de precios NO en el escaneo. El engine aplica después la
// banda de entrada estricta; aquí solo descartamos mercados sin interés.
const (
	scanNoMin = 0.50
	scanNoMax = 0.97
)

// cityIsReady indica si la hora local de la ciudad ya alcanzó el mínimo
// para que los mercados de temperatura del día tengan señal.
func (c *Client) cityIsReady(city string, now time.Time) bool {
	offset, ok := c.scan.CityOffsets[city]
	if !ok {
		return false
	}
	local := now.UTC().Add(time.Duration(offset) * time.Hour)
	return local.Hour() >= c.scan.MinLocalHour
}

// scanDates devuelve las fechas (local de la ciudad) a escanear: hoy y
// los ScanDaysAhead días siguientes.
func (c *Client) scanDates(city string, now time.Time) []time.Time {
	offset := c.scan.CityOffsets[city]
	local := now.UTC().Add(time.Duration(offset) * time.Hour)
	dates := make([]time.Time, 0, c.scan.ScanDaysAhead+1)
	for d := 0; d <= c.scan.ScanDaysAhead; d++ {
		dates = append(dates, local.AddDate(0, 0, d))
	}
	return dates
}

// ScanOpportunities recorre los eventos de temperatura de todas las ciudades
// configuradas y devuelve los mercados candidatos ordenados por cercanía del
// precio NO al centro de la banda de entrada. Los conditionIDs en excluded
// (posiciones abiertas o ya cerradas) se descartan.
func (c *Client) ScanOpportunities(ctx context.Context, excluded map[string]bool) ([]domain.Candidate, error) {
	now := c.now()
	var out []domain.Candidate

	for _, city := range c.scan.Cities {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		if !c.cityIsReady(city, now) {
			continue
		}

		for _, date := range c.scanDates(city, now) {
			slug := buildEventSlug(city, date)
			event, err := c.fetchEventBySlug(ctx, slug)
			if err != nil {
				slog.Warn("polymarket: fallo escaneando evento", "slug", slug, "error", err)
				continue
			}
			if event == nil {
				continue
			}
			out = append(out, c.filterMarkets(event, city, now, excluded)...)
		}
	}

	center := c.scan.EntryBandCenter
	sort.Slice(out, func(i, j int) bool {
		return math.Abs(out[i].NoPrice-center) < math.Abs(out[j].NoPrice-center)
	})
	return out, nil
}

// filterMarkets aplica los filtros de candidato sobre los mercados de un evento.
func (c *Client) filterMarkets(event *gammaEvent, city string, now time.Time, excluded map[string]bool) []domain.Candidate {
	var out []domain.Candidate
	for _, m := range event.Markets {
		if !m.Active || m.Closed || m.ConditionID == "" {
			continue
		}
		if excluded[m.ConditionID] {
			continue
		}

		volume, _ := m.Volume.Float64()
		if volume < c.scan.MinVolume {
			continue
		}

		end := parseEndDate(m.EndDate)
		if !end.IsZero() && end.Before(now) {
			continue
		}

		yes, no, ok := parseOutcomePrices(m.OutcomePrices)
		if !ok {
			continue
		}
		if no < scanNoMin || no > scanNoMax {
			continue
		}

		yesID, noID := parseTokenIDs(m.CLOBTokenIDs)
		if noID == "" {
			continue
		}

		out = append(out, domain.Candidate{
			ConditionID: m.ConditionID,
			City:        city,
			Question:    m.Question,
			Slug:        m.Slug,
			YesPrice:    yes,
			NoPrice:     no,
			Volume:      volume,
			ProfitCents: math.Round((1-no)*100*100) / 100,
			EndDate:     end,
			YesTokenID:  yesID,
			NoTokenID:   noID,
		})
	}
	return out
}
