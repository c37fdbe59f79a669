package portfolio

import (
	"sort"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

const (
	minInsightTrades = 5 // cierres resueltos mínimos para emitir insights
	minBucketTrades  = 2 // trades mínimos por hora/ciudad
	topBuckets       = 6
)

// ComputeInsights agrega win rates por hora de entrada y por ciudad sobre
// cierres totalmente resueltos (excluye PARTIAL y LIQUIDATED).
// Devuelve nil con menos de minInsightTrades cierres que califiquen.
// Requiere lock del caller.
func (p *Portfolio) ComputeInsights() *domain.Insights {
	var resolved []domain.ClosedPosition
	for _, rec := range p.closed {
		if rec.Status == domain.StatusPartial || rec.Status == domain.StatusLiquidated {
			continue
		}
		resolved = append(resolved, rec)
	}
	if len(resolved) < minInsightTrades {
		return nil
	}

	type bucket struct{ won, total int }
	byHour := make(map[int]*bucket)
	byCity := make(map[string]*bucket)
	wonTotal := 0

	for _, rec := range resolved {
		won := rec.PnL > 0
		if won {
			wonTotal++
		}

		hour := rec.EntryTime.UTC().Hour()
		if byHour[hour] == nil {
			byHour[hour] = &bucket{}
		}
		byHour[hour].total++
		if won {
			byHour[hour].won++
		}

		city := rec.City
		if city == "" {
			city = "unknown"
		}
		if byCity[city] == nil {
			byCity[city] = &bucket{}
		}
		byCity[city].total++
		if won {
			byCity[city].won++
		}
	}

	var hourStats []domain.HourStat
	for h, b := range byHour {
		if b.total < minBucketTrades {
			continue
		}
		hourStats = append(hourStats, domain.HourStat{
			Hour:    h,
			WinRate: round2(float64(b.won) / float64(b.total)),
			Trades:  b.total,
		})
	}
	sort.Slice(hourStats, func(i, j int) bool { return hourStats[i].WinRate > hourStats[j].WinRate })
	if len(hourStats) > topBuckets {
		hourStats = hourStats[:topBuckets]
	}

	var cityStats []domain.CityStat
	for c, b := range byCity {
		if b.total < minBucketTrades {
			continue
		}
		cityStats = append(cityStats, domain.CityStat{
			City:    c,
			WinRate: round2(float64(b.won) / float64(b.total)),
			Trades:  b.total,
		})
	}
	sort.Slice(cityStats, func(i, j int) bool { return cityStats[i].WinRate > cityStats[j].WinRate })
	if len(cityStats) > topBuckets {
		cityStats = cityStats[:topBuckets]
	}

	return &domain.Insights{
		OverallWinRate: round2(float64(wonTotal) / float64(len(resolved))),
		TotalTrades:    len(resolved),
		ByHour:         hourStats,
		ByCity:         cityStats,
	}
}
