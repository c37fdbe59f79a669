package polymarket

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// parsePrice convierte un precio string de la API a float64.
func parsePrice(s string) (float64, bool) {
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseOutcomePrices decodifica el array codificado "outcomePrices" de Gamma.
// Ajusta el lado en cero cuando el mercado está resuelto de facto (0/0.99)
// para no confundir un precio legítimo con un dato vacío.
func parseOutcomePrices(raw string) (yes, no float64, ok bool) {
	if raw == "" {
		return 0, 0, false
	}
	var prices []string
	if err := json.Unmarshal([]byte(raw), &prices); err != nil || len(prices) < 2 {
		return 0, 0, false
	}

	yes, yesOK := parsePrice(prices[0])
	no, noOK := parsePrice(prices[1])
	if !yesOK || !noOK || yes < 0 || no < 0 {
		return 0, 0, false
	}

	if yes == 0 && no >= 0.99 {
		yes = 0.001
	}
	if no == 0 && yes >= 0.99 {
		no = 0.001
	}
	return yes, no, true
}

// parseTokenIDs decodifica el array codificado "clobTokenIds" de Gamma.
// El orden es [yes, no].
func parseTokenIDs(raw string) (yesID, noID string) {
	if raw == "" {
		return "", ""
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return "", ""
	}
	if len(ids) > 0 {
		yesID = ids[0]
	}
	if len(ids) > 1 {
		noID = ids[1]
	}
	return yesID, noID
}

// parseEndDate parsea el endDate ISO de Gamma. Devuelve zero si falta o es inválido.
func parseEndDate(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// monthNames para construir slugs de eventos de temperatura.
var monthNames = [...]string{
	"january", "february", "march", "april", "may", "june",
	"july", "august", "september", "october", "november", "december",
}

// buildEventSlug construye el slug del evento de temperatura de una ciudad y fecha.
func buildEventSlug(city string, date time.Time) string {
	return fmt.Sprintf("highest-temperature-in-%s-on-%s-%d-%d",
		city, monthNames[date.Month()-1], date.Day(), date.Year())
}
