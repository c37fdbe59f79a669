package ports

import (
	"context"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

// Notifier recibe el resultado de cada ciclo para presentarlo al operador.
// Se llama fuera del lock del portfolio, con copias.
type Notifier interface {
	NotifyCycle(ctx context.Context, cycle int, opps []domain.ScoredCandidate,
		open []domain.Position, ledger domain.LedgerState) error
}
