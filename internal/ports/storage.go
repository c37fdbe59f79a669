package ports

import (
	"context"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

// StateStorage es el espejo durable del estado en memoria del portfolio.
// Se escribe tras cada mutación de capital y se lee una vez al arrancar.
type StateStorage interface {
	// SaveState persiste el ledger de capital y el inicio de sesión.
	SaveState(ctx context.Context, st domain.LedgerState) error

	// UpsertOpenPosition inserta o actualiza una posición abierta.
	UpsertOpenPosition(ctx context.Context, pos domain.Position) error

	// DeleteOpenPosition elimina una posición abierta por conditionID.
	DeleteOpenPosition(ctx context.Context, conditionID string) error

	// InsertClosedPosition añade un registro de cierre (append-only).
	InsertClosedPosition(ctx context.Context, rec domain.ClosedPosition) error

	// AppendCapitalPoint añade un punto al histórico de capital.
	AppendCapitalPoint(ctx context.Context, pt domain.CapitalPoint) error

	// LoadState devuelve el ledger guardado, o nil si no hay estado previo.
	LoadState(ctx context.Context) (*domain.LedgerState, error)

	// LoadOpenPositions devuelve las posiciones abiertas persistidas.
	LoadOpenPositions(ctx context.Context) ([]domain.Position, error)

	// LoadClosedPositions devuelve el historial de cierres.
	LoadClosedPositions(ctx context.Context) ([]domain.ClosedPosition, error)

	// LoadCapitalHistory devuelve los puntos de capital persistidos.
	LoadCapitalHistory(ctx context.Context) ([]domain.CapitalPoint, error)

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
