package storage

// sqlite.go — espejo durable del estado del bot.
//
// Estrategia:
//   - `bot_state`: una sola fila (id=1) con el ledger de capital y el
//     inicio de sesión. Se reescribe entera en cada mutación.
//   - `open_positions`: una fila por posición abierta (UPSERT). Se borra
//     al cerrar.
//   - `closed_positions`: historial append-only de cierres.
//   - `capital_history`: puntos de capital muestreados; el portfolio
//     decide la cadencia de escritura, aquí solo se apendea.
//
// El estado en memoria es el autoritativo: un fallo de escritura se
// loguea y el ciclo continúa.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alejandrodnm/weatherbot/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Ledger de capital, una sola fila
CREATE TABLE IF NOT EXISTS bot_state (
    id                 INTEGER PRIMARY KEY CHECK (id = 1),
    capital_inicial    REAL NOT NULL,
    capital_total      REAL NOT NULL,
    capital_disponible REAL NOT NULL,
    session_start      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS open_positions (
    condition_id TEXT PRIMARY KEY,
    city         TEXT NOT NULL DEFAULT '',
    question     TEXT NOT NULL DEFAULT '',
    slug         TEXT NOT NULL DEFAULT '',
    yes_token_id TEXT NOT NULL DEFAULT '',
    no_token_id  TEXT NOT NULL DEFAULT '',
    entry_no     REAL NOT NULL,
    current_no   REAL NOT NULL,
    allocated    REAL NOT NULL,
    tokens       REAL NOT NULL,
    max_gain     REAL NOT NULL,
    trail_stop   REAL NOT NULL,
    partial_done INTEGER NOT NULL DEFAULT 0,
    score        INTEGER NOT NULL DEFAULT 0,
    entry_time   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS closed_positions (
    record_id    TEXT PRIMARY KEY,
    condition_id TEXT NOT NULL,
    city         TEXT NOT NULL DEFAULT '',
    question     TEXT NOT NULL DEFAULT '',
    entry_no     REAL NOT NULL,
    allocated    REAL NOT NULL,
    pnl          REAL NOT NULL,
    score        INTEGER NOT NULL DEFAULT 0,
    status       TEXT NOT NULL,
    resolution   TEXT NOT NULL DEFAULT '',
    entry_time   DATETIME NOT NULL,
    close_time   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS capital_history (
    id      INTEGER PRIMARY KEY AUTOINCREMENT,
    at      DATETIME NOT NULL,
    capital REAL NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_closed_time ON closed_positions(close_time DESC);
CREATE INDEX IF NOT EXISTS idx_capital_at  ON capital_history(at DESC);
`

// SQLiteStorage implementa ports.StateStorage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// SaveState persiste el ledger de capital. Siempre la fila id=1.
func (s *SQLiteStorage) SaveState(ctx context.Context, st domain.LedgerState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO bot_state (id, capital_inicial, capital_total, capital_disponible, session_start)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			capital_inicial    = excluded.capital_inicial,
			capital_total      = excluded.capital_total,
			capital_disponible = excluded.capital_disponible,
			session_start      = excluded.session_start
	`, st.CapitalInicial, st.CapitalTotal, st.CapitalDisponible, st.SessionStart.UTC())
	if err != nil {
		return fmt.Errorf("storage.SaveState: %w", err)
	}
	return nil
}

// UpsertOpenPosition inserta o actualiza una posición abierta.
func (s *SQLiteStorage) UpsertOpenPosition(ctx context.Context, pos domain.Position) error {
	partial := 0
	if pos.PartialDone {
		partial = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO open_positions
			(condition_id, city, question, slug, yes_token_id, no_token_id,
			 entry_no, current_no, allocated, tokens, max_gain, trail_stop,
			 partial_done, score, entry_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(condition_id) DO UPDATE SET
			current_no   = excluded.current_no,
			allocated    = excluded.allocated,
			tokens       = excluded.tokens,
			max_gain     = excluded.max_gain,
			trail_stop   = excluded.trail_stop,
			partial_done = excluded.partial_done
	`,
		pos.ConditionID, pos.City, pos.Question, pos.Slug, pos.YesTokenID, pos.NoTokenID,
		pos.EntryNo, pos.CurrentNo, pos.Allocated, pos.Tokens, pos.MaxGain, pos.TrailStop,
		partial, pos.Score, pos.EntryTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.UpsertOpenPosition: %s: %w", pos.ConditionID, err)
	}
	return nil
}

// DeleteOpenPosition elimina una posición abierta. No falla si no existe.
func (s *SQLiteStorage) DeleteOpenPosition(ctx context.Context, conditionID string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM open_positions WHERE condition_id = ?`, conditionID,
	); err != nil {
		return fmt.Errorf("storage.DeleteOpenPosition: %s: %w", conditionID, err)
	}
	return nil
}

// InsertClosedPosition añade un registro de cierre al historial.
func (s *SQLiteStorage) InsertClosedPosition(ctx context.Context, rec domain.ClosedPosition) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO closed_positions
			(record_id, condition_id, city, question, entry_no, allocated,
			 pnl, score, status, resolution, entry_time, close_time)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.RecordID, rec.ConditionID, rec.City, rec.Question, rec.EntryNo, rec.Allocated,
		rec.PnL, rec.Score, string(rec.Status), rec.Resolution,
		rec.EntryTime.UTC(), rec.CloseTime.UTC(),
	)
	if err != nil {
		return fmt.Errorf("storage.InsertClosedPosition: %s: %w", rec.ConditionID, err)
	}
	return nil
}

// AppendCapitalPoint añade un punto al histórico de capital.
func (s *SQLiteStorage) AppendCapitalPoint(ctx context.Context, pt domain.CapitalPoint) error {
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO capital_history (at, capital) VALUES (?, ?)`,
		pt.Time.UTC(), pt.Capital,
	); err != nil {
		return fmt.Errorf("storage.AppendCapitalPoint: %w", err)
	}
	return nil
}

// LoadState devuelve el ledger guardado, o nil si la DB está vacía.
func (s *SQLiteStorage) LoadState(ctx context.Context) (*domain.LedgerState, error) {
	var st domain.LedgerState
	var sessionStart string
	err := s.db.QueryRowContext(ctx, `
		SELECT capital_inicial, capital_total, capital_disponible, session_start
		FROM bot_state WHERE id = 1
	`).Scan(&st.CapitalInicial, &st.CapitalTotal, &st.CapitalDisponible, &sessionStart)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage.LoadState: %w", err)
	}
	st.SessionStart = parseStoredTime(sessionStart)
	return &st, nil
}

// LoadOpenPositions devuelve las posiciones abiertas persistidas.
func (s *SQLiteStorage) LoadOpenPositions(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT condition_id, city, question, slug, yes_token_id, no_token_id,
		       entry_no, current_no, allocated, tokens, max_gain, trail_stop,
		       partial_done, score, entry_time
		FROM open_positions
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadOpenPositions: query: %w", err)
	}
	defer rows.Close()

	var positions []domain.Position
	for rows.Next() {
		var pos domain.Position
		var partial int
		var entryTime string
		if err := rows.Scan(
			&pos.ConditionID, &pos.City, &pos.Question, &pos.Slug,
			&pos.YesTokenID, &pos.NoTokenID,
			&pos.EntryNo, &pos.CurrentNo, &pos.Allocated, &pos.Tokens,
			&pos.MaxGain, &pos.TrailStop,
			&partial, &pos.Score, &entryTime,
		); err != nil {
			return nil, fmt.Errorf("storage.LoadOpenPositions: scan row: %w", err)
		}
		pos.PartialDone = partial == 1
		pos.Status = domain.StatusOpen
		pos.EntryTime = parseStoredTime(entryTime)
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// LoadClosedPositions devuelve el historial de cierres en orden cronológico.
func (s *SQLiteStorage) LoadClosedPositions(ctx context.Context) ([]domain.ClosedPosition, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, condition_id, city, question, entry_no, allocated,
		       pnl, score, status, resolution, entry_time, close_time
		FROM closed_positions
		ORDER BY close_time ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadClosedPositions: query: %w", err)
	}
	defer rows.Close()

	var records []domain.ClosedPosition
	for rows.Next() {
		var rec domain.ClosedPosition
		var status, entryTime, closeTime string
		if err := rows.Scan(
			&rec.RecordID, &rec.ConditionID, &rec.City, &rec.Question,
			&rec.EntryNo, &rec.Allocated, &rec.PnL, &rec.Score,
			&status, &rec.Resolution, &entryTime, &closeTime,
		); err != nil {
			return nil, fmt.Errorf("storage.LoadClosedPositions: scan row: %w", err)
		}
		rec.Status = domain.Status(status)
		rec.EntryTime = parseStoredTime(entryTime)
		rec.CloseTime = parseStoredTime(closeTime)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// LoadCapitalHistory devuelve los puntos de capital en orden cronológico.
func (s *SQLiteStorage) LoadCapitalHistory(ctx context.Context) ([]domain.CapitalPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, capital FROM capital_history ORDER BY at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadCapitalHistory: query: %w", err)
	}
	defer rows.Close()

	var points []domain.CapitalPoint
	for rows.Next() {
		var pt domain.CapitalPoint
		var at string
		if err := rows.Scan(&at, &pt.Capital); err != nil {
			return nil, fmt.Errorf("storage.LoadCapitalHistory: scan row: %w", err)
		}
		pt.Time = parseStoredTime(at)
		points = append(points, pt)
	}
	return points, rows.Err()
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// parseStoredTime acepta los formatos con los que el driver serializa time.Time.
func parseStoredTime(s string) time.Time {
	for _, layout := range []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05.999999999-07:00",
		"2006-01-02 15:04:05",
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
