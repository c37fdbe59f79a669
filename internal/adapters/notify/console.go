package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/weatherbot/internal/domain"
)

// Console implementa ports.Notifier escribiendo el resultado de cada
// ciclo a la terminal.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyCycle imprime el resumen del ciclo en el modo configurado.
func (c *Console) NotifyCycle(_ context.Context, cycle int, opps []domain.ScoredCandidate,
	open []domain.Position, ledger domain.LedgerState) error {

	if c.table {
		c.printFull(cycle, opps, open, ledger)
	} else {
		c.printCompact(cycle, opps, open, ledger)
	}
	return nil
}

// printCompact imprime lo esencial en 1-2 líneas.
func (c *Console) printCompact(cycle int, opps []domain.ScoredCandidate,
	open []domain.Position, ledger domain.LedgerState) {

	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] ciclo #%d | %d mkts | %d abiertas | total $%.2f disp $%.2f",
		now, cycle, len(opps), len(open), ledger.CapitalTotal, ledger.CapitalDisponible)

	shown := 0
	for _, opp := range opps {
		if shown >= 3 || !opp.CLOBOk {
			break
		}
		fmt.Fprintf(&sb, " | %s NO %.1f¢ s%d/%s",
			compactName(opp.Question, 22), opp.NoPrice*100, opp.Score.Total, opp.Score.Zone)
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime la tabla de candidatos y el estado del portfolio.
func (c *Console) printFull(cycle int, opps []domain.ScoredCandidate,
	open []domain.Position, ledger domain.LedgerState) {

	now := time.Now().Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] ciclo #%d — %d candidatos\n", now, cycle, len(opps))

	if len(opps) > 0 {
		table := tablewriter.NewWriter(c.out)
		table.Header("#", "City", "Market", "NO", "Vol", "Score", "Zona", "Traj", "Obs", "CLOB")

		for i, opp := range opps {
			clobLabel := "-"
			if opp.CLOBOk {
				clobLabel = "ok"
			}
			table.Append(
				fmt.Sprintf("%d", i+1),
				opp.City,
				domain.TruncateQuestion(opp.Question, opp.ConditionID, 38),
				fmt.Sprintf("%.1f¢", opp.NoPrice*100),
				fmt.Sprintf("$%.0f", opp.Volume),
				fmt.Sprintf("%d", opp.Score.Total),
				string(opp.Score.Zone),
				fmt.Sprintf("%d", opp.Score.Trajectory),
				fmt.Sprintf("%d", opp.Score.Observations),
				clobLabel,
			)
		}
		table.Render()
	}

	c.printPortfolio(open, ledger)
}

// printPortfolio imprime las posiciones abiertas y el ledger.
func (c *Console) printPortfolio(open []domain.Position, ledger domain.LedgerState) {
	pnl := ledger.CapitalTotal - ledger.CapitalInicial
	fmt.Fprintf(c.out, "  Capital: $%.2f total | $%.2f disponible | P&L %+.2f\n",
		ledger.CapitalTotal, ledger.CapitalDisponible, pnl)

	if len(open) == 0 {
		fmt.Fprintln(c.out, "  Sin posiciones abiertas")
		return
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Market", "Entry", "Now", "Trail", "Alloc", "P&L flot", "Parcial")

	for _, pos := range open {
		partial := "-"
		if pos.PartialDone {
			partial = "50%"
		}
		table.Append(
			domain.TruncateQuestion(pos.Question, pos.ConditionID, 38),
			fmt.Sprintf("%.1f¢", pos.EntryNo*100),
			fmt.Sprintf("%.1f¢", pos.CurrentNo*100),
			fmt.Sprintf("%.1f¢", pos.TrailStop*100),
			fmt.Sprintf("$%.2f", pos.Allocated),
			fmt.Sprintf("%+.2f", pos.FloatingPnL()),
			partial,
		)
	}
	table.Render()
}

// compactName corta el nombre en el último espacio antes del límite.
func compactName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := s[:maxLen]
	if idx := strings.LastIndex(cut, " "); idx > maxLen/2 {
		cut = cut[:idx]
	}
	return cut + "…"
}
