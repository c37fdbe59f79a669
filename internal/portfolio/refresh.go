package portfolio

// refresh.go — acceso concurrente fuera de la sección crítica del tick.
// Estos métodos toman el lock internamente: los usan el price refresher y el
// engine para copiar estado antes de hacer I/O de red.

// PositionRef identifica una posición abierta para el fetch de precios.
type PositionRef struct {
	ConditionID string
	NoTokenID   string
	Slug        string
}

// PositionRefs devuelve los identificadores de las posiciones abiertas.
// Copia bajo lock — los fetches HTTP van después, sin el lock.
func (p *Portfolio) PositionRefs() []PositionRef {
	p.mu.Lock()
	defer p.mu.Unlock()

	refs := make([]PositionRef, 0, len(p.positions))
	for cid, pos := range p.positions {
		refs = append(refs, PositionRef{ConditionID: cid, NoTokenID: pos.NoTokenID, Slug: pos.Slug})
	}
	return refs
}

// ExistingIDs devuelve los conditionIDs ya vistos (abiertos o cerrados),
// para que el scan no re-entre en mercados conocidos.
func (p *Portfolio) ExistingIDs() map[string]bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make(map[string]bool, len(p.positions)+len(p.closed))
	for cid := range p.positions {
		ids[cid] = true
	}
	for _, rec := range p.closed {
		if rec.ConditionID != "" {
			ids[rec.ConditionID] = true
		}
	}
	return ids
}

// ApplyRefreshedPrice actualiza current_no y el trail de una posición con un
// precio fresco del refresher. No evalúa resoluciones ni stops — eso lo hace
// ApplyPriceUpdates dentro del tick principal. Devuelve el precio anterior
// y false si la posición ya no está abierta.
func (p *Portfolio) ApplyRefreshedPrice(cid string, noPrice float64) (float64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pos, ok := p.positions[cid]
	if !ok {
		return 0, false
	}
	old := pos.CurrentNo
	pos.CurrentNo = noPrice
	if newTrail := round4(noPrice - p.cfg.TrailStopDistance); newTrail > pos.TrailStop {
		pos.TrailStop = newTrail
	}
	return old, true
}

// OpenCount devuelve el número de posiciones abiertas.
func (p *Portfolio) OpenCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.positions)
}

// CapitalDisponible devuelve el capital libre para nuevas entradas.
// Requiere lock del caller — se consulta dentro de la sección crítica
// para decidir el sizing de cada entrada.
func (p *Portfolio) CapitalDisponible() float64 {
	return p.capitalDisponible
}
