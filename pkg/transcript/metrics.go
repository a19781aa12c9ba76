package transcript

// MetricsRecord is one side-table entry of per-stage pipeline timings keyed
// by correlation id. Records are not visible turns; they exist so timing
// data and turns can arrive in either order and still find each other.
// Records are retained for the lifetime of the session.
type MetricsRecord struct {
	CorrelationID string  `json:"correlation_id"`
	Stages        Latency `json:"stages"`
	ObservedAt    int64   `json:"observed_at"` // epoch milliseconds
}

// metricsTable stores records in insertion order. "Latest" is the most
// recently inserted or updated key. That backs the best-effort correlation
// heuristic: with a single conversation in flight there is at most one
// pending record, so latest-inserted is the right one to bind.
type metricsTable struct {
	records map[string]*MetricsRecord
	order   []string
}

func newMetricsTable() *metricsTable {
	return &metricsTable{records: make(map[string]*MetricsRecord)}
}

// put inserts or overwrites the record for its correlation id and marks the
// key as the latest.
func (t *metricsTable) put(rec MetricsRecord) {
	if _, exists := t.records[rec.CorrelationID]; exists {
		for i, id := range t.order {
			if id == rec.CorrelationID {
				t.order = append(t.order[:i], t.order[i+1:]...)
				break
			}
		}
	}
	t.records[rec.CorrelationID] = &rec
	t.order = append(t.order, rec.CorrelationID)
}

func (t *metricsTable) get(id string) (*MetricsRecord, bool) {
	rec, ok := t.records[id]
	return rec, ok
}

func (t *metricsTable) latest() (*MetricsRecord, bool) {
	if len(t.order) == 0 {
		return nil, false
	}
	return t.records[t.order[len(t.order)-1]], true
}

// snapshot returns copies of all records in insertion order.
func (t *metricsTable) snapshot() []MetricsRecord {
	out := make([]MetricsRecord, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}
