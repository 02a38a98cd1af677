package store

import "time"

// RunLedgerEntry is one scheduler state transition or task outcome, kept
// for operator visibility into run history (SPEC_FULL.md's supplemented
// feature; the in-memory RunState remains the pipeline's authoritative
// progress record during a run).
type RunLedgerEntry struct {
	ModelID      string
	RunTime      time.Time
	State        string // PENDING, MONITORING, COMPLETE, ABANDONED
	ForecastHour *int
	VariableID   *string
	Outcome      *string // success, failed, skipped
	Detail       *string
}

// Ledger records run-state transitions and task outcomes.
type Ledger struct {
	db *DB
}

// NewLedger wraps a connected DB as a Ledger repository.
func NewLedger(db *DB) *Ledger {
	return &Ledger{db: db}
}

// RecordState appends a scheduler state-transition row.
func (l *Ledger) RecordState(modelID string, runTime time.Time, state string) error {
	_, err := l.db.Exec(
		`INSERT INTO run_ledger (model_id, run_time, state) VALUES ($1, $2, $3)`,
		modelID, runTime, state,
	)
	return err
}

// RecordTaskOutcome appends a per-(forecast_hour, variable) task outcome
// row under a run's MONITORING state.
func (l *Ledger) RecordTaskOutcome(modelID string, runTime time.Time, forecastHour int, variableID, outcome, detail string) error {
	_, err := l.db.Exec(
		`INSERT INTO run_ledger (model_id, run_time, state, forecast_hour, variable_id, outcome, detail)
		 VALUES ($1, $2, 'MONITORING', $3, $4, $5, $6)`,
		modelID, runTime, forecastHour, variableID, outcome, detail,
	)
	return err
}

// RunsForModel returns the distinct run_times recorded for a model, most
// recent first.
func (l *Ledger) RunsForModel(modelID string) ([]time.Time, error) {
	rows, err := l.db.Query(
		`SELECT DISTINCT run_time FROM run_ledger WHERE model_id = $1 ORDER BY run_time DESC`,
		modelID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
