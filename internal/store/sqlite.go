package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nvandessel/spikerecon/internal/epochmodel"
	"github.com/nvandessel/spikerecon/internal/models"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteStore implements AnalysisStore on a single SQLite file.
type SQLiteStore struct {
	mu   sync.RWMutex
	db   *sql.DB
	path string
}

var _ AnalysisStore = (*SQLiteStore)(nil)

// Open opens or creates the database at path, creating its directory.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(context.Background(), db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// SaveRun stores a run in one transaction and returns its id. A missing id
// is generated; a zero CreatedAt becomes now.
func (s *SQLiteStore) SaveRun(ctx context.Context, run RunRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.ID == "" {
		run.ID = uuid.NewString()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, record_path, trigger_neuron) VALUES (?, ?, ?, ?)`,
		run.ID, formatTime(run.CreatedAt), run.RecordPath, run.TriggerNeuron); err != nil {
		return "", fmt.Errorf("failed to insert run: %w", err)
	}

	for i, a := range run.Engines {
		if err := insertEngine(ctx, tx, run.ID, i, a); err != nil {
			return "", fmt.Errorf("engine %s: %w", a.Engine, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit run: %w", err)
	}
	return run.ID, nil
}

func insertEngine(ctx context.Context, tx *sql.Tx, runID string, position int, a *epochmodel.EngineAnalysis) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO engines (run_id, engine, events, spikes, adjustments, dropped,
			first_tick, last_tick, first_time, last_time, duration_ns, tick_period_ns, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.Engine, a.Events, a.Spikes, a.Adjustments, a.Dropped,
		a.Timing.FirstTick, a.Timing.LastTick, nullTime(a.Timing.FirstTime), nullTime(a.Timing.LastTime),
		int64(a.Timing.Duration), int64(a.Timing.TickPeriod), position); err != nil {
		return fmt.Errorf("failed to insert engine: %w", err)
	}

	for e, epoch := range a.Epochs {
		n := e + 1
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO epochs (run_id, engine, epoch, spikes, adjustments) VALUES (?, ?, ?, ?, ?)`,
			runID, a.Engine, n, len(epoch.Spikes), epoch.AdjustmentCount()); err != nil {
			return fmt.Errorf("failed to insert epoch %d: %w", n, err)
		}

		for sp, spike := range epoch.Spikes {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO spikes (run_id, engine, epoch, seq, tick, time, neuron, kind)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, a.Engine, n, sp+1, spike.Tick, nullTime(spike.Time), spike.Neuron, int(spike.Kind)); err != nil {
				return fmt.Errorf("failed to insert spike %d of epoch %d: %w", sp+1, n, err)
			}

			for ad, adj := range spike.Adjustments {
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO adjustments (run_id, engine, epoch, spike_seq, seq, neuron, synapse, strength)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
					runID, a.Engine, n, sp+1, ad+1, adj.Neuron, adj.Synapse, adj.Strength); err != nil {
					return fmt.Errorf("failed to insert adjustment: %w", err)
				}
			}
		}
	}
	return nil
}

// ListRuns returns the newest runs first. A limit of 0 or less returns all.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.record_path, r.trigger_neuron,
			(SELECT COUNT(*) FROM engines e WHERE e.run_id = r.id)
		FROM runs r
		ORDER BY r.created_at DESC, r.id
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (RunSummary, error) {
	var r RunSummary
	var created string
	if err := row.Scan(&r.ID, &created, &r.RecordPath, &r.TriggerNeuron, &r.Engines); err != nil {
		return RunSummary{}, fmt.Errorf("failed to scan run: %w", err)
	}
	r.CreatedAt = parseTime(created)
	return r, nil
}

// ResolveRun finds a run by full id, unique prefix or LatestRun.
func (s *SQLiteStore) ResolveRun(ctx context.Context, ref string) (*RunSummary, error) {
	if ref == "" || ref == LatestRun {
		runs, err := s.ListRuns(ctx, 1)
		if err != nil {
			return nil, err
		}
		if len(runs) == 0 {
			return nil, ErrRunNotFound
		}
		return &runs[0], nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.created_at, r.record_path, r.trigger_neuron,
			(SELECT COUNT(*) FROM engines e WHERE e.run_id = r.id)
		FROM runs r
		WHERE r.id = ? OR substr(r.id, 1, length(?)) = ?
		ORDER BY (r.id = ?) DESC
		LIMIT 2`, ref, ref, ref, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	defer rows.Close()

	var matches []RunSummary
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch {
	case len(matches) == 0:
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, ref)
	case matches[0].ID == ref || len(matches) == 1:
		return &matches[0], nil
	default:
		return nil, fmt.Errorf("run prefix %s is ambiguous", ref)
	}
}

// Engines returns the engine summaries of a run in the order they were saved.
func (s *SQLiteStore) Engines(ctx context.Context, runID string) ([]EngineSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.engine, e.events, e.spikes, e.adjustments, e.dropped,
			e.first_tick, e.last_tick, e.first_time, e.last_time, e.duration_ns, e.tick_period_ns,
			(SELECT COUNT(*) FROM epochs p WHERE p.run_id = e.run_id AND p.engine = e.engine)
		FROM engines e
		WHERE e.run_id = ?
		ORDER BY e.position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query engines: %w", err)
	}
	defer rows.Close()

	var engines []EngineSummary
	for rows.Next() {
		var e EngineSummary
		var firstTick, lastTick, duration, period sql.NullInt64
		var firstTime, lastTime sql.NullString
		if err := rows.Scan(&e.Engine, &e.Events, &e.Spikes, &e.Adjustments, &e.Dropped,
			&firstTick, &lastTick, &firstTime, &lastTime, &duration, &period, &e.Epochs); err != nil {
			return nil, fmt.Errorf("failed to scan engine: %w", err)
		}
		e.Timing = epochmodel.Timing{
			FirstTick:  firstTick.Int64,
			LastTick:   lastTick.Int64,
			FirstTime:  parseTime(firstTime.String),
			LastTime:   parseTime(lastTime.String),
			Duration:   time.Duration(duration.Int64),
			TickPeriod: time.Duration(period.Int64),
		}
		engines = append(engines, e)
	}
	return engines, rows.Err()
}

// LoadEpochs rebuilds the epoch model saved for one engine of a run.
func (s *SQLiteStore) LoadEpochs(ctx context.Context, runID, engine string) ([]*models.Epoch, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM engines WHERE run_id = ? AND engine = ?`, runID, engine).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to look up engine: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEngineNotFound, engine)
	}

	var count int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM epochs WHERE run_id = ? AND engine = ?`, runID, engine).Scan(&count); err != nil {
		return nil, fmt.Errorf("failed to count epochs: %w", err)
	}
	epochs := make([]*models.Epoch, count)
	for i := range epochs {
		epochs[i] = &models.Epoch{}
	}

	type key struct{ epoch, seq int }
	spikes := make(map[key]*models.SpikeEvent)

	rows, err := s.db.QueryContext(ctx, `
		SELECT epoch, seq, tick, time, neuron, kind FROM spikes
		WHERE run_id = ? AND engine = ?
		ORDER BY epoch, seq`, runID, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to query spikes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k key
		var sp models.SpikeEvent
		var ts sql.NullString
		var kind int
		if err := rows.Scan(&k.epoch, &k.seq, &sp.Tick, &ts, &sp.Neuron, &kind); err != nil {
			return nil, fmt.Errorf("failed to scan spike: %w", err)
		}
		if k.epoch < 1 || k.epoch > count {
			return nil, fmt.Errorf("spike references missing epoch %d", k.epoch)
		}
		sp.Time = parseTime(ts.String)
		sp.Kind = models.EventKind(kind)
		epochs[k.epoch-1].Spikes = append(epochs[k.epoch-1].Spikes, &sp)
		spikes[k] = &sp
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	adjRows, err := s.db.QueryContext(ctx, `
		SELECT epoch, spike_seq, neuron, synapse, strength FROM adjustments
		WHERE run_id = ? AND engine = ?
		ORDER BY epoch, spike_seq, seq`, runID, engine)
	if err != nil {
		return nil, fmt.Errorf("failed to query adjustments: %w", err)
	}
	defer adjRows.Close()

	for adjRows.Next() {
		var k key
		var adj models.Adjustment
		if err := adjRows.Scan(&k.epoch, &k.seq, &adj.Neuron, &adj.Synapse, &adj.Strength); err != nil {
			return nil, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		sp, ok := spikes[k]
		if !ok {
			return nil, fmt.Errorf("adjustment references missing spike %d of epoch %d", k.seq, k.epoch)
		}
		sp.Adjustments = append(sp.Adjustments, adj)
	}
	return epochs, adjRows.Err()
}

// DeleteRun removes a run and everything saved with it.
func (s *SQLiteStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// timeLayout keeps a fixed fraction width so stored times sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(t), Valid: true}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
