package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/okian/krpace/internal/domain/model"
	"github.com/okian/krpace/pkg/metrics"
)

// schemaV1 mirrors the annual_krs, quarter_targets and check_ins tables.
const schemaV1 = `
CREATE TABLE IF NOT EXISTS annual_krs (
	id            TEXT PRIMARY KEY,
	title         TEXT NOT NULL DEFAULT '',
	kr_type       TEXT NOT NULL,
	direction     TEXT NOT NULL,
	aggregation   TEXT NOT NULL,
	start_value   REAL NOT NULL DEFAULT 0,
	target_value  REAL NOT NULL DEFAULT 0,
	current_value REAL NOT NULL DEFAULT 0,
	unit          TEXT NOT NULL DEFAULT '',
	plan_year     INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS quarter_targets (
	id           TEXT PRIMARY KEY,
	annual_kr_id TEXT NOT NULL REFERENCES annual_krs(id) ON DELETE CASCADE,
	quarter      INTEGER NOT NULL,
	plan_year    INTEGER NOT NULL DEFAULT 0,
	target_value REAL NOT NULL DEFAULT 0,
	notes        TEXT NOT NULL DEFAULT '',
	UNIQUE(annual_kr_id, plan_year, quarter)
);

CREATE TABLE IF NOT EXISTS check_ins (
	seq               INTEGER PRIMARY KEY AUTOINCREMENT,
	id                TEXT NOT NULL UNIQUE,
	annual_kr_id      TEXT NOT NULL REFERENCES annual_krs(id) ON DELETE CASCADE,
	value             REAL NOT NULL,
	recorded_at       TEXT NOT NULL,
	recorded_at_ns    INTEGER NOT NULL,
	quarter_target_id TEXT NOT NULL DEFAULT '',
	note              TEXT NOT NULL DEFAULT '',
	evidence_url      TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_check_ins_kr_time ON check_ins(annual_kr_id, recorded_at_ns, seq);
`

const (
	krColumns = `id, title, kr_type, direction, aggregation, start_value, target_value, current_value, unit, plan_year`
	qtColumns = `id, annual_kr_id, quarter, plan_year, target_value, notes`
	ciColumns = `id, annual_kr_id, value, recorded_at, quarter_target_id, note, evidence_url`
)

// SQLiteStore is a Store backed by a SQLite database file.
type SQLiteStore struct {
	db   *sql.DB
	opts options
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens the database at path with WAL and foreign keys enabled
// and applies the schema.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection: a single writer, and transactions serialize Snapshot
	// reads against check-in appends.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schemaV1); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate schema: %w", err)
	}

	s := &SQLiteStore{db: db, opts: applyOptions(opts)}
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateKeyResults(n)
	}
	return s, nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanKeyResult(row scanner) (model.KeyResult, error) {
	var kr model.KeyResult
	var krType, direction, aggregation string
	err := row.Scan(&kr.ID, &kr.Title, &krType, &direction, &aggregation,
		&kr.StartValue, &kr.TargetValue, &kr.CurrentValue, &kr.Unit, &kr.PlanYear)
	kr.Type = model.KRType(krType)
	kr.Direction = model.Direction(direction)
	kr.Aggregation = model.Aggregation(aggregation)
	return kr, err
}

func scanQuarterTarget(row scanner) (model.QuarterTarget, error) {
	var qt model.QuarterTarget
	err := row.Scan(&qt.ID, &qt.KeyResultID, &qt.Quarter, &qt.PlanYear, &qt.TargetValue, &qt.Notes)
	return qt, err
}

func scanCheckIn(row scanner) (model.CheckIn, error) {
	var ci model.CheckIn
	err := row.Scan(&ci.ID, &ci.KeyResultID, &ci.Value, &ci.RecordedAt, &ci.QuarterTargetID, &ci.Note, &ci.EvidenceURL)
	return ci, err
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getKeyResult(ctx context.Context, q queryer, id string) (model.KeyResult, error) {
	kr, err := scanKeyResult(q.QueryRowContext(ctx, `SELECT `+krColumns+` FROM annual_krs WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.KeyResult{}, notFound("key result", id)
	}
	if err != nil {
		return model.KeyResult{}, fmt.Errorf("get key result: %w", err)
	}
	return kr, nil
}

func listQuarterTargets(ctx context.Context, q queryer, id string) ([]model.QuarterTarget, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+qtColumns+` FROM quarter_targets WHERE annual_kr_id = ? ORDER BY plan_year, quarter`, id)
	if err != nil {
		return nil, fmt.Errorf("list quarter targets: %w", err)
	}
	defer rows.Close()

	out := []model.QuarterTarget{}
	for rows.Next() {
		qt, err := scanQuarterTarget(rows)
		if err != nil {
			return nil, fmt.Errorf("scan quarter target: %w", err)
		}
		out = append(out, qt)
	}
	return out, rows.Err()
}

func listCheckIns(ctx context.Context, q queryer, id string) ([]model.CheckIn, error) {
	rows, err := q.QueryContext(ctx, `SELECT `+ciColumns+` FROM check_ins WHERE annual_kr_id = ? ORDER BY recorded_at_ns, seq`, id)
	if err != nil {
		return nil, fmt.Errorf("list check-ins: %w", err)
	}
	defer rows.Close()

	out := []model.CheckIn{}
	for rows.Next() {
		ci, err := scanCheckIn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check-in: %w", err)
		}
		out = append(out, ci)
	}
	return out, rows.Err()
}

// CreateKeyResult implements Store.
func (s *SQLiteStore) CreateKeyResult(ctx context.Context, kr model.KeyResult) (model.KeyResult, error) {
	defer observeUpdate(time.Now())

	kr, err := prepareKeyResult(kr, s.opts.newID)
	if err != nil {
		return model.KeyResult{}, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var exists int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM annual_krs WHERE id = ?`, kr.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check key result: %w", err)
		}
		if exists > 0 {
			return fmt.Errorf("%w: key result %q already exists", ErrConflict, kr.ID)
		}
		const q = `INSERT INTO annual_krs (` + krColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, q, kr.ID, kr.Title, string(kr.Type), string(kr.Direction), string(kr.Aggregation),
			kr.StartValue, kr.TargetValue, kr.CurrentValue, kr.Unit, kr.PlanYear)
		if err != nil {
			return fmt.Errorf("insert key result: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.KeyResult{}, err
	}
	s.refreshCount(ctx)
	return kr, nil
}

// GetKeyResult implements Store.
func (s *SQLiteStore) GetKeyResult(ctx context.Context, id string) (model.KeyResult, error) {
	defer observeQuery(time.Now())
	return getKeyResult(ctx, s.db, id)
}

// ListKeyResults implements Store.
func (s *SQLiteStore) ListKeyResults(ctx context.Context, limit int) ([]model.KeyResult, error) {
	defer observeQuery(time.Now())

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `SELECT `+krColumns+` FROM annual_krs ORDER BY rowid LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list key results: %w", err)
	}
	defer rows.Close()

	out := []model.KeyResult{}
	for rows.Next() {
		kr, err := scanKeyResult(rows)
		if err != nil {
			return nil, fmt.Errorf("scan key result: %w", err)
		}
		out = append(out, kr)
	}
	return out, rows.Err()
}

// DeleteKeyResult implements Store. Targets and check-ins go with it.
func (s *SQLiteStore) DeleteKeyResult(ctx context.Context, id string) error {
	defer observeUpdate(time.Now())

	res, err := s.db.ExecContext(ctx, `DELETE FROM annual_krs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete key result: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("key result", id)
	}
	s.refreshCount(ctx)
	return nil
}

// UpsertQuarterTarget implements Store.
func (s *SQLiteStore) UpsertQuarterTarget(ctx context.Context, qt model.QuarterTarget) (model.QuarterTarget, error) {
	defer observeUpdate(time.Now())

	qt, err := prepareQuarterTarget(qt)
	if err != nil {
		return model.QuarterTarget{}, err
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := getKeyResult(ctx, tx, qt.KeyResultID); err != nil {
			return err
		}
		var existing string
		err := tx.QueryRowContext(ctx,
			`SELECT id FROM quarter_targets WHERE annual_kr_id = ? AND plan_year = ? AND quarter = ?`,
			qt.KeyResultID, qt.PlanYear, qt.Quarter).Scan(&existing)
		switch {
		case err == nil:
			qt.ID = existing
			_, err = tx.ExecContext(ctx, `UPDATE quarter_targets SET target_value = ?, notes = ? WHERE id = ?`,
				qt.TargetValue, qt.Notes, qt.ID)
		case errors.Is(err, sql.ErrNoRows):
			if qt.ID == "" {
				qt.ID = s.opts.newID()
			}
			_, err = tx.ExecContext(ctx, `INSERT INTO quarter_targets (`+qtColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
				qt.ID, qt.KeyResultID, qt.Quarter, qt.PlanYear, qt.TargetValue, qt.Notes)
		}
		if err != nil {
			return fmt.Errorf("upsert quarter target: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.QuarterTarget{}, err
	}
	return qt, nil
}

// ListQuarterTargets implements Store.
func (s *SQLiteStore) ListQuarterTargets(ctx context.Context, keyResultID string) ([]model.QuarterTarget, error) {
	defer observeQuery(time.Now())

	if _, err := getKeyResult(ctx, s.db, keyResultID); err != nil {
		return nil, err
	}
	return listQuarterTargets(ctx, s.db, keyResultID)
}

// DeleteQuarterTarget implements Store.
func (s *SQLiteStore) DeleteQuarterTarget(ctx context.Context, keyResultID string, planYear, quarter int) error {
	defer observeUpdate(time.Now())

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM quarter_targets WHERE annual_kr_id = ? AND plan_year = ? AND quarter = ?`,
		keyResultID, planYear, quarter)
	if err != nil {
		return fmt.Errorf("delete quarter target: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return notFound("quarter target", fmt.Sprintf("%s/%d/Q%d", keyResultID, planYear, quarter))
	}
	return nil
}

// AppendCheckIn implements Store.
func (s *SQLiteStore) AppendCheckIn(ctx context.Context, ci model.CheckIn) (model.CheckIn, model.KeyResult, error) {
	defer observeUpdate(time.Now())

	ci, ts, err := prepareCheckIn(ci, s.opts.newID)
	if err != nil {
		return model.CheckIn{}, model.KeyResult{}, err
	}

	var kr model.KeyResult
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if kr, err = getKeyResult(ctx, tx, ci.KeyResultID); err != nil {
			return err
		}

		var taken int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM check_ins WHERE id = ?`, ci.ID).Scan(&taken); err != nil {
			return fmt.Errorf("check check-in: %w", err)
		}
		if taken > 0 {
			return fmt.Errorf("%w: check-in %q already exists", ErrConflict, ci.ID)
		}

		var latestNs sql.NullInt64
		if err := tx.QueryRowContext(ctx,
			`SELECT MAX(recorded_at_ns) FROM check_ins WHERE annual_kr_id = ?`, ci.KeyResultID).Scan(&latestNs); err != nil {
			return fmt.Errorf("latest check-in: %w", err)
		}

		const q = `INSERT INTO check_ins (` + ciColumns + `, recorded_at_ns) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
		if _, err := tx.ExecContext(ctx, q, ci.ID, ci.KeyResultID, ci.Value, ci.RecordedAt,
			ci.QuarterTargetID, ci.Note, ci.EvidenceURL, ts.UnixNano()); err != nil {
			return fmt.Errorf("insert check-in: %w", err)
		}

		kr = applyCheckIn(kr, ci, ts, time.Unix(0, latestNs.Int64), latestNs.Valid)
		if _, err := tx.ExecContext(ctx, `UPDATE annual_krs SET current_value = ? WHERE id = ?`, kr.CurrentValue, kr.ID); err != nil {
			return fmt.Errorf("update current value: %w", err)
		}
		return nil
	})
	if err != nil {
		return model.CheckIn{}, model.KeyResult{}, err
	}
	return ci, kr, nil
}

// ListCheckIns implements Store.
func (s *SQLiteStore) ListCheckIns(ctx context.Context, keyResultID string) ([]model.CheckIn, error) {
	defer observeQuery(time.Now())

	if _, err := getKeyResult(ctx, s.db, keyResultID); err != nil {
		return nil, err
	}
	return listCheckIns(ctx, s.db, keyResultID)
}

// Snapshot implements Store. The three reads share one transaction.
func (s *SQLiteStore) Snapshot(ctx context.Context, keyResultID string) (model.Snapshot, error) {
	defer observeQuery(time.Now())

	var snap model.Snapshot
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		if snap.KeyResult, err = getKeyResult(ctx, tx, keyResultID); err != nil {
			return err
		}
		if snap.QuarterTargets, err = listQuarterTargets(ctx, tx, keyResultID); err != nil {
			return err
		}
		snap.CheckIns, err = listCheckIns(ctx, tx, keyResultID)
		return err
	})
	return snap, err
}

// Count implements Store.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM annual_krs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count key results: %w", err)
	}
	return n, nil
}

func (s *SQLiteStore) refreshCount(ctx context.Context) {
	if n, err := s.Count(ctx); err == nil {
		metrics.UpdateKeyResults(n)
	}
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
