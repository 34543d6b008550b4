package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sandeepkv93/multitimer/internal/model"
)

type SQLiteRepository struct {
	db    *sql.DB
	retry retryConfig
}

func NewSQLiteRepository(db *sql.DB) (*SQLiteRepository, error) {
	if db == nil {
		return nil, errors.New("storage: nil db")
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return &SQLiteRepository{db: db, retry: defaultRetryConfig}, nil
}

// OpenSQLite opens the database at path and brings its schema up to date.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := migrate(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	repo, err := NewSQLiteRepository(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

func (r *SQLiteRepository) LoadWorkspace(ctx context.Context) (model.Workspace, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, project_id, project_name FROM timer_groups ORDER BY position`)
	if err != nil {
		return model.Workspace{}, err
	}
	groups := make([]model.Group, 0)
	index := make(map[string]int)
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.ProjectID, &g.ProjectName); err != nil {
			rows.Close()
			return model.Workspace{}, err
		}
		index[g.ID] = len(groups)
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return model.Workspace{}, err
	}
	rows.Close()

	timerRows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, task_id, task_name, notes, backend_timer_id, active_date, synced, baseline_seconds
		FROM timers ORDER BY group_id, position`)
	if err != nil {
		return model.Workspace{}, err
	}
	defer timerRows.Close()
	for timerRows.Next() {
		groupID, timer, scanErr := scanTimer(timerRows)
		if scanErr != nil {
			return model.Workspace{}, scanErr
		}
		gi, ok := index[groupID]
		if !ok {
			continue
		}
		groups[gi].Timers = append(groups[gi].Timers, timer)
	}
	if err := timerRows.Err(); err != nil {
		return model.Workspace{}, err
	}

	ws := model.Workspace{Groups: groups}
	compact, err := r.GetPreference(ctx, prefCompact)
	switch {
	case err == nil:
		ws.Compact, _ = strconv.ParseBool(compact)
	case !errors.Is(err, ErrNotFound):
		return model.Workspace{}, err
	}
	return ws, nil
}

// SaveWorkspace replaces every stored group and timer with ws.
func (r *SQLiteRepository) SaveWorkspace(ctx context.Context, ws model.Workspace) error {
	return retryOp(ctx, r.retry, func() error {
		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM timers`); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM timer_groups`); err != nil {
			return err
		}
		for gpos, g := range ws.Groups {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO timer_groups (id, position, project_id, project_name) VALUES (?, ?, ?, ?)`,
				g.ID, gpos, g.ProjectID, g.ProjectName,
			); err != nil {
				return fmt.Errorf("insert group %s: %w", g.ID, err)
			}
			for tpos, t := range g.Timers {
				backendID, activeDate, synced := backingColumns(t.Backing)
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO timers (id, group_id, position, task_id, task_name, notes, backend_timer_id, active_date, synced, baseline_seconds)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
					t.ID, g.ID, tpos, t.TaskID, t.TaskName, t.Notes, backendID, activeDate, boolInt(synced), t.Baseline,
				); err != nil {
					return fmt.Errorf("insert timer %s: %w", t.ID, err)
				}
			}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO preferences (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			prefCompact, strconv.FormatBool(ws.Compact),
		); err != nil {
			return err
		}
		return tx.Commit()
	})
}

func (r *SQLiteRepository) ListIntervals(ctx context.Context, filter IntervalListFilter) ([]model.Interval, error) {
	query := `SELECT id, timer_id, group_id, start_time, end_time, backend_timer_id, backend_interval_id FROM intervals WHERE 1 = 1`
	args := make([]any, 0, 6)
	if filter.TimerID != "" {
		query += ` AND timer_id = ?`
		args = append(args, filter.TimerID)
	}
	if filter.Range != nil {
		query += ` AND start_time >= ? AND start_time < ?`
		args = append(args, filter.Range.From, filter.Range.To)
	}
	if filter.StartedSince > 0 {
		query += ` AND start_time >= ?`
		args = append(args, filter.StartedSince)
	}
	query += ` ORDER BY start_time, id`
	query += applyPagination(&args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]model.Interval, 0)
	for rows.Next() {
		iv, scanErr := scanInterval(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, iv)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) GetInterval(ctx context.Context, id string) (model.Interval, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, timer_id, group_id, start_time, end_time, backend_timer_id, backend_interval_id
		FROM intervals WHERE id = ?`, id)
	iv, err := scanInterval(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Interval{}, ErrNotFound
		}
		return model.Interval{}, err
	}
	return iv, nil
}

func (r *SQLiteRepository) UpsertInterval(ctx context.Context, iv model.Interval) error {
	return retryOp(ctx, r.retry, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO intervals (id, timer_id, group_id, start_time, end_time, backend_timer_id, backend_interval_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				timer_id = excluded.timer_id,
				group_id = excluded.group_id,
				start_time = excluded.start_time,
				end_time = excluded.end_time,
				backend_timer_id = excluded.backend_timer_id,
				backend_interval_id = excluded.backend_interval_id`,
			iv.ID, iv.TimerID, iv.GroupID, iv.StartTime, nullInt64(iv.EndTime), nullInt64(iv.BackendTimerID), nullInt64(iv.BackendIntervalID),
		)
		return err
	})
}

func (r *SQLiteRepository) DeleteInterval(ctx context.Context, id string) error {
	return retryOp(ctx, r.retry, func() error {
		res, err := r.db.ExecContext(ctx, `DELETE FROM intervals WHERE id = ?`, id)
		if err != nil {
			return err
		}
		return checkRowsAffected(res)
	})
}

func (r *SQLiteRepository) LoadRunningSession(ctx context.Context) (model.RunningSession, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT timer_id, group_id, event_id, start_time FROM running_session WHERE singleton = 1`)
	var s model.RunningSession
	if err := row.Scan(&s.TimerID, &s.GroupID, &s.EventID, &s.StartTime); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.RunningSession{}, ErrNotFound
		}
		return model.RunningSession{}, err
	}
	return s, nil
}

func (r *SQLiteRepository) SaveRunningSession(ctx context.Context, s model.RunningSession) error {
	return retryOp(ctx, r.retry, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO running_session (singleton, timer_id, group_id, event_id, start_time)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(singleton) DO UPDATE SET
				timer_id = excluded.timer_id,
				group_id = excluded.group_id,
				event_id = excluded.event_id,
				start_time = excluded.start_time`,
			s.TimerID, s.GroupID, s.EventID, s.StartTime,
		)
		return err
	})
}

func (r *SQLiteRepository) ClearRunningSession(ctx context.Context) error {
	return retryOp(ctx, r.retry, func() error {
		_, err := r.db.ExecContext(ctx, `DELETE FROM running_session`)
		return err
	})
}

func (r *SQLiteRepository) GetPreference(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return value, nil
}

func (r *SQLiteRepository) SetPreference(ctx context.Context, key, value string) error {
	return retryOp(ctx, r.retry, func() error {
		_, err := r.db.ExecContext(ctx, `
			INSERT INTO preferences (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
			key, value,
		)
		return err
	})
}

func backingColumns(b model.Backing) (backendID, activeDate any, synced bool) {
	c, ok := b.(model.Confirmed)
	if !ok {
		return nil, nil, false
	}
	return c.BackendID, c.ActiveDate, c.Synced
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func fromNullInt64(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	return model.Int64(v.Int64)
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func applyPagination(args *[]any, limit, offset int) string {
	sql := ""
	if limit > 0 {
		sql += " LIMIT ?"
		*args = append(*args, limit)
	}
	if offset > 0 {
		if limit <= 0 {
			sql += " LIMIT -1"
		}
		sql += " OFFSET ?"
		*args = append(*args, offset)
	}
	return sql
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTimer(s scanner) (string, model.Timer, error) {
	var out model.Timer
	var groupID string
	var backendID sql.NullInt64
	var activeDate sql.NullString
	var synced int
	if err := s.Scan(&out.ID, &groupID, &out.TaskID, &out.TaskName, &out.Notes, &backendID, &activeDate, &synced, &out.Baseline); err != nil {
		return "", model.Timer{}, err
	}
	out.Backing = model.Draft{}
	if backendID.Valid {
		out.Backing = model.Confirmed{
			BackendID:  backendID.Int64,
			ActiveDate: activeDate.String,
			Synced:     synced == 1,
		}
	}
	return groupID, out, nil
}

func scanInterval(s scanner) (model.Interval, error) {
	var out model.Interval
	var end, backendTimer, backendInterval sql.NullInt64
	if err := s.Scan(&out.ID, &out.TimerID, &out.GroupID, &out.StartTime, &end, &backendTimer, &backendInterval); err != nil {
		return model.Interval{}, err
	}
	out.EndTime = fromNullInt64(end)
	out.BackendTimerID = fromNullInt64(backendTimer)
	out.BackendIntervalID = fromNullInt64(backendInterval)
	return out, nil
}

func checkRowsAffected(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
