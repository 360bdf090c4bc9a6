package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "edgesched/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

const scheduleColumns = `id, name, type, version, group_ids, scheduled_time, status, error, created_by, created_at, updated_at`

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

func openSQLite(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	log.Debug("sqlite store opened", logx.String("path", path))
	return st, nil
}

func (s *sqliteStore) migrate(ctx context.Context) error {
	b, err := migrationsFS.ReadFile("migrations.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

func (s *sqliteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *sqliteStore) CreateSchedule(ctx context.Context, sc *Schedule) error {
	groups, err := json.Marshal(nonNilIDs(sc.GroupIDs))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO schedules(name, type, version, group_ids, scheduled_time, status, error, created_by, created_at, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`,
		sc.Name, sc.Type, sc.Version, string(groups), sc.ScheduledTime, sc.Status,
		nullStr(sc.Error), nullStr(sc.CreatedBy), formatTime(sc.CreatedAt), formatTime(sc.UpdatedAt),
	)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	sc.ID = id
	return nil
}

func (s *sqliteStore) UpdateSchedule(ctx context.Context, sc Schedule) error {
	groups, err := json.Marshal(nonNilIDs(sc.GroupIDs))
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE schedules SET name=?, type=?, version=?, group_ids=?, scheduled_time=?, status=?, error=?, created_by=?, created_at=?, updated_at=?
		 WHERE id=?`,
		sc.Name, sc.Type, sc.Version, string(groups), sc.ScheduledTime, sc.Status,
		nullStr(sc.Error), nullStr(sc.CreatedBy), formatTime(sc.CreatedAt), formatTime(sc.UpdatedAt), sc.ID,
	)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *sqliteStore) GetSchedule(ctx context.Context, id int64) (Schedule, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+scheduleColumns+` FROM schedules WHERE id = ?`, id)
	sc, err := scanSchedule(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Schedule{}, ErrNotFound
	}
	return sc, err
}

func (s *sqliteStore) ListSchedules(ctx context.Context) ([]Schedule, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+scheduleColumns+` FROM schedules ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sc)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteSchedule(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *sqliteStore) PruneSchedules(ctx context.Context, statuses []string, before time.Time) (int, error) {
	if len(statuses) == 0 {
		return 0, nil
	}
	// updated_at is stored as UTC RFC3339Nano, which does not sort
	// lexically (trailing zeros are trimmed), so compare in Go.
	all, err := s.ListSchedules(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, sc := range all {
		if !containsStr(statuses, sc.Status) || !sc.UpdatedAt.Before(before) {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `DELETE FROM schedules WHERE id = ?`, sc.ID); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (s *sqliteStore) AppendAudit(ctx context.Context, e AuditEntry) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit(at, actor, action, schedule_id, ok, err, took_ms) VALUES(?,?,?,?,?,?,?)`,
		formatTime(e.At), nullStr(e.Actor), e.Action, e.ScheduleID, e.OK, nullStr(e.Error), e.TookMS,
	)
	return err
}

func (s *sqliteStore) ListAudit(ctx context.Context, scheduleID int64) ([]AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT at, actor, action, schedule_id, ok, err, took_ms FROM audit WHERE schedule_id = ? ORDER BY id`, scheduleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e          AuditEntry
			at         string
			actor, msg sql.NullString
		)
		if err := rows.Scan(&at, &actor, &e.Action, &e.ScheduleID, &e.OK, &msg, &e.TookMS); err != nil {
			return nil, err
		}
		e.At, _ = time.Parse(time.RFC3339Nano, at)
		e.Actor = actor.String
		e.Error = msg.String
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSchedule(r scanner) (Schedule, error) {
	var (
		sc                   Schedule
		groups               string
		errMsg, createdBy    sql.NullString
		createdAt, updatedAt string
	)
	if err := r.Scan(&sc.ID, &sc.Name, &sc.Type, &sc.Version, &groups, &sc.ScheduledTime, &sc.Status,
		&errMsg, &createdBy, &createdAt, &updatedAt); err != nil {
		return Schedule{}, err
	}
	if err := json.Unmarshal([]byte(groups), &sc.GroupIDs); err != nil {
		return Schedule{}, fmt.Errorf("schedule %d: group_ids: %w", sc.ID, err)
	}
	sc.Error = errMsg.String
	sc.CreatedBy = createdBy.String
	sc.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	sc.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return sc, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}
