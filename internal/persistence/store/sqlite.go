package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db   *sql.DB
	once sync.Once
}

var _ Store = (*SQLiteStore)(nil)

// OpenSQLite opens (creating if needed) the database at path and applies the
// embedded migrations.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
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
	// One writer connection; the Writer worker serializes game-loop writes anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite pragmas: %w", err)
	}
	if err := ApplyMigrations(ctx, db, migrationFS, "migrations"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func initPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	var err error
	s.once.Do(func() { err = s.db.Close() })
	return err
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const profileColumns = `identity, name, clicks, coins, shards, collected, today_clicks, last_reset_date`

func scanProfile(row *sql.Row) (Profile, error) {
	var p Profile
	err := row.Scan(&p.Identity, &p.Name, &p.Clicks, &p.Coins, &p.Shards, &p.Collected, &p.TodayClicks, &p.LastResetDate)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	return p, err
}

func getProfile(ctx context.Context, q queryer, identity string) (Profile, error) {
	return scanProfile(q.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE identity = ?`, identity))
}

func (s *SQLiteStore) GetProfile(ctx context.Context, identity string) (Profile, error) {
	return getProfile(ctx, s.db, identity)
}

func (s *SQLiteStore) GetOrCreateProfile(ctx context.Context, identity, day string) (Profile, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Profile{}, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO profiles(identity, last_reset_date, updated_at) VALUES(?, ?, ?)`,
		identity, day, now,
	); err != nil {
		return Profile{}, fmt.Errorf("create profile: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET today_clicks = 0, last_reset_date = ?, updated_at = ? WHERE identity = ? AND last_reset_date <> ?`,
		day, now, identity, day,
	); err != nil {
		return Profile{}, fmt.Errorf("normalize profile day: %w", err)
	}
	p, err := getProfile(ctx, tx, identity)
	if err != nil {
		return Profile{}, err
	}
	return p, tx.Commit()
}

func (s *SQLiteStore) IncrementProfile(ctx context.Context, identity string, d Delta, day string) error {
	if d.IsZero() {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles(identity, clicks, coins, shards, collected, today_clicks, last_reset_date, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			clicks = profiles.clicks + excluded.clicks,
			coins = profiles.coins + excluded.coins,
			shards = profiles.shards + excluded.shards,
			collected = profiles.collected + excluded.collected,
			today_clicks = CASE
				WHEN profiles.last_reset_date = excluded.last_reset_date THEN profiles.today_clicks + excluded.today_clicks
				ELSE excluded.today_clicks
			END,
			last_reset_date = excluded.last_reset_date,
			updated_at = excluded.updated_at`,
		identity, d.Clicks, d.Coins, d.Shards, d.Collected, d.TodayClicks, day, time.Now().UTC().UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) FlushProfile(ctx context.Context, p Profile) error {
	return flushProfile(ctx, s.db, p)
}

func flushProfile(ctx context.Context, ex execer, p Profile) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO profiles(identity, name, clicks, coins, shards, collected, today_clicks, last_reset_date, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET
			name = CASE WHEN excluded.name <> '' THEN excluded.name ELSE profiles.name END,
			clicks = MAX(profiles.clicks, excluded.clicks),
			coins = MAX(profiles.coins, excluded.coins),
			shards = MAX(profiles.shards, excluded.shards),
			collected = MAX(profiles.collected, excluded.collected),
			today_clicks = CASE
				WHEN profiles.last_reset_date = excluded.last_reset_date THEN MAX(profiles.today_clicks, excluded.today_clicks)
				WHEN excluded.last_reset_date > profiles.last_reset_date THEN excluded.today_clicks
				ELSE profiles.today_clicks
			END,
			last_reset_date = MAX(profiles.last_reset_date, excluded.last_reset_date),
			updated_at = excluded.updated_at`,
		p.Identity, p.Name, p.Clicks, p.Coins, p.Shards, p.Collected, p.TodayClicks, p.LastResetDate, time.Now().UTC().UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) SetDisplayName(ctx context.Context, identity, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles(identity, name, updated_at) VALUES(?, ?, ?)
		ON CONFLICT(identity) DO UPDATE SET name = excluded.name, updated_at = excluded.updated_at`,
		identity, name, time.Now().UTC().UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) TopProfiles(ctx context.Context, n int) ([]Profile, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE clicks > 0 ORDER BY clicks DESC, identity ASC LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(&p.Identity, &p.Name, &p.Clicks, &p.Coins, &p.Shards, &p.Collected, &p.TodayClicks, &p.LastResetDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) ResetDailyQuotas(ctx context.Context, day string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET today_clicks = 0, last_reset_date = ?, updated_at = ? WHERE last_reset_date <> ?`,
		day, time.Now().UTC().UnixMilli(), day,
	)
	return err
}

func (s *SQLiteStore) ResetScores(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE profiles SET clicks = 0, coins = 0, shards = 0, collected = 0, updated_at = ?`,
		time.Now().UTC().UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) LoadGlobal(ctx context.Context, defaults GlobalState) (GlobalState, error) {
	var g GlobalState
	err := s.db.QueryRowContext(ctx, `
		SELECT total, shard_pool, stage_color, last_reset_date, shard_week, schema_version
		FROM global_state WHERE id = 1`,
	).Scan(&g.Total, &g.ShardPool, &g.StageColor, &g.LastResetDate, &g.ShardWeek, &g.SchemaVersion)
	if errors.Is(err, sql.ErrNoRows) {
		if defaults.SchemaVersion == 0 {
			defaults.SchemaVersion = SchemaVersion
		}
		if err := saveGlobal(ctx, s.db, defaults); err != nil {
			return GlobalState{}, fmt.Errorf("seed global state: %w", err)
		}
		return defaults, nil
	}
	if err != nil {
		return GlobalState{}, err
	}
	return g, nil
}

func (s *SQLiteStore) SaveGlobal(ctx context.Context, g GlobalState) error {
	return saveGlobal(ctx, s.db, g)
}

func saveGlobal(ctx context.Context, ex execer, g GlobalState) error {
	if g.Total < 0 {
		g.Total = 0
	}
	if g.ShardPool < 0 {
		g.ShardPool = 0
	}
	if g.SchemaVersion == 0 {
		g.SchemaVersion = SchemaVersion
	}
	_, err := ex.ExecContext(ctx, `
		INSERT INTO global_state(id, total, shard_pool, stage_color, last_reset_date, shard_week, schema_version, updated_at)
		VALUES(1, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			total = excluded.total,
			shard_pool = excluded.shard_pool,
			stage_color = excluded.stage_color,
			last_reset_date = excluded.last_reset_date,
			shard_week = excluded.shard_week,
			schema_version = excluded.schema_version,
			updated_at = excluded.updated_at`,
		g.Total, g.ShardPool, g.StageColor, g.LastResetDate, g.ShardWeek, g.SchemaVersion, time.Now().UTC().UnixMilli(),
	)
	return err
}

func (s *SQLiteStore) ImportLegacy(ctx context.Context, key string, profiles []Profile, g *GlobalState) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("empty import key")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM legacy_imports WHERE key = ?`, key).Scan(&one)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, err
	}

	for _, p := range profiles {
		if p.Identity == "" {
			continue
		}
		if err := flushProfile(ctx, tx, p); err != nil {
			return false, fmt.Errorf("import profile %s: %w", p.Identity, err)
		}
	}
	if g != nil {
		if err := saveGlobal(ctx, tx, *g); err != nil {
			return false, fmt.Errorf("import global: %w", err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO legacy_imports(key, profiles, imported_at) VALUES(?, ?, ?)`,
		key, len(profiles), time.Now().UTC().UnixMilli(),
	); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}
