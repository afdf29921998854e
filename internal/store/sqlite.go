package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	logx "mailerbot/pkg/logx"
)

//go:embed migrations.sql
var migrationsFS embed.FS

type Config struct {
	Path        string
	BusyTimeout time.Duration // 0 means default
}

type sqliteStore struct {
	db  *sql.DB
	log logx.Logger
}

// Open initializes the SQLite store, creating the schema when needed.
func Open(cfg Config, log logx.Logger) (Store, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")
	// Required for schedule_slots' ON DELETE CASCADE.
	_, _ = db.Exec("PRAGMA foreign_keys = ON")

	st := &sqliteStore{db: db, log: log}
	if err := st.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
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

// ---- principals ----

func (s *sqliteStore) SavePrincipal(ctx context.Context, p Principal) error {
	if p.RegisteredAt.IsZero() {
		p.RegisteredAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO principals(platform_id, username, first_name, last_name, registered_at, is_active)
		 VALUES(?,?,?,?,?,?)
		 ON CONFLICT(platform_id) DO NOTHING`,
		p.PlatformID, nullStr(p.Username), nullStr(p.FirstName), nullStr(p.LastName),
		p.RegisteredAt.Format(time.RFC3339), boolInt(p.Active),
	)
	return err
}

func (s *sqliteStore) Principal(ctx context.Context, platformID int64) (*Principal, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, platform_id, username, first_name, last_name, registered_at, is_active
		 FROM principals WHERE platform_id = ?`, platformID)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *sqliteStore) ListPrincipals(ctx context.Context) ([]Principal, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, platform_id, username, first_name, last_name, registered_at, is_active
		 FROM principals ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Principal
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (s *sqliteStore) SetActive(ctx context.Context, platformID int64, active bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE principals SET is_active = ? WHERE platform_id = ?`, boolInt(active), platformID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DeletePrincipal(ctx context.Context, id int64) (*Principal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT id, platform_id, username, first_name, last_name, registered_at, is_active
		 FROM principals WHERE id = ?`, id)
	p, err := scanPrincipal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM principals WHERE id = ?`, id); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPrincipal(r rowScanner) (*Principal, error) {
	var (
		p          Principal
		username   sql.NullString
		first      sql.NullString
		last       sql.NullString
		registered string
		active     int
	)
	if err := r.Scan(&p.ID, &p.PlatformID, &username, &first, &last, &registered, &active); err != nil {
		return nil, err
	}
	p.Username = username.String
	p.FirstName = first.String
	p.LastName = last.String
	p.Active = active != 0
	if t, err := time.Parse(time.RFC3339, registered); err == nil {
		p.RegisteredAt = t
	}
	return &p, nil
}

// ---- campaigns ----

func (s *sqliteStore) CreateCampaign(ctx context.Context, c *Campaign, slots []Slot) (int64, error) {
	if c == nil {
		return 0, errors.New("store: nil campaign")
	}
	if len(slots) == 0 {
		return 0, errors.New("store: campaign needs at least one slot")
	}
	for _, sl := range slots {
		if !sl.Valid() {
			return 0, fmt.Errorf("store: invalid slot %02d:%02d", sl.Hour, sl.Minute)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var mediaPath, mediaKind any
	if c.Media != nil {
		mediaPath = c.Media.Path
		mediaKind = string(c.Media.Kind)
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO campaigns(owner_id, name, group_names, group_ids, message, media_path, media_kind, interval_minutes, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?)`,
		c.OwnerID, c.Name, strings.Join(c.GroupNames, ", "), joinIDs(c.GroupIDs),
		c.Message, mediaPath, mediaKind, c.IntervalMinutes, c.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	for _, sl := range slots {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO schedule_slots(campaign_id, hour, minute) VALUES(?,?,?)`,
			id, sl.Hour, sl.Minute); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return id, nil
}

const campaignCols = `id, owner_id, name, group_names, group_ids, message, media_path, media_kind, interval_minutes, created_at`

func (s *sqliteStore) ListCampaigns(ctx context.Context, ownerID int64) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE owner_id = ? ORDER BY id`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func (s *sqliteStore) Campaign(ctx context.Context, id, ownerID int64) (*Campaign, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+campaignCols+` FROM campaigns WHERE id = ? AND owner_id = ?`, id, ownerID)
	c, err := scanCampaign(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *sqliteStore) CampaignSlots(ctx context.Context, campaignID int64) ([]Slot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT hour, minute FROM schedule_slots WHERE campaign_id = ? ORDER BY hour, minute`, campaignID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Slot
	for rows.Next() {
		var sl Slot
		if err := rows.Scan(&sl.Hour, &sl.Minute); err != nil {
			return nil, err
		}
		out = append(out, sl)
	}
	return out, rows.Err()
}

func (s *sqliteStore) DeleteCampaign(ctx context.Context, id, ownerID int64) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM campaigns WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) DueCampaigns(ctx context.Context, hour, minute int) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT c.id, c.owner_id, c.name, c.group_names, c.group_ids, c.message, c.media_path, c.media_kind, c.interval_minutes, c.created_at
		 FROM campaigns c
		 JOIN schedule_slots t ON t.campaign_id = c.id
		 WHERE t.hour = ? AND t.minute = ?
		 ORDER BY c.id`, hour, minute)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectCampaigns(rows)
}

func collectCampaigns(rows *sql.Rows) ([]Campaign, error) {
	var out []Campaign
	for rows.Next() {
		c, err := scanCampaign(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

func scanCampaign(r rowScanner) (*Campaign, error) {
	var (
		c         Campaign
		names     string
		ids       string
		mediaPath sql.NullString
		mediaKind sql.NullString
		created   string
	)
	if err := r.Scan(&c.ID, &c.OwnerID, &c.Name, &names, &ids, &c.Message, &mediaPath, &mediaKind, &c.IntervalMinutes, &created); err != nil {
		return nil, err
	}
	if t, err := time.Parse(time.RFC3339, created); err == nil {
		c.CreatedAt = t
	}
	c.GroupNames = splitNames(names)
	c.GroupIDs = splitIDs(ids)
	if mediaPath.Valid && mediaPath.String != "" {
		c.Media = &MediaRef{Path: mediaPath.String, Kind: MediaKind(mediaKind.String)}
	}
	return &c, nil
}

// ---- helpers ----

func joinIDs(ids []int64) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) []int64 {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]int64, 0, len(parts))
	for _, p := range parts {
		if id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}

func splitNames(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ", ")
}

func nullStr(v string) any {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	return v
}

func boolInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
