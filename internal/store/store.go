package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tunez/dupes/internal/library"
	"github.com/tunez/dupes/internal/logging"
)

// Store keeps the library index and detected duplicate groups in SQLite.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the index at dbPath.
// If dbPath is empty, uses the default location.
func NewStore(dbPath string) (*Store, error) {
	if dbPath == "" {
		var err error
		dbPath, err = DefaultPath()
		if err != nil {
			return nil, fmt.Errorf("resolve index db path: %w", err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open index db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// DefaultPath returns <StateDir>/library.sqlite.
func DefaultPath() (string, error) {
	dir, err := logging.StateDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "library.sqlite"), nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS tracks (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			artist TEXT NOT NULL DEFAULT '',
			album TEXT NOT NULL DEFAULT '',
			duration REAL NOT NULL DEFAULT 0,
			bitrate INTEGER NOT NULL DEFAULT 0,
			play_count INTEGER NOT NULL DEFAULT 0,
			date_added INTEGER NOT NULL DEFAULT 0,
			fingerprint TEXT NOT NULL DEFAULT '',
			file_path TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_tracks_position ON tracks (position);`,
		`CREATE TABLE IF NOT EXISTS duplicate_groups (
			id TEXT PRIMARY KEY,
			position INTEGER NOT NULL,
			similarity REAL NOT NULL,
			duplicate_type TEXT NOT NULL,
			resolved INTEGER NOT NULL DEFAULT 0,
			preferred_track_id TEXT NOT NULL DEFAULT '',
			detected_at INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS group_tracks (
			group_id TEXT NOT NULL,
			track_id TEXT NOT NULL,
			position INTEGER NOT NULL,
			PRIMARY KEY (group_id, track_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_group_tracks_track ON group_tracks (track_id);`,
	}
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate index schema: %w", err)
		}
	}
	return nil
}

// UpsertTracks adds new tracks at the end of the stored order and refreshes
// the tag data of known ones. Position, play count and date added of an
// existing track are left alone.
func (s *Store) UpsertTracks(ctx context.Context, tracks []library.Track) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO tracks
		(id, position, title, artist, album, duration, bitrate, play_count, date_added, fingerprint, file_path)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM tracks), ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			artist = excluded.artist,
			album = excluded.album,
			duration = excluded.duration,
			bitrate = excluded.bitrate,
			fingerprint = excluded.fingerprint,
			file_path = excluded.file_path`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, t := range tracks {
		if t.ID == "" {
			return fmt.Errorf("upsert track %q: %w: empty id", t.Path, library.ErrInvalidInput)
		}
		if _, err := stmt.ExecContext(ctx, t.ID, t.Title, t.Artist, t.Album, t.Duration, t.Bitrate,
			t.PlayCount, toUnix(t.DateAdded), t.Fingerprint, t.Path); err != nil {
			return fmt.Errorf("upsert track %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Tracks returns every indexed track in stored order.
func (s *Store) Tracks(ctx context.Context) ([]library.Track, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, title, artist, album, duration, bitrate,
		play_count, date_added, fingerprint, file_path FROM tracks ORDER BY position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load tracks: %w", err)
	}
	defer rows.Close()

	tracks := []library.Track{}
	for rows.Next() {
		var (
			t     library.Track
			added int64
		)
		if err := rows.Scan(&t.ID, &t.Title, &t.Artist, &t.Album, &t.Duration, &t.Bitrate,
			&t.PlayCount, &added, &t.Fingerprint, &t.Path); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		t.DateAdded = fromUnix(added)
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tracks: %w", err)
	}
	return tracks, nil
}

// RemoveTracks deletes tracks and their group memberships. Groups left
// with fewer than two members are dropped.
func (s *Store) RemoveTracks(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, id := range ids {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tracks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete track %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM group_tracks WHERE track_id = ?`, id); err != nil {
			return fmt.Errorf("delete memberships of %s: %w", id, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM duplicate_groups WHERE id IN (
		SELECT g.id FROM duplicate_groups g
		LEFT JOIN group_tracks gt ON gt.group_id = g.id
		GROUP BY g.id HAVING COUNT(gt.track_id) < 2)`); err != nil {
		return fmt.Errorf("prune groups: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_tracks
		WHERE group_id NOT IN (SELECT id FROM duplicate_groups)`); err != nil {
		return fmt.Errorf("prune memberships: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// SaveGroups replaces every unresolved group with groups, keeping their ids
// and order. Resolved groups are preserved.
func (s *Store) SaveGroups(ctx context.Context, groups []library.DuplicateGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM group_tracks
		WHERE group_id IN (SELECT id FROM duplicate_groups WHERE resolved = 0)`); err != nil {
		return fmt.Errorf("clear group members: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM duplicate_groups WHERE resolved = 0`); err != nil {
		return fmt.Errorf("clear groups: %w", err)
	}

	var next int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position), -1) + 1 FROM duplicate_groups`).Scan(&next); err != nil {
		return fmt.Errorf("next group position: %w", err)
	}

	groupStmt, err := tx.PrepareContext(ctx, `INSERT INTO duplicate_groups
		(id, position, similarity, duplicate_type, resolved, preferred_track_id, detected_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare group insert: %w", err)
	}
	defer groupStmt.Close()

	memberStmt, err := tx.PrepareContext(ctx, `INSERT INTO group_tracks (group_id, track_id, position) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare member insert: %w", err)
	}
	defer memberStmt.Close()

	now := time.Now().UnixNano()
	for i, g := range groups {
		if g.ID == "" {
			return fmt.Errorf("save group %d: %w: empty id", i, library.ErrInvalidInput)
		}
		if _, err := groupStmt.ExecContext(ctx, g.ID, next+i, g.SimilarityScore, string(g.DuplicateType),
			boolToInt(g.Resolved), g.PreferredTrackID, now); err != nil {
			return fmt.Errorf("insert group %s: %w", g.ID, err)
		}
		for pos, trackID := range g.TrackIDs {
			if _, err := memberStmt.ExecContext(ctx, g.ID, trackID, pos); err != nil {
				return fmt.Errorf("insert member %s of %s: %w", trackID, g.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Groups returns stored groups in saved order. Resolved groups are skipped
// unless includeResolved is set.
func (s *Store) Groups(ctx context.Context, includeResolved bool) ([]library.DuplicateGroup, error) {
	query := `SELECT id, similarity, duplicate_type, resolved, preferred_track_id
		FROM duplicate_groups`
	if !includeResolved {
		query += ` WHERE resolved = 0`
	}
	query += ` ORDER BY position ASC`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load groups: %w", err)
	}
	defer rows.Close()

	groups := []library.DuplicateGroup{}
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate groups: %w", err)
	}

	members, err := s.members(ctx)
	if err != nil {
		return nil, err
	}
	for i := range groups {
		groups[i].TrackIDs = members[groups[i].ID]
	}
	return groups, nil
}

// Group returns a single group by id, or an error wrapping
// library.ErrNotFound.
func (s *Store) Group(ctx context.Context, id string) (library.DuplicateGroup, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, similarity, duplicate_type, resolved, preferred_track_id
		FROM duplicate_groups WHERE id = ?`, id)
	g, err := scanGroup(row)
	if errors.Is(err, sql.ErrNoRows) {
		return library.DuplicateGroup{}, fmt.Errorf("group %s: %w", id, library.ErrNotFound)
	}
	if err != nil {
		return library.DuplicateGroup{}, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT track_id FROM group_tracks WHERE group_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return library.DuplicateGroup{}, fmt.Errorf("load members of %s: %w", id, err)
	}
	defer rows.Close()
	for rows.Next() {
		var trackID string
		if err := rows.Scan(&trackID); err != nil {
			return library.DuplicateGroup{}, fmt.Errorf("scan member: %w", err)
		}
		g.TrackIDs = append(g.TrackIDs, trackID)
	}
	if err := rows.Err(); err != nil {
		return library.DuplicateGroup{}, fmt.Errorf("iterate members: %w", err)
	}
	return g, nil
}

// ResolveGroup marks a group resolved with trackID as the keeper.
func (s *Store) ResolveGroup(ctx context.Context, groupID, trackID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM duplicate_groups WHERE id = ?`, groupID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("group %s: %w", groupID, library.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("look up group %s: %w", groupID, err)
	}

	err = tx.QueryRowContext(ctx, `SELECT 1 FROM group_tracks WHERE group_id = ? AND track_id = ?`,
		groupID, trackID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("track %s in group %s: %w", trackID, groupID, library.ErrNotMember)
	}
	if err != nil {
		return fmt.Errorf("look up member %s: %w", trackID, err)
	}

	if _, err := tx.ExecContext(ctx, `UPDATE duplicate_groups SET resolved = 1, preferred_track_id = ? WHERE id = ?`,
		trackID, groupID); err != nil {
		return fmt.Errorf("resolve group %s: %w", groupID, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) members(ctx context.Context) (map[string][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id, track_id FROM group_tracks ORDER BY group_id, position ASC`)
	if err != nil {
		return nil, fmt.Errorf("load group members: %w", err)
	}
	defer rows.Close()

	members := make(map[string][]string)
	for rows.Next() {
		var groupID, trackID string
		if err := rows.Scan(&groupID, &trackID); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members[groupID] = append(members[groupID], trackID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return members, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGroup(row rowScanner) (library.DuplicateGroup, error) {
	var (
		g        library.DuplicateGroup
		typ      string
		resolved int
	)
	if err := row.Scan(&g.ID, &g.SimilarityScore, &typ, &resolved, &g.PreferredTrackID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return g, err
		}
		return g, fmt.Errorf("scan group: %w", err)
	}
	g.DuplicateType = library.DuplicateType(typ)
	g.Resolved = resolved == 1
	return g, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Zero times are stored as 0 so they round-trip.
func toUnix(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnix(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}
