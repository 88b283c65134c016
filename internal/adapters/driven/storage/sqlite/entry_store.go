package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/weave-nn/weaver/internal/core/domain"
	"github.com/weave-nn/weaver/internal/core/ports/driven"
)

// entryStore implements driven.EntryStore.
type entryStore struct {
	store *Store
}

var _ driven.EntryStore = (*entryStore)(nil)

const entryColumns = `path, kind, status, content_hash, last_seen_at, last_modified_at, deleted, deleted_at, sequence`

// Get retrieves an entry by path, tombstones included.
func (s *entryStore) Get(ctx context.Context, path string) (*domain.VaultEntry, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+entryColumns+` FROM entries WHERE path = ?`, path)
	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, storageErr("scanning entry", err)
	}

	entries := []domain.VaultEntry{*entry}
	if err := s.loadRelations(ctx, s.store.db, entries); err != nil {
		return nil, err
	}
	return &entries[0], nil
}

// Put writes the entry row and replaces its tags and links in one transaction.
func (s *entryStore) Put(ctx context.Context, entry *domain.VaultEntry) error {
	if entry == nil || entry.Path == "" {
		return domain.ErrInvalidInput
	}
	return s.store.withTx(ctx, "saving entry", func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO entries (`+entryColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(path) DO UPDATE SET
				kind = excluded.kind,
				status = excluded.status,
				content_hash = excluded.content_hash,
				last_seen_at = excluded.last_seen_at,
				last_modified_at = excluded.last_modified_at,
				deleted = excluded.deleted,
				deleted_at = excluded.deleted_at,
				sequence = excluded.sequence
		`, entry.Path, entry.Kind, entry.Status, entry.ContentHash,
			formatTime(entry.LastSeenAt), formatTime(entry.LastModifiedAt),
			boolToInt(entry.Deleted), formatNullableTime(entry.DeletedAt), entry.Sequence)
		if err != nil {
			return storageErr("saving entry", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM entry_tags WHERE path = ?", entry.Path); err != nil {
			return storageErr("clearing tags", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM entry_links WHERE path = ?", entry.Path); err != nil {
			return storageErr("clearing links", err)
		}

		for _, tag := range domain.NormaliseTags(entry.Tags) {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO entry_tags (path, tag) VALUES (?, ?)", entry.Path, tag); err != nil {
				return storageErr("saving tag", err)
			}
		}
		for i, target := range entry.OutboundLinks {
			if _, err := tx.ExecContext(ctx,
				"INSERT INTO entry_links (path, position, target) VALUES (?, ?, ?)", entry.Path, i, target); err != nil {
				return storageErr("saving link", err)
			}
		}
		return nil
	})
}

// Touch updates only the last-seen time and sequence of an entry.
func (s *entryStore) Touch(ctx context.Context, path string, seenAt time.Time, sequence int64) error {
	res, err := s.store.db.ExecContext(ctx,
		"UPDATE entries SET last_seen_at = ?, sequence = ? WHERE path = ?",
		formatTime(seenAt), sequence, path)
	if err != nil {
		return storageErr("touching entry", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Query returns one page of matching entries ordered by path.
func (s *entryStore) Query(ctx context.Context, filter domain.EntryFilter, page domain.Page) (*domain.EntryPage, error) {
	where, args := entryWhere(filter)
	if page.After != "" {
		where = append(where, "e.path > ?")
		args = append(args, page.After)
	}
	limit := page.EffectiveLimit()
	args = append(args, limit+1)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+prefixed("e.", entryColumns)+`
		FROM entries e
		`+whereClause(where)+`
		ORDER BY e.path
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, storageErr("querying entries", err)
	}
	defer rows.Close()

	entries := make([]domain.VaultEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, storageErr("scanning entry", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating entries", err)
	}
	rows.Close()

	result := &domain.EntryPage{}
	if len(entries) > limit {
		entries = entries[:limit]
		result.NextCursor = entries[limit-1].Path
	}
	if err := s.loadRelations(ctx, s.store.db, entries); err != nil {
		return nil, err
	}
	result.Entries = entries
	return result, nil
}

// Count aggregates entries matching filter.
func (s *entryStore) Count(ctx context.Context, filter domain.EntryFilter) (*domain.EntryCounts, error) {
	where, args := entryWhere(filter)
	from := "FROM entries e " + whereClause(where)

	counts := &domain.EntryCounts{
		ByKind:   make(map[string]int),
		ByStatus: make(map[string]int),
		ByTag:    make(map[string]int),
	}

	err := s.store.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(e.deleted), 0) `+from, args...).Scan(&counts.Total, &counts.Deleted)
	if err != nil {
		return nil, storageErr("counting entries", err)
	}
	counts.Live = counts.Total - counts.Deleted

	groups := []struct {
		query string
		into  map[string]int
	}{
		{`SELECT e.kind, COUNT(*) ` + from + andClause(where, "e.kind != ''") + ` GROUP BY e.kind`, counts.ByKind},
		{`SELECT e.status, COUNT(*) ` + from + andClause(where, "e.status != ''") + ` GROUP BY e.status`, counts.ByStatus},
		{`SELECT t.tag, COUNT(*) FROM entries e JOIN entry_tags t ON t.path = e.path ` + whereClause(where) + ` GROUP BY t.tag`, counts.ByTag},
	}
	for _, g := range groups {
		if err := groupCounts(ctx, s.store.db, g.query, args, g.into); err != nil {
			return nil, err
		}
	}
	return counts, nil
}

// Snapshot returns the digest of every stored entry.
func (s *entryStore) Snapshot(ctx context.Context) ([]domain.EntryDigest, error) {
	rows, err := s.store.db.QueryContext(ctx, "SELECT path, content_hash, deleted FROM entries ORDER BY path")
	if err != nil {
		return nil, storageErr("querying snapshot", err)
	}
	defer rows.Close()

	out := make([]domain.EntryDigest, 0)
	for rows.Next() {
		var d domain.EntryDigest
		var deleted int
		if err := rows.Scan(&d.Path, &d.ContentHash, &deleted); err != nil {
			return nil, storageErr("scanning snapshot", err)
		}
		d.Deleted = deleted == 1
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr("iterating snapshot", err)
	}
	return out, nil
}

// PurgeTombstones removes tombstones deleted before the cutoff.
// Tags and links go with them through the cascade.
func (s *entryStore) PurgeTombstones(ctx context.Context, before time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM entries WHERE deleted = 1 AND deleted_at < ?", formatTime(before))
	if err != nil {
		return 0, storageErr("purging tombstones", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, storageErr("purging tombstones", err)
	}
	return int(n), nil
}

// MaxSequence returns the highest stored sequence, or 0.
func (s *entryStore) MaxSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.store.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(sequence), 0) FROM entries").Scan(&seq); err != nil {
		return 0, storageErr("reading max sequence", err)
	}
	return seq, nil
}

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// loadRelations fills tags and links for entries in two batched queries.
func (s *entryStore) loadRelations(ctx context.Context, q querier, entries []domain.VaultEntry) error {
	if len(entries) == 0 {
		return nil
	}
	index := make(map[string]int, len(entries))
	args := make([]any, len(entries))
	for i := range entries {
		entries[i].Tags = []string{}
		entries[i].OutboundLinks = []string{}
		index[entries[i].Path] = i
		args[i] = entries[i].Path
	}
	in := placeholders(len(entries))

	tagRows, err := q.QueryContext(ctx,
		`SELECT path, tag FROM entry_tags WHERE path IN (`+in+`) ORDER BY path, tag`, args...)
	if err != nil {
		return storageErr("querying tags", err)
	}
	defer tagRows.Close()
	for tagRows.Next() {
		var path, tag string
		if err := tagRows.Scan(&path, &tag); err != nil {
			return storageErr("scanning tag", err)
		}
		e := &entries[index[path]]
		e.Tags = append(e.Tags, tag)
	}
	if err := tagRows.Err(); err != nil {
		return storageErr("iterating tags", err)
	}

	linkRows, err := q.QueryContext(ctx,
		`SELECT path, target FROM entry_links WHERE path IN (`+in+`) ORDER BY path, position`, args...)
	if err != nil {
		return storageErr("querying links", err)
	}
	defer linkRows.Close()
	for linkRows.Next() {
		var path, target string
		if err := linkRows.Scan(&path, &target); err != nil {
			return storageErr("scanning link", err)
		}
		e := &entries[index[path]]
		e.OutboundLinks = append(e.OutboundLinks, target)
	}
	if err := linkRows.Err(); err != nil {
		return storageErr("iterating links", err)
	}
	return nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.VaultEntry, error) {
	var e domain.VaultEntry
	var lastSeen, lastModified string
	var deletedAt sql.NullString
	var deleted int
	if err := row.Scan(&e.Path, &e.Kind, &e.Status, &e.ContentHash,
		&lastSeen, &lastModified, &deleted, &deletedAt, &e.Sequence); err != nil {
		return nil, err
	}
	e.LastSeenAt = parseTime(lastSeen)
	e.LastModifiedAt = parseTime(lastModified)
	e.Deleted = deleted == 1
	e.DeletedAt = parseNullableTime(deletedAt)
	return &e, nil
}

// entryWhere translates a filter into SQL conditions over alias e.
func entryWhere(f domain.EntryFilter) ([]string, []any) {
	var where []string
	var args []any
	if !f.IncludeDeleted {
		where = append(where, "e.deleted = 0")
	}
	if f.PathPrefix != "" {
		if upper, ok := prefixUpperBound(f.PathPrefix); ok {
			where = append(where, "e.path >= ? AND e.path < ?")
			args = append(args, f.PathPrefix, upper)
		} else {
			where = append(where, "e.path >= ?")
			args = append(args, f.PathPrefix)
		}
	}
	if f.Kind != "" {
		where = append(where, "e.kind = ?")
		args = append(args, f.Kind)
	}
	if f.Status != "" {
		where = append(where, "e.status = ?")
		args = append(args, f.Status)
	}
	if f.Tag != "" {
		where = append(where, "EXISTS (SELECT 1 FROM entry_tags ft WHERE ft.path = e.path AND ft.tag = ?)")
		args = append(args, f.Tag)
	}
	if f.LinkTarget != "" {
		where = append(where, "EXISTS (SELECT 1 FROM entry_links fl WHERE fl.path = e.path AND fl.target = ?)")
		args = append(args, f.LinkTarget)
	}
	return where, args
}

// prefixUpperBound returns the smallest string greater than every string
// starting with prefix, so the path index can serve prefix scans. It
// reports false when prefix is all 0xff bytes and has no upper bound.
func prefixUpperBound(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1]), true
		}
	}
	return "", false
}

func whereClause(where []string) string {
	if len(where) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(where, " AND ")
}

// andClause extends an existing WHERE clause with one more condition.
func andClause(where []string, cond string) string {
	if len(where) == 0 {
		return "WHERE " + cond
	}
	return " AND " + cond
}

func prefixed(alias, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = alias + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

func groupCounts(ctx context.Context, q querier, query string, args []any, into map[string]int) error {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return storageErr("grouping entries", err)
	}
	defer rows.Close()
	for rows.Next() {
		var key string
		var n int
		if err := rows.Scan(&key, &n); err != nil {
			return storageErr("scanning group", err)
		}
		into[key] = n
	}
	if err := rows.Err(); err != nil {
		return storageErr("iterating groups", err)
	}
	return nil
}
