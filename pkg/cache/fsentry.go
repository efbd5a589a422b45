package cache

import (
	"context"
	"database/sql"
)

// FSEntry mirrors spec.md §3's FSEntry entity: one row per filesystem path
// known to a backup root. ObjID is nil exactly when the entry is dirty and
// needs backing up.
type FSEntry struct {
	ID        int64
	Path      []byte
	ParentID  *int64
	ObjID     []byte
	New       bool
	StMode    *int64
	StMtimeNs *int64
	StSize    *int64
}

func scanFSEntry(row interface{ Scan(...interface{}) error }) (*FSEntry, error) {
	var (
		e        FSEntry
		parentID sql.NullInt64
		objID    []byte
		isNew    int64
		stMode   sql.NullInt64
		stMtime  sql.NullInt64
		stSize   sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Path, &parentID, &objID, &isNew, &stMode, &stMtime, &stSize); err != nil {
		return nil, err
	}
	if parentID.Valid {
		v := parentID.Int64
		e.ParentID = &v
	}
	if len(objID) > 0 {
		e.ObjID = objID
	}
	e.New = isNew != 0
	if stMode.Valid {
		v := stMode.Int64
		e.StMode = &v
	}
	if stMtime.Valid {
		v := stMtime.Int64
		e.StMtimeNs = &v
	}
	if stSize.Valid {
		v := stSize.Int64
		e.StSize = &v
	}
	return &e, nil
}

const fsEntryColumns = "id, path, parent_id, obj_id, new, st_mode, st_mtime_ns, st_size"

// CreateFSEntry inserts a new, dirty FSEntry for path under parentID (nil
// for a backup root). The new entry has New=true, forcing the scanner to
// stat it on the next pass.
func (c *Cache) CreateFSEntry(ctx context.Context, path []byte, parentID *int64) (*FSEntry, error) {
	res, err := c.db.ExecContext(ctx,
		"INSERT INTO fsentry (path, parent_id, new) VALUES (?, ?, 1)",
		path, nullableInt64(parentID))
	if err != nil {
		return nil, mapErr(err, "create fsentry")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, mapErr(err, "create fsentry")
	}
	return c.GetFSEntry(ctx, id)
}

// GetFSEntry fetches a single FSEntry by id.
func (c *Cache) GetFSEntry(ctx context.Context, id int64) (*FSEntry, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+fsEntryColumns+" FROM fsentry WHERE id = ?", id)
	e, err := scanFSEntry(row)
	if err != nil {
		return nil, mapErr(err, "get fsentry")
	}
	return e, nil
}

// GetFSEntryByPath fetches a single FSEntry by its unique path.
func (c *Cache) GetFSEntryByPath(ctx context.Context, path []byte) (*FSEntry, error) {
	row := c.db.QueryRowContext(ctx, "SELECT "+fsEntryColumns+" FROM fsentry WHERE path = ?", path)
	e, err := scanFSEntry(row)
	if err != nil {
		return nil, mapErr(err, "get fsentry by path")
	}
	return e, nil
}

// Roots returns every FSEntry with no parent: the registered backup roots.
func (c *Cache) Roots(ctx context.Context) ([]*FSEntry, error) {
	return c.queryFSEntries(ctx, "SELECT "+fsEntryColumns+" FROM fsentry WHERE parent_id IS NULL")
}

// AllFSEntries returns every FSEntry in the cache, used by the scanner's
// first pass to re-stat everything already known.
func (c *Cache) AllFSEntries(ctx context.Context) ([]*FSEntry, error) {
	return c.queryFSEntries(ctx, "SELECT "+fsEntryColumns+" FROM fsentry")
}

// NewFSEntries returns every FSEntry still flagged new, used by the
// scanner's fixpoint pass that drains newly discovered directory entries.
func (c *Cache) NewFSEntries(ctx context.Context) ([]*FSEntry, error) {
	return c.queryFSEntries(ctx, "SELECT "+fsEntryColumns+" FROM fsentry WHERE new = 1")
}

// ChildrenOf returns the direct children of the FSEntry with the given id.
func (c *Cache) ChildrenOf(ctx context.Context, parentID int64) ([]*FSEntry, error) {
	return c.queryFSEntries(ctx, "SELECT "+fsEntryColumns+" FROM fsentry WHERE parent_id = ?", parentID)
}

// DirtyFSEntries returns every FSEntry still needing backup (obj_id IS
// NULL), the set the backup pipeline feeds through its pump.
func (c *Cache) DirtyFSEntries(ctx context.Context) ([]*FSEntry, error) {
	return c.queryFSEntries(ctx, "SELECT "+fsEntryColumns+" FROM fsentry WHERE obj_id IS NULL")
}

// CountDirtyFSEntries returns the size of the to-backup set, used to report
// backup progress totals.
func (c *Cache) CountDirtyFSEntries(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM fsentry WHERE obj_id IS NULL").Scan(&n)
	return n, mapErr(err, "count dirty fsentries")
}

// ReadyFSEntries returns the subset of the to-backup set whose children (if
// any) are all already backed up: the leaves of the dirty subgraph, safe to
// back up right now without waiting on any in-flight dependency (spec.md
// §4.6). The backup pipeline re-queries this after every batch completes.
func (c *Cache) ReadyFSEntries(ctx context.Context) ([]*FSEntry, error) {
	const query = `
SELECT ` + fsEntryColumns + ` FROM fsentry
WHERE obj_id IS NULL
AND id NOT IN (
  SELECT parent_id FROM fsentry WHERE obj_id IS NULL AND parent_id IS NOT NULL
)`
	return c.queryFSEntries(ctx, query)
}

func (c *Cache) queryFSEntries(ctx context.Context, query string, args ...interface{}) ([]*FSEntry, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapErr(err, "query fsentries")
	}
	defer rows.Close()

	var out []*FSEntry
	for rows.Next() {
		e, err := scanFSEntry(rows)
		if err != nil {
			return nil, mapErr(err, "scan fsentry")
		}
		out = append(out, e)
	}
	return out, mapErr(rows.Err(), "iterate fsentries")
}

// UpdateStat records a fresh stat() observation for entry id, clears its
// backing object (marking it dirty), and clears the New flag. Callers must
// already hold whatever transaction the surrounding scan step needs; this
// issues a single statement.
func (c *Cache) UpdateStat(ctx context.Context, id int64, mode, mtimeNs, size int64) error {
	_, err := c.db.ExecContext(ctx,
		"UPDATE fsentry SET st_mode = ?, st_mtime_ns = ?, st_size = ?, obj_id = NULL, new = 0 WHERE id = ?",
		mode, mtimeNs, size, id)
	return mapErr(err, "update fsentry stat")
}

// SetObject records the Object an FSEntry now backs up to, clearing its
// dirty state. Called by the backup pipeline once an object has been
// durably pushed.
func (c *Cache) SetObject(ctx context.Context, id int64, objID []byte) error {
	_, err := c.db.ExecContext(ctx, "UPDATE fsentry SET obj_id = ? WHERE id = ?", objID, id)
	return mapErr(err, "set fsentry object")
}

// Reparent moves an existing FSEntry under a new parent, used by the
// scanner's nested-root merge rule: scanning from a newly added root that
// turns out to be an ancestor of an already-tracked root re-parents the old
// root instead of erroring on the path uniqueness constraint.
func (c *Cache) Reparent(ctx context.Context, id int64, newParentID int64) error {
	_, err := c.db.ExecContext(ctx, "UPDATE fsentry SET parent_id = ? WHERE id = ?", newParentID, id)
	return mapErr(err, "reparent fsentry")
}

// DeleteFSEntry removes an FSEntry. The schema's ON DELETE CASCADE on
// fsentry.parent_id lets SQLite cascade to descendants entirely within the
// engine, so a deep subtree never has to be loaded into Go memory to be
// removed.
func (c *Cache) DeleteFSEntry(ctx context.Context, id int64) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM fsentry WHERE id = ?", id)
	return mapErr(err, "delete fsentry")
}

// InvalidateAncestors clears obj_id on the FSEntry with the given id and on
// every ancestor up to its root, in one statement: any content change below
// a directory means every tree object above it is now stale and must be
// rebuilt on the next backup.
func (c *Cache) InvalidateAncestors(ctx context.Context, id int64) error {
	const query = `
WITH RECURSIVE ancestors(id) AS (
  SELECT id FROM fsentry WHERE id = ?
  UNION ALL
  SELECT fsentry.parent_id FROM fsentry
  INNER JOIN ancestors ON fsentry.id = ancestors.id
  WHERE fsentry.parent_id IS NOT NULL
)
UPDATE fsentry SET obj_id = NULL WHERE id IN (SELECT id FROM ancestors)`
	_, err := c.db.ExecContext(ctx, query, id)
	return mapErr(err, "invalidate ancestors")
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
