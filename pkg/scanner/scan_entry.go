package scanner

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/coldvault/coldvault/internal/logger"
	"github.com/coldvault/coldvault/pkg/cache"
)

// scanEntry re-stats a single FSEntry and reconciles the cache with reality,
// translating models.py's FSEntry.scan() into cache operations. Each call
// runs inside its own BEGIN IMMEDIATE transaction so a scan that reads
// stale state and then writes never fails after doing the read-side work.
func (s *Scanner) scanEntry(ctx context.Context, e *cache.FSEntry) error {
	return s.cache.WithImmediateTx(ctx, func(tx *cache.ImmediateTx) error {
		return s.scanEntryTx(ctx, tx, e)
	})
}

func (s *Scanner) scanEntryTx(ctx context.Context, tx *cache.ImmediateTx, e *cache.FSEntry) error {
	path := string(e.Path)
	info, err := os.Lstat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) || isNotADirectory(err) {
			s.logger.Info("entry no longer exists, deleting", logger.Path(printablePath(e.Path)))
			_, execErr := tx.ExecContext(ctx, "DELETE FROM fsentry WHERE id = ?", e.ID)
			return execErr
		}
		return err
	}

	wasDir := e.StMode != nil && os.FileMode(*e.StMode).IsDir()
	if wasDir && !info.IsDir() {
		// Type changed out from under us; the new stat_info write below
		// invalidates this entry, but any stale children must go too.
		s.logger.Info("no longer a directory, deleting children", logger.Path(printablePath(e.Path)))
		if _, err := tx.ExecContext(ctx, "DELETE FROM fsentry WHERE parent_id = ?", e.ID); err != nil {
			return err
		}
	}

	mode := int64(info.Mode())
	mtimeNs := info.ModTime().UnixNano()
	size := info.Size()

	unchanged := !e.New && e.StMode != nil && *e.StMode == mode &&
		e.StMtimeNs != nil && *e.StMtimeNs == mtimeNs &&
		e.StSize != nil && *e.StSize == size
	if unchanged {
		return nil
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE fsentry SET st_mode = ?, st_mtime_ns = ?, st_size = ?, obj_id = NULL, new = 0 WHERE id = ?",
		mode, mtimeNs, size, e.ID); err != nil {
		return err
	}

	if info.IsDir() {
		if err := s.reconcileDirectory(ctx, tx, e, path); err != nil {
			return err
		}
	}

	return invalidateAncestorsTx(ctx, tx, e.ID)
}

// reconcileDirectory lists path and diffs it against the cached children,
// creating FSEntry rows for new names and deleting rows for names that
// disappeared.
func (s *Scanner) reconcileDirectory(ctx context.Context, tx *cache.ImmediateTx, e *cache.FSEntry, path string) error {
	children, err := queryChildren(ctx, tx, e.ID)
	if err != nil {
		return err
	}
	byName := make(map[string]childEntry, len(children))
	for _, c := range children {
		byName[filepath.Base(string(c.path))] = c
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		if os.IsPermission(err) {
			s.logger.Warn("permission denied listing directory", logger.Path(printablePath(e.Path)))
			dirEntries = nil
		} else {
			return err
		}
	}

	seen := make(map[string]bool, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		seen[name] = true
		if _, ok := byName[name]; ok {
			continue
		}

		newPath := filepath.Join(path, name)
		res, err := tx.ExecContext(ctx, "INSERT INTO fsentry (path, parent_id, new) VALUES (?, ?, 1)", []byte(newPath), e.ID)
		if err != nil {
			if isUniqueViolation(err) {
				// A root was added that is an ancestor of an already-tracked
				// root; re-parent the existing entry into this tree instead
				// of erroring, merging the two.
				if reparentErr := reparentExisting(ctx, tx, []byte(newPath), e.ID); reparentErr != nil {
					return reparentErr
				}
				continue
			}
			return err
		}
		_ = res
		s.logger.Info("new path discovered", logger.Path(printablePath([]byte(newPath))))
	}

	for name, c := range byName {
		if !seen[name] {
			s.logger.Info("deleting vanished entry", logger.Path(printablePath(c.path)))
			if _, err := tx.ExecContext(ctx, "DELETE FROM fsentry WHERE id = ?", c.id); err != nil {
				return err
			}
		}
	}
	return nil
}

type childEntry struct {
	id   int64
	path []byte
}

func queryChildren(ctx context.Context, tx *cache.ImmediateTx, parentID int64) ([]childEntry, error) {
	rows, err := tx.QueryContext(ctx, "SELECT id, path FROM fsentry WHERE parent_id = ?", parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []childEntry
	for rows.Next() {
		var c childEntry
		if err := rows.Scan(&c.id, &c.path); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func reparentExisting(ctx context.Context, tx *cache.ImmediateTx, path []byte, newParentID int64) error {
	var id int64
	var parentID *int64
	err := tx.QueryRowContext(ctx, "SELECT id, parent_id FROM fsentry WHERE path = ?", path).Scan(&id, &parentID)
	if err != nil {
		return err
	}
	if parentID != nil {
		return errNotARoot(path)
	}
	_, err = tx.ExecContext(ctx, "UPDATE fsentry SET parent_id = ? WHERE id = ?", newParentID, id)
	return err
}

func invalidateAncestorsTx(ctx context.Context, tx *cache.ImmediateTx, id int64) error {
	const query = `
WITH RECURSIVE ancestors(id) AS (
  SELECT id FROM fsentry WHERE id = ?
  UNION ALL
  SELECT fsentry.parent_id FROM fsentry
  INNER JOIN ancestors ON fsentry.id = ancestors.id
  WHERE fsentry.parent_id IS NOT NULL
)
UPDATE fsentry SET obj_id = NULL WHERE id IN (SELECT id FROM ancestors)`
	_, err := tx.ExecContext(ctx, query, id)
	return err
}

// analyze runs ANALYZE on the cache so the query planner has fresh
// statistics after a scan touches a large fraction of the table.
func (s *Scanner) analyze(ctx context.Context) error {
	return s.cache.Analyze(ctx)
}

// printablePath mirrors models.py's printablepath property: filesystem
// paths may contain bytes that aren't valid text, so error-replace rather
// than crash when logging them.
func printablePath(path []byte) string {
	return stringReplaceInvalid(path)
}
