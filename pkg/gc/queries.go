package gc

import (
	"context"
	"fmt"

	"github.com/coldvault/coldvault/pkg/cache"
)

// These duplicate cache.CountObjects/AllObjectIDs/ReachableObjectIDs against
// an already-open ImmediateTx rather than the Cache's own connection pool.
// The cache pins its pool to a single connection, so a query issued through
// Cache's normal methods while this package's transaction holds that
// connection would block forever waiting for a connection that can never
// free up. Both sweep passes must run against the same reserved-lock
// transaction anyway (spec.md §4.8's locking requirement), so this
// duplication is also the only way to satisfy that requirement.

func txCountObjects(ctx context.Context, tx *cache.ImmediateTx) (int64, error) {
	var n int64
	err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM objects").Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("gc: count objects: %w", err)
	}
	return n, nil
}

func txReachableObjectIDs(ctx context.Context, tx *cache.ImmediateTx, fn func(objID []byte) error) error {
	const query = `
WITH RECURSIVE reachable(id) AS (
  SELECT root_id FROM snapshots
  UNION ALL
  SELECT child_id FROM object_relations
  INNER JOIN reachable ON reachable.id = object_relations.parent_id
)
SELECT id FROM reachable`

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("gc: walk reachable objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id []byte
		if err := rows.Scan(&id); err != nil {
			return fmt.Errorf("gc: scan reachable object id: %w", err)
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return rows.Err()
}

type objectRow struct {
	ObjID        []byte
	UploadedSize *int64
}

func txAllObjects(ctx context.Context, tx *cache.ImmediateTx, fn func(objectRow) error) error {
	rows, err := tx.QueryContext(ctx, "SELECT objid, uploaded_size FROM objects")
	if err != nil {
		return fmt.Errorf("gc: stream objects: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var row objectRow
		var uploadedSize *int64
		if err := rows.Scan(&row.ObjID, &uploadedSize); err != nil {
			return fmt.Errorf("gc: scan object row: %w", err)
		}
		row.UploadedSize = uploadedSize
		if err := fn(row); err != nil {
			return err
		}
	}
	return rows.Err()
}

func txDeleteObject(ctx context.Context, tx *cache.ImmediateTx, objID []byte) error {
	_, err := tx.ExecContext(ctx, "DELETE FROM objects WHERE objid = ?", objID)
	if err != nil {
		return fmt.Errorf("gc: delete object row: %w", err)
	}
	return nil
}
