package cache

import (
	"context"
	"database/sql"
	"errors"
)

// Object mirrors spec.md §3's Object entity. Payload is only populated for
// inode and tree types; blob payloads are never cached locally.
type Object struct {
	ObjID            []byte
	Type             string
	Payload          []byte
	UploadedSize     *int64
	FileSize         *int64
	LastModifiedTime *int64
}

// PutObject records that an Object has been durably uploaded. Content
// addressing makes this idempotent: pushing the same objid twice is a
// no-op, since a matching row already proves the same bytes were already
// accepted.
func (c *Cache) PutObject(ctx context.Context, obj *Object) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO objects (objid, type, payload, uploaded_size, file_size, last_modified_time)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(objid) DO NOTHING`,
		obj.ObjID, obj.Type, obj.Payload,
		nullableInt64(obj.UploadedSize), nullableInt64(obj.FileSize), nullableInt64(obj.LastModifiedTime))
	return mapErr(err, "put object")
}

// PutObjectTx is PutObject run against an already-open ImmediateTx, so the
// insert commits or rolls back together with whatever else the caller does
// inside the same transaction.
func (c *Cache) PutObjectTx(ctx context.Context, tx *ImmediateTx, obj *Object) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO objects (objid, type, payload, uploaded_size, file_size, last_modified_time)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(objid) DO NOTHING`,
		obj.ObjID, obj.Type, obj.Payload,
		nullableInt64(obj.UploadedSize), nullableInt64(obj.FileSize), nullableInt64(obj.LastModifiedTime))
	return mapErr(err, "put object")
}

// GetObject fetches a cached Object by its address.
func (c *Cache) GetObject(ctx context.Context, objID []byte) (*Object, error) {
	row := c.db.QueryRowContext(ctx,
		"SELECT objid, type, payload, uploaded_size, file_size, last_modified_time FROM objects WHERE objid = ?",
		objID)

	var (
		o                                        Object
		uploadedSize, fileSize, lastModifiedTime nullInt64Col
	)
	if err := row.Scan(&o.ObjID, &o.Type, &o.Payload, &uploadedSize, &fileSize, &lastModifiedTime); err != nil {
		return nil, mapErr(err, "get object")
	}
	o.UploadedSize = uploadedSize.ptr()
	o.FileSize = fileSize.ptr()
	o.LastModifiedTime = lastModifiedTime.ptr()
	return &o, nil
}

// ObjectExists reports whether objID is already known to the cache, used by
// the backup pipeline to deduplicate before re-uploading identical content.
func (c *Cache) ObjectExists(ctx context.Context, objID []byte) (bool, error) {
	var exists int
	err := c.db.QueryRowContext(ctx, "SELECT 1 FROM objects WHERE objid = ?", objID).Scan(&exists)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, mapErr(err, "check object exists")
	}
	return true, nil
}

// DeleteObject removes an Object row. The schema's ON DELETE CASCADE on
// object_relations takes care of any edges naming it as parent or child.
// Used only by the garbage collector.
func (c *Cache) DeleteObject(ctx context.Context, objID []byte) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM objects WHERE objid = ?", objID)
	return mapErr(err, "delete object")
}

// CountObjects returns the total number of cached Objects, used to size the
// garbage collector's bloom filter.
func (c *Cache) CountObjects(ctx context.Context) (int64, error) {
	var n int64
	err := c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM objects").Scan(&n)
	return n, mapErr(err, "count objects")
}

// AllObjectIDs streams every known object id through fn. It uses a single
// forward-only cursor so the full object set never has to live in memory at
// once; fn may be called with rows that were concurrently modified by
// another statement on this connection without error, matching spec.md
// §4.3's tolerance for streaming-cursor skew.
func (c *Cache) AllObjectIDs(ctx context.Context, fn func(objID []byte) error) error {
	rows, err := c.db.QueryContext(ctx, "SELECT objid FROM objects")
	if err != nil {
		return mapErr(err, "stream object ids")
	}
	defer rows.Close()

	for rows.Next() {
		var id []byte
		if err := rows.Scan(&id); err != nil {
			return mapErr(err, "scan object id")
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return mapErr(rows.Err(), "stream object ids")
}

// ReachableObjectIDs streams every object id reachable from the snapshot
// root set by walking object_relations, via the recursive CTE spec.md
// §4.3/§4.8 describes. This is the garbage collector's first pass, building
// the bloom filter of live objects.
func (c *Cache) ReachableObjectIDs(ctx context.Context, fn func(objID []byte) error) error {
	const query = `
WITH RECURSIVE reachable(id) AS (
  SELECT root_id FROM snapshots
  UNION ALL
  SELECT child_id FROM object_relations
  INNER JOIN reachable ON reachable.id = object_relations.parent_id
)
SELECT id FROM reachable`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return mapErr(err, "stream reachable object ids")
	}
	defer rows.Close()

	for rows.Next() {
		var id []byte
		if err := rows.Scan(&id); err != nil {
			return mapErr(err, "scan reachable object id")
		}
		if err := fn(id); err != nil {
			return err
		}
	}
	return mapErr(rows.Err(), "stream reachable object ids")
}
