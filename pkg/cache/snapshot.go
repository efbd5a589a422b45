package cache

import "context"

// Snapshot mirrors spec.md §3: a (path, root object, timestamp) triple.
// The set of snapshots forms the garbage collector's root set.
type Snapshot struct {
	ID        int64
	Path      []byte
	RootID    []byte
	Timestamp int64
}

// CreateSnapshot records a completed backup run of path, rooted at rootID,
// taken at timestamp (unix seconds).
func (c *Cache) CreateSnapshot(ctx context.Context, path, rootID []byte, timestamp int64) (*Snapshot, error) {
	res, err := c.db.ExecContext(ctx,
		"INSERT INTO snapshots (path, root_id, timestamp) VALUES (?, ?, ?)",
		path, rootID, timestamp)
	if err != nil {
		return nil, mapErr(err, "create snapshot")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, mapErr(err, "create snapshot")
	}
	return &Snapshot{ID: id, Path: path, RootID: rootID, Timestamp: timestamp}, nil
}

// ListSnapshots returns every snapshot, most recent first.
func (c *Cache) ListSnapshots(ctx context.Context) ([]*Snapshot, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT id, path, root_id, timestamp FROM snapshots ORDER BY timestamp DESC")
	if err != nil {
		return nil, mapErr(err, "list snapshots")
	}
	defer rows.Close()

	var out []*Snapshot
	for rows.Next() {
		var s Snapshot
		if err := rows.Scan(&s.ID, &s.Path, &s.RootID, &s.Timestamp); err != nil {
			return nil, mapErr(err, "scan snapshot")
		}
		out = append(out, &s)
	}
	return out, mapErr(rows.Err(), "iterate snapshots")
}

// GetSnapshot fetches a single snapshot by id.
func (c *Cache) GetSnapshot(ctx context.Context, id int64) (*Snapshot, error) {
	var s Snapshot
	err := c.db.QueryRowContext(ctx,
		"SELECT id, path, root_id, timestamp FROM snapshots WHERE id = ?", id,
	).Scan(&s.ID, &s.Path, &s.RootID, &s.Timestamp)
	if err != nil {
		return nil, mapErr(err, "get snapshot")
	}
	return &s, nil
}

// DeleteSnapshot removes a snapshot, making its unique descendants
// candidates for the next garbage collection run.
func (c *Cache) DeleteSnapshot(ctx context.Context, id int64) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM snapshots WHERE id = ?", id)
	return mapErr(err, "delete snapshot")
}
