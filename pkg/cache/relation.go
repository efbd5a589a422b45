package cache

import "context"

// ObjectRelation is a directed parent->child edge in the object dependency
// graph (spec.md §3). Name is set for tree-type parents and nil for
// inode-type parents.
type ObjectRelation struct {
	ParentID []byte
	ChildID  []byte
	Name     []byte
}

// AddRelation records that parentID depends on childID, optionally via a
// named tree entry. Called by the repository facade while assembling a
// tree or inode object, before the parent's own payload (and therefore its
// own objid) is known to exist remotely.
func (c *Cache) AddRelation(ctx context.Context, parentID, childID, name []byte) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO object_relations (parent_id, child_id, name) VALUES (?, ?, ?)
		 ON CONFLICT(parent_id, child_id) DO UPDATE SET name = excluded.name`,
		parentID, childID, name)
	return mapErr(err, "add object relation")
}

// AddRelationTx is AddRelation run against an already-open ImmediateTx.
func (c *Cache) AddRelationTx(ctx context.Context, tx *ImmediateTx, parentID, childID, name []byte) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO object_relations (parent_id, child_id, name) VALUES (?, ?, ?)
		 ON CONFLICT(parent_id, child_id) DO UPDATE SET name = excluded.name`,
		parentID, childID, name)
	return mapErr(err, "add object relation")
}

// ChildrenOfObject returns every relation where parentID is the parent,
// used to browse a tree object's manifest without re-downloading and
// decoding its payload.
func (c *Cache) ChildrenOfObject(ctx context.Context, parentID []byte) ([]ObjectRelation, error) {
	rows, err := c.db.QueryContext(ctx,
		"SELECT parent_id, child_id, name FROM object_relations WHERE parent_id = ?", parentID)
	if err != nil {
		return nil, mapErr(err, "query object relations")
	}
	defer rows.Close()

	var out []ObjectRelation
	for rows.Next() {
		var r ObjectRelation
		if err := rows.Scan(&r.ParentID, &r.ChildID, &r.Name); err != nil {
			return nil, mapErr(err, "scan object relation")
		}
		out = append(out, r)
	}
	return out, mapErr(rows.Err(), "iterate object relations")
}
