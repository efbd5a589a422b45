package cache

import "database/sql"

// nullInt64Col adapts a nullable INTEGER column to a *int64 without forcing
// every caller to juggle sql.NullInt64 directly.
type nullInt64Col struct {
	sql.NullInt64
}

func (n nullInt64Col) ptr() *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}
