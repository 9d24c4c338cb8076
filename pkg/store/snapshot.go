package store

import "database/sql"

// Snapshot is a read-only view over the store, backed by the read
// connection pool rather than the single writer connection. It never
// observes a partial write: WAL readers always see the last committed
// transaction (§4.2).
type Snapshot struct {
	db *sql.DB
}

// DB exposes the underlying *sql.DB for packages that need to build ad
// hoc queries (pkg/baseline, pkg/classify) without Store growing a method
// for every shape of read.
func (sn *Snapshot) DB() *sql.DB { return sn.db }
