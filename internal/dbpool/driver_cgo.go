//go:build !dbpool_nocgo

package dbpool

import _ "github.com/mattn/go-sqlite3"

// driverName is the database/sql driver registered for this build. The
// default build links the CGO mattn/go-sqlite3 driver; pass
// -tags dbpool_nocgo to link the pure-Go modernc.org/sqlite driver instead.
const driverName = "sqlite3"
