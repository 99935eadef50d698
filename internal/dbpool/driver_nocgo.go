//go:build dbpool_nocgo

package dbpool

import _ "modernc.org/sqlite"

// driverName selects the pure-Go modernc.org/sqlite driver, registered by
// that package under the name "sqlite". Used for CGO-free cross-compiled
// builds of the decapod binary; the pragma sequence and busy_timeout DSN
// query string in Pool.open are identical across both drivers.
const driverName = "sqlite"
