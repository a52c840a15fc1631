// Package all registers every storage backend. Blank-import it from a main
// package to make the full set available through storage.New.
package all

import (
	_ "complaintsetl/internal/storage/mssql"
	_ "complaintsetl/internal/storage/postgres"
	_ "complaintsetl/internal/storage/sqlite"
)
