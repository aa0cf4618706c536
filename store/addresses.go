package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
)

// AddressBook is a read-only handle onto the externally maintained
// authorized-addresses database. This process never writes to it.
type AddressBook struct {
	sqlDB *sql.DB
}

// OpenAddressBook opens {dbFolder}/{networkID}.sqlite read-only. It fails
// with a wrapped os error if the file is missing, and with a query error
// later if the addresses table is missing -- both map to
// commitment.ErrAuthorizationUnavailable at the call site.
func OpenAddressBook(dbFolder, networkID string) (*AddressBook, error) {
	path := filepath.Join(dbFolder, fmt.Sprintf("%s.sqlite", networkID))
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("store: address book %s: %w", path, err)
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=10000", path)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open address book %s: %w", path, err)
	}

	return &AddressBook{sqlDB: sqlDB}, nil
}

// Close releases the underlying handle.
func (ab *AddressBook) Close() error {
	return ab.sqlDB.Close()
}

// Contains reports whether address is present in the addresses table.
func (ab *AddressBook) Contains(ctx context.Context, address string) (bool, error) {
	var found int
	err := ab.sqlDB.QueryRowContext(ctx,
		`SELECT 1 FROM addresses WHERE address = ?`, address,
	).Scan(&found)

	switch {
	case err == sql.ErrNoRows:
		return false, nil
	case err != nil:
		return false, fmt.Errorf("store: query address book: %w", err)
	default:
		return true, nil
	}
}
