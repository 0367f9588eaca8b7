package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// CatalogDBStorage implements store.CatalogStorage on PostgreSQL with
// pgvector for embedding search.
//
// A CatalogDBStorage should be created using NewCatalogDBStorageWithConnection.
type CatalogDBStorage struct {
	conn pgxIConn
}

// NewCatalogDBStorageWithConnection creates a CatalogDBStorage on an
// existing connection or pool.
func NewCatalogDBStorageWithConnection(conn pgxIConn) *CatalogDBStorage {
	return &CatalogDBStorage{conn: conn}
}
