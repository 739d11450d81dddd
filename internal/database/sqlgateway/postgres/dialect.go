package postgres

import (
	"fmt"
	"time"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/migration"
)

type Dialect struct {
	migrationsTable string
}

var _ database.Dialect = (*Dialect)(nil)

func NewDialect(migrationsTable string) *Dialect {
	if migrationsTable == "" {
		migrationsTable = database.DefaultMigrationsTable
	}

	return &Dialect{migrationsTable: migrationsTable}
}

func (d Dialect) MigrationsTable() string {
	return d.migrationsTable
}

func (d Dialect) SupportsTransactionalSchema() bool {
	return true
}

func (d Dialect) InitQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			identifier VARCHAR(255) NOT NULL UNIQUE,
			batch INTEGER NOT NULL,
			migrated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`

	return fmt.Sprintf(createSQL, d.migrationsTable)
}

func (d Dialect) InsertQuery(identifier string, batch migration.Batch, migratedAt time.Time) (string, []interface{}) {
	const insertSQL = "INSERT INTO %s (identifier, batch, migrated_at) VALUES ($1, $2, $3);"
	return fmt.Sprintf(insertSQL, d.migrationsTable), []interface{}{identifier, batch, migratedAt}
}

func (d Dialect) GetQuery(identifier string) (string, []interface{}) {
	const getSQL = "SELECT id, identifier, batch, migrated_at FROM %s WHERE identifier = $1;"
	return fmt.Sprintf(getSQL, d.migrationsTable), []interface{}{identifier}
}

func (d Dialect) ReadQuery(minBatch migration.Batch, sort string) (string, []interface{}) {
	readSQL := "SELECT id, identifier, batch, migrated_at FROM %s WHERE batch >= $1"

	if sort == database.DESC {
		readSQL += " ORDER BY id DESC"
	} else {
		readSQL += " ORDER BY id ASC"
	}

	return fmt.Sprintf(readSQL, d.migrationsTable), []interface{}{minBatch}
}

func (d Dialect) LastBatchQuery() string {
	return fmt.Sprintf("SELECT COALESCE(MAX(batch), 0) FROM %s;", d.migrationsTable)
}

func (d Dialect) RemoveQuery(identifier string) (string, []interface{}) {
	const removeSQL = "DELETE FROM %s WHERE identifier = $1;"
	return fmt.Sprintf(removeSQL, d.migrationsTable), []interface{}{identifier}
}

func (d Dialect) DropQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.migrationsTable)
}

func (d Dialect) ShowTablesQuery() string {
	return "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname = current_schema();"
}
