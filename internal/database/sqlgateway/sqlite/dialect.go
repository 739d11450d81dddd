package sqlite

import (
	"fmt"
	"time"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/migration"
)

type Dialect struct {
	migrationsTable string
}

type Options struct {
	database.CommonOptions
}

func NewDialect(migrationsTable string) *Dialect {
	if migrationsTable == "" {
		migrationsTable = database.DefaultMigrationsTable
	}

	return &Dialect{migrationsTable: migrationsTable}
}

var _ database.Dialect = (*Dialect)(nil)

func (d Dialect) MigrationsTable() string {
	return d.migrationsTable
}

func (d Dialect) SupportsTransactionalSchema() bool {
	return true
}

func (d Dialect) InitQuery() string {
	const sqliteCreateMigrationsSchema = `
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			identifier VARCHAR(255) NOT NULL UNIQUE,
			batch INTEGER NOT NULL,
			migrated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
	`

	return fmt.Sprintf(sqliteCreateMigrationsSchema, d.migrationsTable)
}

func (d Dialect) InsertQuery(identifier string, batch migration.Batch, migratedAt time.Time) (string, []interface{}) {
	const sqliteInsertQuery = "INSERT INTO %s (identifier, batch, migrated_at) VALUES (?, ?, ?);"
	return fmt.Sprintf(sqliteInsertQuery, d.migrationsTable), []interface{}{identifier, batch, migratedAt}
}

func (d Dialect) GetQuery(identifier string) (string, []interface{}) {
	const sqliteGetQuery = "SELECT id, identifier, batch, migrated_at FROM %s WHERE identifier = ?;"
	return fmt.Sprintf(sqliteGetQuery, d.migrationsTable), []interface{}{identifier}
}

func (d Dialect) RemoveQuery(identifier string) (string, []interface{}) {
	const sqliteDeleteQuery = "DELETE FROM %s WHERE identifier = ?;"
	return fmt.Sprintf(sqliteDeleteQuery, d.migrationsTable), []interface{}{identifier}
}

func (d Dialect) DropQuery() string {
	const sqliteDropMigrationsQuery = "DROP TABLE IF EXISTS %s;"
	return fmt.Sprintf(sqliteDropMigrationsQuery, d.migrationsTable)
}

func (d Dialect) ShowTablesQuery() string {
	return "SELECT name as table_name FROM sqlite_master WHERE type='table' ORDER BY name;"
}

func (d Dialect) LastBatchQuery() string {
	return fmt.Sprintf("SELECT COALESCE(MAX(batch), 0) FROM %s;", d.migrationsTable)
}

func (d Dialect) ReadQuery(minBatch migration.Batch, sort string) (string, []interface{}) {
	readSQL := "SELECT id, identifier, batch, migrated_at FROM %s WHERE batch >= ?"

	if sort == database.DESC {
		readSQL += " ORDER BY id DESC"
	} else {
		readSQL += " ORDER BY id ASC"
	}

	return fmt.Sprintf(readSQL, d.migrationsTable), []interface{}{minBatch}
}
