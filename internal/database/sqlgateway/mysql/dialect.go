package mysql

import (
	"fmt"
	"time"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/migration"
)

const DefaultCharset = "utf8mb4"

type Dialect struct {
	migrationsTable, charset string
}

var _ database.Dialect = (*Dialect)(nil)

func NewDialect(migrationsTable, charset string) *Dialect {
	if migrationsTable == "" {
		migrationsTable = database.DefaultMigrationsTable
	}

	if charset == "" {
		charset = DefaultCharset
	}

	return &Dialect{migrationsTable: migrationsTable, charset: charset}
}

func (d Dialect) MigrationsTable() string {
	return d.migrationsTable
}

// SupportsTransactionalSchema is false, MySQL commits implicitly on DDL
func (d Dialect) SupportsTransactionalSchema() bool {
	return false
}

func (d Dialect) InitQuery() string {
	const createSQL = `
		CREATE TABLE IF NOT EXISTS %s (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			identifier VARCHAR(255) NOT NULL,
			batch INT UNSIGNED NOT NULL,
			migrated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY %s_identifier_unique (identifier)
		) ENGINE=InnoDB DEFAULT CHARACTER SET=%s
	`

	return fmt.Sprintf(createSQL, d.migrationsTable, d.migrationsTable, d.charset)
}

func (d Dialect) InsertQuery(identifier string, batch migration.Batch, migratedAt time.Time) (string, []interface{}) {
	const insertSQL = "INSERT INTO %s (`identifier`, `batch`, `migrated_at`) VALUES (?, ?, ?);"
	return fmt.Sprintf(insertSQL, d.migrationsTable), []interface{}{identifier, batch, migratedAt}
}

func (d Dialect) GetQuery(identifier string) (string, []interface{}) {
	const getSQL = "SELECT `id`, `identifier`, `batch`, `migrated_at` FROM %s WHERE `identifier` = ?;"
	return fmt.Sprintf(getSQL, d.migrationsTable), []interface{}{identifier}
}

func (d Dialect) ReadQuery(minBatch migration.Batch, sort string) (string, []interface{}) {
	readSQL := "SELECT `id`, `identifier`, `batch`, `migrated_at` FROM %s WHERE `batch` >= ?"

	if sort == database.DESC {
		readSQL += " ORDER BY `id` DESC"
	} else {
		readSQL += " ORDER BY `id` ASC"
	}

	return fmt.Sprintf(readSQL, d.migrationsTable), []interface{}{minBatch}
}

func (d Dialect) LastBatchQuery() string {
	return fmt.Sprintf("SELECT COALESCE(MAX(`batch`), 0) FROM %s;", d.migrationsTable)
}

func (d Dialect) RemoveQuery(identifier string) (string, []interface{}) {
	const removeSQL = "DELETE FROM %s WHERE `identifier` = ?;"
	return fmt.Sprintf(removeSQL, d.migrationsTable), []interface{}{identifier}
}

func (d Dialect) DropQuery() string {
	return fmt.Sprintf("DROP TABLE IF EXISTS %s;", d.migrationsTable)
}

func (d Dialect) ShowTablesQuery() string {
	return "SHOW TABLES;"
}
