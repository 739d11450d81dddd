package source

import (
	"context"
	"strings"
	"testing"

	"github.com/denismitr/bakery/internal/logger"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ScriptsAreSplitIntoStatements(t *testing.T) {
	tt := []struct {
		name       string
		script     string
		requires   []string
		statements []string
	}{
		{
			name:       "empty script",
			script:     "",
			requires:   []string{},
			statements: nil,
		},
		{
			name:     "dependencies and plain statements",
			script:   "-- depends: a, b\nCREATE TABLE foo (id int);\n\nINSERT INTO foo VALUES (1);\nSELECT 1",
			requires: []string{"a", "b"},
			statements: []string{
				"CREATE TABLE foo (id int);",
				"INSERT INTO foo VALUES (1);",
				"SELECT 1",
			},
		},
		{
			name: "plpgsql function body stays whole",
			script: "CREATE FUNCTION touch_updated_at() RETURNS trigger AS $$\n" +
				"BEGIN\n" +
				"  NEW.updated_at := now();\n" +
				"  RETURN NEW;\n" +
				"END;\n" +
				"$$ LANGUAGE plpgsql;\n" +
				"CREATE TRIGGER users_updated_at BEFORE UPDATE ON users FOR EACH ROW EXECUTE PROCEDURE touch_updated_at();\n",
			requires: []string{},
			statements: []string{
				"CREATE FUNCTION touch_updated_at() RETURNS trigger AS $$\n" +
					"BEGIN\n" +
					"  NEW.updated_at := now();\n" +
					"  RETURN NEW;\n" +
					"END;\n" +
					"$$ LANGUAGE plpgsql;",
				"CREATE TRIGGER users_updated_at BEFORE UPDATE ON users FOR EACH ROW EXECUTE PROCEDURE touch_updated_at();",
			},
		},
		{
			name: "tagged dollar quote ignores inner double dollars",
			script: "DO $body$\n" +
				"BEGIN\n" +
				"  EXECUTE $$UPDATE foo SET v = 1;$$;\n" +
				"END;\n" +
				"$body$;\n" +
				"SELECT $1 FROM foo;\n",
			requires: []string{},
			statements: []string{
				"DO $body$\nBEGIN\n  EXECUTE $$UPDATE foo SET v = 1;$$;\nEND;\n$body$;",
				"SELECT $1 FROM foo;",
			},
		},
		{
			name: "statement block keeps a mysql trigger whole",
			script: "CREATE TABLE orders (id int, total int);\n" +
				"-- statement begin\n" +
				"CREATE TRIGGER orders_total BEFORE INSERT ON orders FOR EACH ROW\n" +
				"BEGIN\n" +
				"  SET NEW.total = 0;\n" +
				"END;\n" +
				"-- statement end\n" +
				"DROP TABLE legacy_orders;\n",
			requires: []string{},
			statements: []string{
				"CREATE TABLE orders (id int, total int);",
				"CREATE TRIGGER orders_total BEFORE INSERT ON orders FOR EACH ROW\nBEGIN\n  SET NEW.total = 0;\nEND;",
				"DROP TABLE legacy_orders;",
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			requires, statements, err := parseScript(tc.script)
			require.NoError(t, err)
			assert.Equal(t, tc.requires, requires)
			assert.Equal(t, tc.statements, statements)
		})
	}
}

func Test_MalformedScriptsAreRejected(t *testing.T) {
	tt := []struct {
		name   string
		script string
	}{
		{name: "unterminated dollar quote", script: "CREATE FUNCTION f() RETURNS int AS $$\nSELECT 1;\n"},
		{name: "statement begin without end", script: "-- statement begin\nSELECT 1;\n"},
		{name: "statement end without begin", script: "SELECT 1;\n-- statement end\n"},
		{name: "nested statement begin", script: "-- statement begin\n-- statement begin\nSELECT 1;\n"},
		{name: "line too long", script: "SELECT '" + strings.Repeat("x", maxScriptLine+1) + "';\n"},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := parseScript(tc.script)
			assert.Error(t, err)
		})
	}
}

func Test_OversizedStatementIsABadDefinition(t *testing.T) {
	folder := t.TempDir()
	writeFile(t, folder, "1600000000_big.migrate.sql",
		"CREATE TABLE t (v text);\n"+
			"INSERT INTO t (v) VALUES ('"+strings.Repeat("x", 11*1024*1024)+"');\n"+
			"CREATE INDEX t_v_idx ON t (v);\n",
	)

	lfs, err := NewLocalFSSource(folder, &logger.NullLogger{}, migration.TimestampFormat)
	require.NoError(t, err)

	d, err := lfs.Get(context.Background(), "1600000000_big")
	require.Error(t, err)
	assert.Nil(t, d)
	assert.True(t, errors.Is(err, migration.ErrBadDefinition))
	assert.Contains(t, err.Error(), "1600000000_big")

	_, err = lfs.All(context.Background())
	assert.True(t, errors.Is(err, migration.ErrBadDefinition))
}
