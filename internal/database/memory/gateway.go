package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/denismitr/bakery/internal/database"
	"github.com/denismitr/bakery/internal/logger"
	"github.com/denismitr/bakery/migration"
	"github.com/pkg/errors"
)

// Gateway keeps the migrations log and the executed statements in memory
type Gateway struct {
	mu sync.Mutex

	lg            logger.Logger
	transactional bool
	exists        bool
	lastID        uint64
	records       migration.Records
	executed      []string
	clock         func() time.Time
}

var _ database.Gateway = (*Gateway)(nil)

func New(transactional bool) *Gateway {
	return &Gateway{
		lg:            &logger.NullLogger{},
		transactional: transactional,
		clock:         time.Now,
	}
}

func (g *Gateway) SetLogger(lg logger.Logger) {
	g.lg = lg
}

func (g *Gateway) Close() error {
	return nil
}

// Executed returns statements executed against the schema, rolled back
// transactions excluded
func (g *Gateway) Executed() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	result := make([]string, len(g.executed))
	copy(result, g.executed)
	return result
}

// Seed logs records as if they were applied earlier
func (g *Gateway) Seed(batch migration.Batch, identifiers ...string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true
	for _, id := range identifiers {
		g.insert(id, batch)
	}
}

func (g *Gateway) List(ctx context.Context, f database.ReadFilter) ([]string, error) {
	records, err := g.Records(ctx, f)
	if err != nil {
		return nil, err
	}

	return records.Identifiers(), nil
}

func (g *Gateway) Records(_ context.Context, f database.ReadFilter) (migration.Records, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true

	minBatch := database.MinBatch(g.lastBatch(), f.Steps)

	var result migration.Records
	for _, r := range g.records {
		if r.Batch >= minBatch {
			result = append(result, r)
		}
	}

	sort.Sort(result)

	if f.Sort == database.DESC {
		reverse(result)
	}

	return result, nil
}

func (g *Gateway) Get(_ context.Context, identifier string) (migration.Record, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true

	if i := g.indexOf(identifier); i >= 0 {
		return g.records[i], nil
	}

	return migration.Record{}, errors.Wrapf(migration.ErrNotFound, "[%s] is not in the migrations log", identifier)
}

func (g *Gateway) Has(_ context.Context, identifier string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true

	return g.indexOf(identifier) >= 0, nil
}

func (g *Gateway) LastBatch(_ context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true

	last := g.lastBatch()

	var result migration.Records
	for _, r := range g.records {
		if r.Batch == last {
			result = append(result, r)
		}
	}

	sort.Sort(result)
	reverse(result)

	return result.Identifiers(), nil
}

func (g *Gateway) Log(_ context.Context, identifier string, batch migration.Batch) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true

	if g.indexOf(identifier) >= 0 {
		return errors.Wrapf(migration.ErrAlreadyLogged, "[%s]", identifier)
	}

	if batch == 0 {
		batch = g.lastBatch() + 1
	}

	g.insert(identifier, batch)

	return nil
}

func (g *Gateway) Remove(_ context.Context, identifier string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true

	if i := g.indexOf(identifier); i >= 0 {
		g.records = append(g.records[:i], g.records[i+1:]...)
	}

	return nil
}

func (g *Gateway) NextBatchNumber(ctx context.Context) (migration.Batch, error) {
	last, err := g.LastBatchNumber(ctx)
	if err != nil {
		return 0, err
	}

	return last + 1, nil
}

func (g *Gateway) LastBatchNumber(_ context.Context) (migration.Batch, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true

	return g.lastBatch(), nil
}

func (g *Gateway) Create(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = true
	return nil
}

func (g *Gateway) Delete(_ context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.exists = false
	g.records = nil
	return nil
}

func (g *Gateway) Exists(_ context.Context) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.exists, nil
}

func (g *Gateway) SupportsTransactionalSchema() bool {
	return g.transactional
}

func (g *Gateway) Schema() migration.Schema {
	return schemaFunc(func(query string) {
		g.mu.Lock()
		g.executed = append(g.executed, query)
		g.mu.Unlock()
	})
}

func (g *Gateway) Transaction(_ context.Context, fn func(s migration.Schema) error) error {
	var pending []string
	tx := schemaFunc(func(query string) {
		pending = append(pending, query)
	})

	if err := fn(tx); err != nil {
		g.lg.Debugf("transaction rolled back, %d statements discarded", len(pending))
		return err
	}

	g.mu.Lock()
	g.executed = append(g.executed, pending...)
	g.mu.Unlock()

	return nil
}

func (g *Gateway) Pretend(ctx context.Context, fn func(s migration.Schema) error) ([]string, error) {
	return database.Pretend(ctx, fn)
}

func (g *Gateway) Lock(context.Context) error {
	return nil
}

func (g *Gateway) Unlock(context.Context) error {
	return nil
}

func (g *Gateway) insert(identifier string, batch migration.Batch) {
	g.lastID++
	g.records = append(g.records, migration.Record{
		ID:         g.lastID,
		Identifier: identifier,
		Batch:      batch,
		MigratedAt: g.clock(),
	})
}

func (g *Gateway) indexOf(identifier string) int {
	for i := range g.records {
		if g.records[i].Identifier == identifier {
			return i
		}
	}

	return -1
}

func (g *Gateway) lastBatch() migration.Batch {
	var last migration.Batch
	for _, r := range g.records {
		if r.Batch > last {
			last = r.Batch
		}
	}
	return last
}

type schemaFunc func(query string)

func (f schemaFunc) Exec(_ context.Context, query string, _ ...interface{}) error {
	f(query)
	return nil
}

func reverse(r migration.Records) {
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
}
