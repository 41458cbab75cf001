// Package backend defines the SQL engine the analyses run against and the
// registry of concrete engines.
package backend

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// Backend is a SQL engine holding the pipeline's tables.
type Backend interface {
	// ExecuteQuery runs a read query with ? placeholders bound to args.
	ExecuteQuery(ctx context.Context, sql string, args ...any) (*table.Table, error)
	// CreateTables drops and recreates each named table from its contents.
	CreateTables(ctx context.Context, tables map[string]*table.Table) error
	GetTableSchema(ctx context.Context, name string) (Schema, error)
	GetAllTables(ctx context.Context) ([]string, error)
	SampleRows(ctx context.Context, name string, limit int) (*table.Table, error)
	Close() error
}

// Schema lists a table's columns and their engine types, in column order.
type Schema struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Types   []string `json:"types"`
}

// Config selects and configures a backend.
type Config struct {
	Kind   string
	DSN    string
	Logger *zap.Logger
}

// Factory opens a backend of one kind.
type Factory func(ctx context.Context, cfg Config) (Backend, error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend kind available to Open. It is called from the
// init function of each backend package and panics on duplicate kinds.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	if kind == "" {
		panic("backend: Register called with empty kind")
	}
	if f == nil {
		panic("backend: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("backend: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Kinds returns the registered backend kinds, sorted.
func Kinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Open constructs the configured backend and wraps it for concurrent use.
func Open(ctx context.Context, cfg Config) (*Serialized, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("%w: empty kind", ErrUnsupportedKind)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()
	if f == nil {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrUnsupportedKind, cfg.Kind, Kinds())
	}
	b, err := f(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Kind, err)
	}
	return Serialize(b), nil
}
