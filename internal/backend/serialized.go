package backend

import (
	"context"
	"sync"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

// Serialized guards a Backend so that table reloads are exclusive with
// respect to queries. Reads share the lock.
type Serialized struct {
	mu sync.RWMutex
	b  Backend
}

// Serialize wraps b. Wrapping an already serialized backend returns it as is.
func Serialize(b Backend) *Serialized {
	if s, ok := b.(*Serialized); ok {
		return s
	}
	return &Serialized{b: b}
}

// ExecuteQuery runs sql under the shared lock. Failures are returned as *ExecError.
func (s *Serialized) ExecuteQuery(ctx context.Context, sql string, args ...any) (*table.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, err := s.b.ExecuteQuery(ctx, sql, args...)
	if err != nil {
		return nil, &ExecError{SQL: sql, Err: err}
	}
	return t, nil
}

// CreateTables reloads tables under the exclusive lock.
func (s *Serialized) CreateTables(ctx context.Context, tables map[string]*table.Table) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.CreateTables(ctx, tables)
}

func (s *Serialized) GetTableSchema(ctx context.Context, name string) (Schema, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.b.GetTableSchema(ctx, name)
}

func (s *Serialized) GetAllTables(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.b.GetAllTables(ctx)
}

func (s *Serialized) SampleRows(ctx context.Context, name string, limit int) (*table.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.b.SampleRows(ctx, name, limit)
}

func (s *Serialized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.b.Close()
}
