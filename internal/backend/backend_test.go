package backend

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/KaramelBytes/usageql-cli/internal/table"
)

func TestValidateQuery(t *testing.T) {
	cases := []struct {
		name     string
		sql      string
		safe     bool
		typ      string
		warnings int
	}{
		{"select", "SELECT * FROM customers", true, "SELECT", 0},
		{"cte", "  with x as (select 1) select * from x", true, "SELECT", 0},
		{"drop", "DROP TABLE plans", false, "DROP", 2},
		{"embedded delete", "SELECT * FROM t; delete from t", false, "SELECT", 1},
		{"column named like keyword", "SELECT deleted_at, altered FROM t", true, "SELECT", 0},
		{"update", "UPDATE t SET a = 1", false, "UPDATE", 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := ValidateQuery(tc.sql)
			if !v.IsValid || v.IsSafe != tc.safe || v.QueryType != tc.typ || len(v.Warnings) != tc.warnings {
				t.Fatalf("ValidateQuery(%q) = %+v", tc.sql, v)
			}
		})
	}
	if v := ValidateQuery("   "); v.IsValid || v.IsSafe {
		t.Fatalf("empty query should be invalid: %+v", v)
	}
}

func TestInferKinds(t *testing.T) {
	tb := table.New("t", "i", "f", "mixed", "b", "d", "s", "empty")
	tb.Append(int64(1), 1.5, int64(2), true, time.Now(), "x", nil)
	tb.Append(int64(2), int64(3), "two", false, nil, "y", nil)
	got := InferKinds(tb)
	want := []Kind{KindInteger, KindReal, KindText, KindBool, KindDate, KindText, KindText}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("InferKinds = %v, want %v", got, want)
	}
	if Coerce(int64(3), KindReal) != 3.0 || Coerce(int64(2), KindText) != "2" || Coerce(nil, KindInteger) != nil {
		t.Fatalf("Coerce conversions")
	}
}

type fakeBackend struct {
	mu      sync.Mutex
	reloads int
	err     error
}

func (f *fakeBackend) ExecuteQuery(context.Context, string, ...any) (*table.Table, error) {
	if f.err != nil {
		return nil, f.err
	}
	return table.New("result", "n"), nil
}

func (f *fakeBackend) CreateTables(context.Context, map[string]*table.Table) error {
	f.mu.Lock()
	f.reloads++
	f.mu.Unlock()
	return nil
}

func (f *fakeBackend) GetTableSchema(context.Context, string) (Schema, error) { return Schema{}, nil }
func (f *fakeBackend) GetAllTables(context.Context) ([]string, error)         { return nil, nil }
func (f *fakeBackend) SampleRows(context.Context, string, int) (*table.Table, error) {
	return nil, nil
}
func (f *fakeBackend) Close() error { return nil }

func TestSerializedWrapsErrors(t *testing.T) {
	boom := errors.New("boom")
	s := Serialize(&fakeBackend{err: boom})
	_, err := s.ExecuteQuery(context.Background(), "SELECT 1")
	var ee *ExecError
	if !errors.As(err, &ee) || !errors.Is(err, boom) || ee.SQL != "SELECT 1" {
		t.Fatalf("expected wrapped ExecError, got %v", err)
	}
	if Serialize(s) != s {
		t.Fatalf("double wrap should return the same value")
	}
}

func TestSerializedConcurrentUse(t *testing.T) {
	f := &fakeBackend{}
	s := Serialize(f)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = s.ExecuteQuery(context.Background(), "SELECT 1")
		}()
		go func() {
			defer wg.Done()
			_ = s.CreateTables(context.Background(), nil)
		}()
	}
	wg.Wait()
	if f.reloads != 20 {
		t.Fatalf("expected 20 reloads, got %d", f.reloads)
	}
}

func TestRegisterPanicsOnDuplicate(t *testing.T) {
	Register("fake-dup", func(context.Context, Config) (Backend, error) { return &fakeBackend{}, nil })
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic on duplicate kind")
		}
	}()
	Register("fake-dup", func(context.Context, Config) (Backend, error) { return &fakeBackend{}, nil })
}
