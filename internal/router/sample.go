package router

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/KaramelBytes/usageql-cli/internal/backend"
	_ "github.com/KaramelBytes/usageql-cli/internal/backend/sqlite"
	"github.com/KaramelBytes/usageql-cli/internal/catalog"
	"github.com/KaramelBytes/usageql-cli/internal/dataset"
	"github.com/KaramelBytes/usageql-cli/internal/pipeline"
	"github.com/KaramelBytes/usageql-cli/internal/table"
)

const sampleTimeout = 10 * time.Second

// sampleSource loads the generator's tables into a private in-memory SQLite
// database the first time a backend failure needs them.
type sampleSource struct {
	gen  dataset.Generator
	log  *zap.Logger
	once sync.Once
	db   *backend.Serialized
	err  error
}

func (s *sampleSource) load(ctx context.Context) (*backend.Serialized, error) {
	s.once.Do(func() {
		db, err := backend.Open(ctx, backend.Config{Kind: "sqlite", DSN: ":memory:", Logger: s.log})
		if err != nil {
			s.err = err
			return
		}
		opts := pipeline.Options{SampleOnly: true, Generator: s.gen, Backend: db, Logger: s.log}
		if _, err := pipeline.Run(ctx, opts); err != nil {
			_ = db.Close()
			s.err = err
			return
		}
		s.db = db
	})
	return s.db, s.err
}

// run executes q over the sample tables. The caller's deadline is dropped:
// it may be the one that just expired.
func (s *sampleSource) run(ctx context.Context, q catalog.Query) (*table.Table, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sampleTimeout)
	defer cancel()
	db, err := s.load(ctx)
	if err != nil {
		return nil, err
	}
	return db.ExecuteQuery(ctx, q.SQL, q.Args...)
}

func (s *sampleSource) close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
