package dataset

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/usageql-cli/internal/table"
	"github.com/KaramelBytes/usageql-cli/internal/utils"
)

// Source is one raw table together with where it came from.
type Source struct {
	Name       string
	Path       string
	Table      *table.Table
	Provenance Provenance
	// Err is the load failure that caused a sample substitution, if any.
	Err error
}

// Raw returns the source tables keyed by name.
func Raw(sources map[string]*Source) map[string]*table.Table {
	out := make(map[string]*table.Table, len(sources))
	for name, s := range sources {
		out[name] = s.Table
	}
	return out
}

// ReadCSV reads a CSV file into a table of raw string cells. Header names are
// lower-cased with spaces replaced by underscores; empty cells become nil.
func ReadCSV(path, name string) (*table.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()
	return readCSV(f, name, sniffDelimiter(path))
}

func readCSV(src io.Reader, name string, delim rune) (*table.Table, error) {
	r := csv.NewReader(src)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	r.Comma = delim

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read header: empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make([]string, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		cols[i] = strings.ReplaceAll(strings.ToLower(h), " ", "_")
	}
	t := table.New(name, cols...)
	line := 1
	for {
		rec, err := r.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		line++
		row := make([]any, len(cols))
		for j := range cols {
			if j >= len(rec) {
				continue
			}
			v := strings.TrimSpace(rec[j])
			if v != "" {
				row[j] = v
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

func sniffDelimiter(path string) rune {
	if strings.HasSuffix(strings.ToLower(path), ".tsv") {
		return '\t'
	}
	return ','
}

// LoadSources reads every source file from dir. A missing or unreadable file,
// or one without a customer_id column, is replaced by gen's sample table and
// marked Synthetic. The only errors returned come from the generator or ctx.
func LoadSources(ctx context.Context, dir string, files Files, gen Generator, log *zap.Logger) (map[string]*Source, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if files == nil {
		files = DefaultFiles()
	}
	results := make([]*Source, len(SourceNames))
	g, ctx := errgroup.WithContext(ctx)
	for i, name := range SourceNames {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(dir, files[name])
			src := &Source{Name: name, Path: path, Provenance: FromFile}
			t, err := ReadCSV(path, name)
			if err == nil && t.Index(KeyColumn) < 0 {
				err = fmt.Errorf("%w: %s", ErrMissingColumn, KeyColumn)
			}
			if err != nil {
				serr := &SourceError{Name: name, Path: path, Err: err}
				if serr.Missing() {
					log.Warn("source file not found, generating sample data", zap.String("source", name), zap.String("path", path))
				} else {
					log.Error("source file unreadable, generating sample data", zap.String("source", name), zap.String("path", path), zap.Error(err))
				}
				sample, gerr := gen.Generate(name)
				if gerr != nil {
					return fmt.Errorf("generate sample %s: %w", name, gerr)
				}
				src.Table = sample
				src.Provenance = Synthetic
				src.Err = serr
			} else {
				src.Table = t
				log.Info("loaded source", zap.String("source", name), zap.String("path", path), zap.Int("rows", t.Len()))
			}
			results[i] = src
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]*Source, len(results))
	for _, s := range results {
		out[s.Name] = s
	}
	return out, nil
}

// SampleSources returns gen's table for every source without touching the
// filesystem. Every source is marked Synthetic.
func SampleSources(gen Generator) (map[string]*Source, error) {
	out := make(map[string]*Source, len(SourceNames))
	for _, name := range SourceNames {
		t, err := gen.Generate(name)
		if err != nil {
			return nil, fmt.Errorf("generate sample %s: %w", name, err)
		}
		out[name] = &Source{Name: name, Table: t, Provenance: Synthetic}
	}
	return out, nil
}

// WriteCSV writes t to path as a comma-separated file with a header row.
// Nil cells are written empty.
func WriteCSV(path string, t *table.Table) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i := range rec {
			rec[i] = ""
			if i < len(row) && row[i] != nil {
				rec[i] = table.Format(row[i])
			}
		}
		if err := w.Write(rec); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return utils.SafeWriteFile(path, buf.Bytes())
}
