package gen

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/imports"
)

// Writer renders the graph's model packages in parallel and pipes every
// file through goimports before it reaches disk.
type Writer struct {
	graph   *Graph
	workers int

	mu      sync.Mutex
	metrics Metrics
}

// Metrics tracks one generation run.
type Metrics struct {
	FilesWritten int
	TotalBytes   int64
}

// NewWriter returns a writer for the graph.
func NewWriter(g *Graph) *Writer {
	workers := g.Config.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Writer{graph: g, workers: workers}
}

// Metrics returns the counters of the last WriteAll run.
func (w *Writer) Metrics() Metrics {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.metrics
}

// WriteAll generates every model package under the target directory.
func (w *Writer) WriteAll(ctx context.Context) error {
	if err := os.MkdirAll(w.graph.Config.Target, 0o755); err != nil {
		return fmt.Errorf("create target directory: %w", err)
	}
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(w.workers)
	for _, t := range w.graph.Types {
		t := t
		eg.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
				return w.writeType(t)
			}
		})
	}
	return eg.Wait()
}

// writeType renders one model package and writes its file.
func (w *Writer) writeType(t *Type) error {
	var buf bytes.Buffer
	if err := genType(t).Render(&buf); err != nil {
		return fmt.Errorf("render %s: %w", t.Name, err)
	}

	path := filepath.Join(w.graph.Config.Target, filepath.FromSlash(t.FileName()))
	// goimports prunes the unused imports jennifer declared conservatively
	// and normalizes formatting.
	formatted, err := imports.Process(path, buf.Bytes(), nil)
	if err != nil {
		return fmt.Errorf("format %s: %w", t.FileName(), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", t.FileName(), err)
	}
	if err := os.WriteFile(path, formatted, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", t.FileName(), err)
	}

	w.mu.Lock()
	w.metrics.FilesWritten++
	w.metrics.TotalBytes += int64(len(formatted))
	w.mu.Unlock()
	return nil
}
