// Package convert implements the conversion-driver orchestration shared
// by the tpconv and asconv command-line tools: pick an input/output
// format by filename extension or explicit token, thread an input
// through an ordered filter chain, and copy every object from reader to
// writer before a single final flush.
//
// Grounded on original_source/tp-conv.cc's main(): argument handling
// (-o/-f/-F), format lookup by extension, the "unlink partial output on
// error" contract, and flushing the writer once after every input file
// has been consumed (not per file).
package convert

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	humanize "github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/klauspost/compress/gzip"

	"loggertoolsgo/internal/catalog"
	"loggertoolsgo/internal/pipeline"
)

// FilterFunc applies one named, argument-carrying filter to a reader.
// Airspace conversion has no filters of its own (see asconv.cc, which
// never parses -F at all); Driver.ApplyFilter is nil in that case, and
// a non-empty FilterSpecs list is a configuration error.
type FilterFunc[T any] func(reader pipeline.Reader[T], name, args string) (pipeline.Reader[T], error)

// Options holds one driver invocation's parsed command-line arguments.
type Options struct {
	OutPath      string   // -o
	StdoutFormat string   // -f
	FilterSpecs  []string // -F, in command-line order, "<name>" or "<name>:<args>"
	Inputs       []string // positional input file paths
	CatalogPath  string   // -catalog
}

// Validate checks the mutual-exclusion and required-argument rules
// shared by both drivers' CLI grammar.
func (o Options) Validate() error {
	if o.OutPath == "" && o.StdoutFormat == "" {
		return fmt.Errorf("no output specified: use -o PATH or -f FORMAT")
	}
	if o.OutPath != "" && o.StdoutFormat != "" {
		return fmt.Errorf("-o and -f are mutually exclusive")
	}
	if len(o.Inputs) == 0 {
		return fmt.Errorf("no input files specified")
	}
	return nil
}

// Summary reports what one Run call did, for the CLI's humanize'd
// progress line.
type Summary struct {
	ObjectCount int
	BytesOut    int64
}

func (s Summary) String() string {
	return fmt.Sprintf("converted %d object(s), wrote %s", s.ObjectCount, humanize.Bytes(uint64(s.BytesOut)))
}

// splitExtension returns path's format token (the part of the filename
// extension after a trailing ".gz" has been stripped) and whether a
// ".gz" suffix was present.
func splitExtension(path string) (token string, gzipped bool) {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".gz") {
		gzipped = true
		path = path[:len(path)-3]
	}
	ext := filepath.Ext(path)
	if ext == "" {
		return "", gzipped
	}
	return strings.ToLower(ext[1:]), gzipped
}

// countingWriter tracks how many bytes have passed through it, for the
// final humanize'd summary.
type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

// outputTarget is an open output destination awaiting a format writer.
// On Commit, any temp file is renamed into place; on Abort, it's
// removed, matching tp-conv.cc's unlink(out_filename) on error.
type outputTarget struct {
	stream  io.Writer
	count   *countingWriter
	closers []io.Closer
	tmpPath string
	outPath string
}

func (t *outputTarget) closeAll() error {
	var firstErr error
	for i := len(t.closers) - 1; i >= 0; i-- {
		if err := t.closers[i].Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Commit finalizes a successful conversion: closes every layer (gzip
// writer, then file) and renames the temp file into place.
func (t *outputTarget) Commit() error {
	if err := t.closeAll(); err != nil {
		_ = t.Abort()
		return err
	}
	if t.tmpPath != "" {
		if err := os.Rename(t.tmpPath, t.outPath); err != nil {
			_ = os.Remove(t.tmpPath)
			return err
		}
	}
	return nil
}

// Abort discards a failed conversion's partial output.
func (t *outputTarget) Abort() error {
	_ = t.closeAll()
	if t.tmpPath != "" {
		return os.Remove(t.tmpPath)
	}
	return nil
}

// openOutput opens opts' output destination and determines the format
// token to write. Writing to a real file goes through a uuid-suffixed
// temp name in the same directory, renamed into place on Commit so a
// reader never observes a partially written file.
func openOutput(opts Options) (*outputTarget, string, error) {
	if opts.OutPath != "" {
		token, gzipped := splitExtension(opts.OutPath)
		if token == "" {
			return nil, "", fmt.Errorf("no filename extension in %s", opts.OutPath)
		}

		tmpPath := opts.OutPath + ".tmp-" + uuid.NewString()
		f, err := os.Create(tmpPath)
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", tmpPath, err)
		}

		target := &outputTarget{tmpPath: tmpPath, outPath: opts.OutPath, closers: []io.Closer{f}}
		var stream io.Writer = f
		if gzipped {
			gw := gzip.NewWriter(f)
			target.closers = append(target.closers, gw)
			stream = gw
		}
		target.count = &countingWriter{w: stream}
		target.stream = target.count
		return target, token, nil
	}

	target := &outputTarget{count: &countingWriter{w: os.Stdout}}
	target.stream = target.count
	return target, opts.StdoutFormat, nil
}

// openInput opens path for reading, returning the format token to read
// it with and the byte stream (transparently gunzipped if path ends in
// ".gz").
func openInput(path string) (io.ReadCloser, string, error) {
	token, gzipped := splitExtension(path)
	if token == "" {
		return nil, "", fmt.Errorf("no filename extension in %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	if !gzipped {
		return f, token, nil
	}

	gr, err := gzip.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}
	return &gzipReadCloser{Reader: gr, file: f}, token, nil
}

// gzipReadCloser closes both the decompressor and the underlying file.
type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Close() error {
	err1 := g.Reader.Close()
	err2 := g.file.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// sliceReader replays a pre-decoded slice (a catalog cache hit) as a
// pipeline.Reader, so cached input can be spliced into the same
// filter/copy code path as a freshly parsed one.
type sliceReader[T any] struct {
	items []T
	pos   int
}

func (r *sliceReader[T]) Read() (*T, error) {
	if r.pos >= len(r.items) {
		return nil, nil
	}
	v := r.items[r.pos]
	r.pos++
	return &v, nil
}

func (r *sliceReader[T]) Close() error { return nil }

// CatalogBinder adapts an open *catalog.Catalog into the Lookup/Store
// pair for one record type. Go generics can't dispatch on T to pick
// between the catalog's LookupTurnPoints/LookupAirspaces method pairs
// automatically, so cmd/tpconv and cmd/asconv each supply a one-line
// binder built from the catalog's own typed accessor methods.
type CatalogBinder[T any] func(c *catalog.Catalog) (lookup func(path string) ([]T, bool, error), store func(path string, items []T) error)

// Driver runs a single conversion-engine instance (turnpoints or
// airspaces) against a Registry[T] and an optional filter dispatcher.
type Driver[T any] struct {
	Registry    *pipeline.Registry[T]
	ApplyFilter FilterFunc[T]
	BindCatalog CatalogBinder[T] // nil disables -catalog for this driver

	lookup func(path string) ([]T, bool, error)
	store  func(path string, items []T) error
}

// Run executes one conversion: opens the output, reads every input file
// in order (applying the filter chain and the optional catalog cache to
// each), writes every object, and flushes once at the end. On any error
// the partially written output is removed, matching the reference's
// unlink-on-error contract.
func (d *Driver[T]) Run(opts Options) (Summary, error) {
	if err := opts.Validate(); err != nil {
		return Summary{}, err
	}

	if opts.CatalogPath != "" {
		if d.BindCatalog == nil {
			return Summary{}, fmt.Errorf("-catalog is not supported by this converter")
		}
		cat, err := catalog.Open(opts.CatalogPath)
		if err != nil {
			return Summary{}, err
		}
		defer func() { _ = cat.Close() }()
		d.lookup, d.store = d.BindCatalog(cat)
	}

	target, outToken, err := openOutput(opts)
	if err != nil {
		return Summary{}, err
	}

	writer, err := d.Registry.NewWriterForExtension(outToken, target.stream)
	if err != nil {
		_ = target.Abort()
		return Summary{}, fmt.Errorf("format %q: %w", outToken, err)
	}

	summary := Summary{}
	if err := d.runInputs(opts, writer, &summary); err != nil {
		_ = target.Abort()
		return Summary{}, err
	}

	if err := writer.Flush(); err != nil {
		_ = target.Abort()
		return Summary{}, fmt.Errorf("flush output: %w", err)
	}

	if err := target.Commit(); err != nil {
		return Summary{}, err
	}
	summary.BytesOut = target.count.n
	return summary, nil
}

// runInputs reads every input file's raw (pre-filter) object set — from
// the catalog when it has a fresh cached entry, otherwise by parsing the
// file and, if a catalog is wired, storing the raw set for next time —
// then threads that set through the filter chain before writing it out.
// Caching the pre-filter set rather than the filtered one matters: two
// invocations against the same file with different -F arguments must
// not share a filtered cache entry.
func (d *Driver[T]) runInputs(opts Options, writer pipeline.Writer[T], summary *Summary) error {
	for _, path := range opts.Inputs {
		raw, err := d.readRaw(path)
		if err != nil {
			return err
		}

		var reader pipeline.Reader[T] = &sliceReader[T]{items: raw}
		for _, spec := range opts.FilterSpecs {
			if d.ApplyFilter == nil {
				return fmt.Errorf("filters are not supported by this converter")
			}
			name, args := splitFilterSpec(spec)
			reader, err = d.ApplyFilter(reader, name, args)
			if err != nil {
				return fmt.Errorf("filter %q: %w", name, err)
			}
		}

		for {
			v, err := reader.Read()
			if err != nil {
				return fmt.Errorf("reading %s: %w", path, err)
			}
			if v == nil {
				break
			}
			if err := writer.Write(*v); err != nil {
				return fmt.Errorf("writing %s: %w", path, err)
			}
			summary.ObjectCount++
		}
	}
	return nil
}

// readRaw returns path's decoded, unfiltered object set: a catalog hit
// when one exists and is still fresh, otherwise a fresh parse through
// the format registry, stored back to the catalog (if wired) for next
// time.
func (d *Driver[T]) readRaw(path string) ([]T, error) {
	if d.lookup != nil {
		items, hit, err := d.lookup(path)
		if err == nil && hit {
			return items, nil
		}
	}

	stream, token, err := openInput(path)
	if err != nil {
		return nil, err
	}
	reader, err := d.Registry.NewReaderForExtension(token, stream)
	if err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("format %q: %w", token, err)
	}
	defer func() { _ = reader.Close() }()

	items, err := pipeline.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if d.store != nil {
		_ = d.store(path, items)
	}
	return items, nil
}

// splitFilterSpec splits a "-F" argument into its filter name and
// optional ":args" suffix.
func splitFilterSpec(spec string) (name, args string) {
	colon := strings.IndexByte(spec, ':')
	if colon < 0 {
		return spec, ""
	}
	return spec[:colon], spec[colon+1:]
}
