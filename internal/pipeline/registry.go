package pipeline

import (
	"io"
	"sort"
	"strings"
	"sync"
)

// NewReaderFunc builds a Reader[T] over a byte stream, or returns
// ErrUnsupportedDirection if the format has no reader.
type NewReaderFunc[T any] func(io.Reader) (Reader[T], error)

// NewWriterFunc builds a Writer[T] over a byte stream, or returns
// ErrUnsupportedDirection if the format has no writer.
type NewWriterFunc[T any] func(io.Writer) (Writer[T], error)

// Format is a registered reader/writer factory pair, answering to one or
// more format tokens (lowercased filename extensions or short names).
type Format[T any] struct {
	// Tokens is this format's canonical name followed by any aliases.
	Tokens    []string
	NewReader NewReaderFunc[T]
	NewWriter NewWriterFunc[T]
}

func unsupportedReader[T any](io.Reader) (Reader[T], error) {
	return nil, ErrUnsupportedDirection
}

func unsupportedWriter[T any](io.Writer) (Writer[T], error) {
	return nil, ErrUnsupportedDirection
}

// Registry maps format tokens to Format factory pairs. The turnpoint and
// airspace subsystems each hold one instance; both are immutable after
// program startup (each command registers its formats with explicit
// Register calls before any reader or writer is constructed), so the one piece of shared mutable
// state in the whole core is written once and read concurrently-safely
// ever after.
type Registry[T any] struct {
	mu      sync.RWMutex
	byToken map[string]*Format[T]
	order   []string // registration order; RegisteredTokens sorts instead of using it
}

// NewRegistry creates an empty Registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{byToken: make(map[string]*Format[T])}
}

// Register adds a Format, indexing it under every token it lists. A nil
// NewReader/NewWriter is replaced with one that always returns
// ErrUnsupportedDirection, so callers never need a nil check.
func (r *Registry[T]) Register(f *Format[T]) {
	if f.NewReader == nil {
		f.NewReader = unsupportedReader[T]
	}
	if f.NewWriter == nil {
		f.NewWriter = unsupportedWriter[T]
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range f.Tokens {
		token = strings.ToLower(token)
		if _, exists := r.byToken[token]; !exists {
			r.order = append(r.order, token)
		}
		r.byToken[token] = f
	}
}

// Lookup finds the Format registered for token (case-insensitive), or
// reports ok=false if no format answers to it.
func (r *Registry[T]) Lookup(token string) (*Format[T], bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byToken[strings.ToLower(token)]
	return f, ok
}

// RegisteredTokens returns every registered token, sorted.
func (r *Registry[T]) RegisteredTokens() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tokens := make([]string, 0, len(r.byToken))
	for token := range r.byToken {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)
	return tokens
}

// NewReaderForExtension opens a reader for the format registered under
// ext. It returns a "format '<ext>' is not supported" error if ext isn't
// registered, or the format's own ErrUnsupportedDirection if it has no
// reader.
func (r *Registry[T]) NewReaderForExtension(ext string, stream io.Reader) (Reader[T], error) {
	f, ok := r.Lookup(ext)
	if !ok {
		return nil, &unknownFormatError{token: ext}
	}
	return f.NewReader(stream)
}

// NewWriterForExtension opens a writer for the format registered under
// ext.
func (r *Registry[T]) NewWriterForExtension(ext string, stream io.Writer) (Writer[T], error) {
	f, ok := r.Lookup(ext)
	if !ok {
		return nil, &unknownFormatError{token: ext}
	}
	return f.NewWriter(stream)
}

type unknownFormatError struct{ token string }

func (e *unknownFormatError) Error() string {
	return "format '" + e.token + "' is not supported"
}
