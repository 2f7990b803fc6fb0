package importer

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/cleared-dev/spendwise/internal/model"
)

// ErrUnknownFormat is returned when no parser is registered for a format name.
var ErrUnknownFormat = errors.New("unknown import format")

// Parser converts raw ledger text into TransactionRows.
//
// A Parser never fails on a malformed row; it degrades the row's
// ParseConfidence instead. Errors are reserved for unreadable input.
type Parser interface {
	Parse(r io.Reader) ([]model.TransactionRow, error)
	Format() string
}

// Registry holds named parsers.
type Registry struct {
	parsers map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{parsers: make(map[string]Parser)}
}

// Register adds a parser. Panics on duplicate format.
func (r *Registry) Register(p Parser) {
	key := strings.ToLower(p.Format())
	if _, ok := r.parsers[key]; ok {
		panic("duplicate parser format: " + key)
	}
	r.parsers[key] = p
}

// Get returns the parser for format, or nil.
func (r *Registry) Get(format string) Parser {
	return r.parsers[strings.ToLower(format)]
}

// Lookup is Get with an error for unknown formats.
func (r *Registry) Lookup(format string) (Parser, error) {
	p := r.Get(format)
	if p == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return p, nil
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&DelimitedParser{})
	r.Register(&ChaseParser{})
	r.Register(NewOFXParser())
	return r
}
