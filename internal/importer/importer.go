package importer

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cleared-dev/recon/internal/model"
)

// Parser converts a bank CSV export into RawTransactions.
// Parsers keep date and amount text as exported; only the sign is
// flipped when needed so that positive means money out.
type Parser interface {
	Parse(r io.Reader) ([]model.RawTransaction, error)
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

// Formats returns the registered format names.
func (r *Registry) Formats() []string {
	out := make([]string, 0, len(r.parsers))
	for k := range r.parsers {
		out = append(out, k)
	}
	return out
}

// DefaultRegistry returns a registry with all built-in parsers.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(&ChaseParser{})
	r.Register(&GenericParser{})
	return r
}

// ParseFile opens path and parses it with p.
func ParseFile(p Parser, path string) ([]model.RawTransaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	txns, err := p.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return txns, nil
}

// flipSign negates a numeric string without parsing it.
func flipSign(s string) string {
	s = strings.TrimSpace(s)
	switch {
	case s == "":
		return s
	case strings.HasPrefix(s, "-"):
		return strings.TrimPrefix(s, "-")
	case strings.HasPrefix(s, "+"):
		return "-" + strings.TrimPrefix(s, "+")
	}
	return "-" + s
}
