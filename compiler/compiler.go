package compiler

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/zero-day-ai/ekg/ekgerr"
	"github.com/zero-day-ai/ekg/pattern"
	"github.com/zero-day-ai/ekg/schema"
)

const (
	// ProcessedMarker is the transient attribute set on records claimed by
	// the running by-record constructor.
	ProcessedMarker = "ekgProcessed"
	// Prevalence links a result to the record it was derived from.
	Prevalence = "PREVALENCE"
	// Reified links a reified node to the endpoints of its relationship.
	Reified = "REIFIED"
	// Observed links an entity to the events it was observed in.
	Observed = "OBSERVED"
	// FromRel and ToRel connect a relation modeled as a node to its endpoints.
	FromRel = "FROM"
	ToRel   = "TO"

	// DefaultTimestamp is the event attribute that orders directly-follows edges.
	DefaultTimestamp = "timestamp"
)

// Compiler compiles constructors of one schema.
type Compiler struct {
	schema    *schema.Schema
	logger    *slog.Logger
	timestamp string
	tieBreak  string
	duration  bool
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithLogger sets the logger used for compile-time diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compiler) {
		c.logger = logger
	}
}

// WithTimestampAttribute sets the event attribute used to order events.
func WithTimestampAttribute(attr string) Option {
	return func(c *Compiler) {
		c.timestamp = attr
	}
}

// WithTieBreak sets an event attribute that orders events with equal
// timestamps before the element id is consulted.
func WithTieBreak(attr string) Option {
	return func(c *Compiler) {
		c.tieBreak = attr
	}
}

// WithDuration makes directly-follows edges carry the difference between the
// endpoints' timestamps when both are numeric or temporal.
func WithDuration(enabled bool) Option {
	return func(c *Compiler) {
		c.duration = enabled
	}
}

// New creates a compiler for s.
func New(s *schema.Schema, opts ...Option) *Compiler {
	c := &Compiler{
		schema:    s,
		logger:    slog.Default(),
		timestamp: DefaultTimestamp,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Schema returns the compiled schema.
func (c *Compiler) Schema() *schema.Schema {
	return c.schema
}

func compileError(id, name, format string, args ...any) error {
	return &ekgerr.TemplateCompilationError{Constructor: id, Name: name, Reason: fmt.Sprintf(format, args...)}
}

// builtinNamespaces are dotted function prefixes that look like attribute
// references to the pattern scanner.
var builtinNamespaces = map[string]bool{
	"apoc": true, "date": true, "datetime": true, "localdatetime": true,
	"localtime": true, "time": true, "duration": true, "point": true, "db": true,
}

// checkRefs fails when a reference names a variable that is not bound.
func checkRefs(id string, refs []string, bound ...string) error {
	for _, r := range refs {
		if !slices.Contains(bound, r) && !builtinNamespaces[r] {
			return compileError(id, r, "reference to unbound name")
		}
	}
	return nil
}

// checkDistinct fails when two patterns share an alias.
func checkDistinct(id string, aliases ...string) error {
	seen := map[string]bool{}
	for _, a := range aliases {
		if seen[a] {
			return compileError(id, a, "alias used by more than one pattern")
		}
		seen[a] = true
	}
	return nil
}

func propertyRefs(props []pattern.Property) []string {
	var out []string
	for _, p := range props {
		for _, r := range p.Value.References() {
			if !slices.Contains(out, r) {
				out = append(out, r)
			}
		}
	}
	return out
}

// rebind rewrites "from.attr" references in a condition to "to.attr".
func rebind(cond, from, to string) string {
	if from == to {
		return cond
	}
	re := regexp.MustCompile(`(^|[^A-Za-z0-9_$.])` + regexp.QuoteMeta(from) + `\.`)
	return re.ReplaceAllString(cond, "${1}"+to+".")
}

// recordFilter returns the conditions selecting unprocessed records: marker
// absent, required attributes present, and the declared and constructor
// conditions.
func (c *Compiler) recordFilter(id string, rec pattern.RecordNode, uses ...pattern.Node) ([]string, error) {
	alias := rec.Alias()
	conds := []string{fmt.Sprintf("%s.%s IS NULL", alias, ProcessedMarker)}

	var attrs []string
	add := func(a string) {
		if !slices.Contains(attrs, a) {
			attrs = append(attrs, a)
		}
	}
	decl, declared := c.schema.RecordDeclaration(rec.RecordTypes)
	if declared {
		for _, a := range decl.RequiredAttributes() {
			add(a)
		}
	}
	for _, a := range rec.RequiredAttributes() {
		add(a)
	}
	for _, n := range uses {
		for _, p := range n.Required() {
			if p.Value.Kind == pattern.ValueReference && p.Value.Node == alias {
				add(p.Value.Attribute)
			}
		}
	}
	for _, a := range attrs {
		conds = append(conds, fmt.Sprintf("%s.%s IS NOT NULL", alias, a))
	}

	if declared && decl.Where != "" {
		conds = append(conds, "("+rebind(decl.Where, decl.Alias(), alias)+")")
	}
	if rec.Where != "" {
		if err := checkRefs(id, rec.References()); err != nil {
			return nil, err
		}
		conds = append(conds, "("+rec.Where+")")
	}
	return conds, nil
}

func and(conds []string) string {
	return strings.Join(conds, " AND ")
}

func lines(ls ...string) string {
	return strings.Join(ls, "\n")
}
