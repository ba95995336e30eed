package cypher

import (
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"

	"github.com/zero-day-ai/ekg/ekgerr"
	"github.com/zero-day-ai/ekg/pattern"
)

// Mode selects how a template is executed.
type Mode int

const (
	// ModeSingle runs the query once in its own transaction.
	ModeSingle Mode = iota
	// ModeCommit repeats the statement, each run limited to $limit rows,
	// until it reports zero updates.
	ModeCommit
	// ModeIterate runs the action once per row produced by the source,
	// committing every $batchSize rows.
	ModeIterate
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeCommit:
		return "commit"
	case ModeIterate:
		return "iterate"
	default:
		return "single"
	}
}

const (
	// LimitParam is bound by the batch engine for commit-mode templates.
	LimitParam = "limit"
	// BatchSizeParam is bound by the batch engine for iterate-mode templates.
	BatchSizeParam = "batchSize"
)

// Template is a compiled query with all structural placeholders resolved.
// Only runtime parameters remain.
type Template struct {
	// Name identifies the template in logs and errors
	Name string
	Mode Mode
	// Query is the single query, the commit statement or the iterate action
	Query string
	// Source is the row-producing query of an iterate template
	Source string
	// Substitutions are the structural values already baked into Query and
	// Source, keyed by placeholder name
	Substitutions map[string]string
	// Params are bound to every execution
	Params map[string]any
}

// WithParams returns a copy of the template with extra parameters bound.
// Extra values override existing ones.
func (t Template) WithParams(extra map[string]any) Template {
	params := make(map[string]any, len(t.Params)+len(extra))
	maps.Copy(params, t.Params)
	maps.Copy(params, extra)
	t.Params = params
	return t
}

// ParamNames returns the sorted runtime parameter names referenced by the
// template text, excluding the engine-bound limit and batchSize.
func (t Template) ParamNames() []string {
	seen := map[string]bool{}
	for _, text := range []string{t.Source, t.Query} {
		for _, m := range paramRe.FindAllStringSubmatch(stripStrings(text), -1) {
			if m[1] != LimitParam && m[1] != BatchSizeParam {
				seen[m[1]] = true
			}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// String renders the template for display.
func (t Template) String() string {
	if t.Mode == ModeIterate {
		return fmt.Sprintf("// %s (%s)\n// source:\n%s\n// action:\n%s", t.Name, t.Mode, t.Source, t.Query)
	}
	return fmt.Sprintf("// %s (%s)\n%s", t.Name, t.Mode, t.Query)
}

var (
	placeholderRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)
	paramRe       = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// Builder assembles a Template. Errors are sticky and reported by Build.
type Builder struct {
	name   string
	mode   Mode
	query  string
	source string
	subs   map[string]string
	params map[string]any
	err    error
}

// New starts a single-mode template.
func New(name, query string) *Builder {
	return &Builder{name: name, mode: ModeSingle, query: query, subs: map[string]string{}, params: map[string]any{}}
}

// NewCommit starts a commit-mode template. The statement must limit its rows
// with $limit and return a count of updated rows.
func NewCommit(name, statement string) *Builder {
	b := New(name, statement)
	b.mode = ModeCommit
	return b
}

// NewIterate starts an iterate-mode template from a row source and an action
// run per row.
func NewIterate(name, source, action string) *Builder {
	b := New(name, action)
	b.mode = ModeIterate
	b.source = source
	return b
}

func (b *Builder) fail(name, format string, args ...any) *Builder {
	if b.err == nil {
		b.err = &ekgerr.TemplateCompilationError{Constructor: b.name, Name: name, Reason: fmt.Sprintf(format, args...)}
	}
	return b
}

// Identifier substitutes ${key} with a single validated identifier (a label,
// relationship type, variable or property key).
func (b *Builder) Identifier(key, value string) *Builder {
	if !pattern.IsIdentifier(value) {
		return b.fail(value, "invalid identifier for ${%s}", key)
	}
	b.subs[key] = value
	return b
}

// Labels substitutes ${key} with "A:B:C". At least one label is required.
func (b *Builder) Labels(key string, labels ...string) *Builder {
	if len(labels) == 0 {
		return b.fail(key, "no labels for placeholder")
	}
	for _, l := range labels {
		if !pattern.IsIdentifier(l) {
			return b.fail(l, "invalid label for ${%s}", key)
		}
	}
	b.subs[key] = strings.Join(labels, ":")
	return b
}

// Fragment substitutes ${key} with Cypher text produced by this module's
// renderers. It must never carry caller-supplied values.
func (b *Builder) Fragment(key, text string) *Builder {
	b.subs[key] = text
	return b
}

// Query replaces the query text (the action of an iterate template). It lets
// callers register substitutions while assembling the text.
func (b *Builder) Query(text string) *Builder {
	b.query = text
	return b
}

// Bind sets a runtime parameter.
func (b *Builder) Bind(key string, value any) *Builder {
	if key == LimitParam || key == BatchSizeParam {
		return b.fail(key, "reserved parameter")
	}
	b.params[key] = value
	return b
}

// Build resolves all placeholders. Every ${name} must have been substituted;
// substitutions are applied in one pass so substituted text is never
// rescanned.
func (b *Builder) Build() (Template, error) {
	if b.err != nil {
		return Template{}, b.err
	}
	query, err := b.substitute(b.query)
	if err != nil {
		return Template{}, err
	}
	source, err := b.substitute(b.source)
	if err != nil {
		return Template{}, err
	}
	if b.mode == ModeCommit && !slices.Contains(paramNames(query), LimitParam) {
		return Template{}, &ekgerr.TemplateCompilationError{Constructor: b.name, Reason: "commit statement does not reference $limit"}
	}
	if b.mode == ModeIterate && strings.TrimSpace(source) == "" {
		return Template{}, &ekgerr.TemplateCompilationError{Constructor: b.name, Reason: "iterate template has no source"}
	}
	return Template{
		Name:          b.name,
		Mode:          b.mode,
		Query:         query,
		Source:        source,
		Substitutions: maps.Clone(b.subs),
		Params:        maps.Clone(b.params),
	}, nil
}

func (b *Builder) substitute(text string) (string, error) {
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		if _, ok := b.subs[m[1]]; !ok {
			return "", &ekgerr.TemplateCompilationError{Constructor: b.name, Name: m[1], Reason: "unresolved placeholder"}
		}
	}
	return placeholderRe.ReplaceAllStringFunc(text, func(ph string) string {
		return b.subs[ph[2:len(ph)-1]]
	}), nil
}

func paramNames(text string) []string {
	var out []string
	for _, m := range paramRe.FindAllStringSubmatch(stripStrings(text), -1) {
		out = append(out, m[1])
	}
	return out
}

// stripStrings blanks out quoted string literals so "$x" inside a literal is
// not mistaken for a parameter.
func stripStrings(s string) string {
	var (
		b     strings.Builder
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == '\\' && i+1 < len(s) {
				i++
			} else if c == quote {
				quote = 0
			}
			b.WriteByte(' ')
		case c == '\'' || c == '"':
			quote = c
			b.WriteByte(' ')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
