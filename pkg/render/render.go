package render

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/weftworks/loom/internal/logging"
	"github.com/weftworks/loom/pkg/domain"
)

// Renderer fills templates with values from a context-data map.
//
// Rendering never fails from the caller's point of view: any error is
// logged and the original, unrendered template text is returned, so a
// template mistake can never abort a workflow step.
type Renderer struct {
	logger *slog.Logger
}

// Option configures the Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used to report rendering failures.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Renderer) {
		r.logger = logger
	}
}

// New creates a Renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render interpolates tmpl against data. On any parse or execution error the
// original template text is returned unchanged.
func (r *Renderer) Render(tmpl string, data map[string]any) string {
	if !strings.Contains(tmpl, "{{") {
		return tmpl
	}

	t, err := template.New("prompt").Funcs(r.funcs(data)).Option("missingkey=error").Parse(tmpl)
	if err != nil {
		r.logger.Warn("template parse failed, using literal text", "err", err)
		return tmpl
	}

	var b strings.Builder
	if err := t.Execute(&b, data); err != nil {
		r.logger.Warn("template execution failed, using literal text", "err", err)
		return tmpl
	}
	return b.String()
}

// RenderMessages interpolates each message's content against data.
func (r *Renderer) RenderMessages(msgs []domain.Message, data map[string]any) []domain.Message {
	out := make([]domain.Message, len(msgs))
	for i, m := range msgs {
		out[i] = domain.Message{Role: m.Role, Content: r.Render(m.Content, data)}
	}
	return out
}

// funcs builds the helper set. Helpers close over the full data map so call
// sites can dump or filter the context without hand-written formatting.
func (r *Renderer) funcs(data map[string]any) template.FuncMap {
	return template.FuncMap{
		// {{json}} dumps the whole context; {{json .key}} a sub-object.
		"json": func(v ...any) (string, error) {
			target := any(data)
			if len(v) > 0 {
				target = v[0]
			}
			out, err := json.MarshalIndent(target, "", "  ")
			if err != nil {
				return "", err
			}
			return string(out), nil
		},
		// {{yaml}} dumps the whole context; {{yaml .key}} a sub-object.
		"yaml": func(v ...any) (string, error) {
			target := any(data)
			if len(v) > 0 {
				target = v[0]
			}
			out, err := yaml.Marshal(target)
			if err != nil {
				return "", err
			}
			return strings.TrimRight(string(out), "\n"), nil
		},
		// {{outline "pattern"}} renders every matching (key, value) pair as
		// a nested outline: arrays numbered, maps bulleted with bold keys,
		// primitives inlined.
		"outline": func(pattern string) (string, error) {
			return Outline(data, pattern)
		},
	}
}

// Outline selects the entries of data whose keys match pattern and renders
// them as a nested bulleted/numbered outline.
func Outline(data map[string]any, pattern string) (string, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return "", fmt.Errorf("invalid outline pattern %q: %w", pattern, err)
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		if re.MatchString(k) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		writeEntry(&b, k, data[k], 0)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func writeEntry(b *strings.Builder, key string, value any, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := value.(type) {
	case map[string]any:
		fmt.Fprintf(b, "%s- **%s**:\n", indent, key)
		writeMap(b, v, depth+1)
	case []any:
		fmt.Fprintf(b, "%s- **%s**:\n", indent, key)
		writeList(b, v, depth+1)
	default:
		fmt.Fprintf(b, "%s- **%s**: %v\n", indent, key, v)
	}
}

func writeMap(b *strings.Builder, m map[string]any, depth int) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeEntry(b, k, m[k], depth)
	}
}

func writeList(b *strings.Builder, list []any, depth int) {
	indent := strings.Repeat("  ", depth)
	for i, item := range list {
		switch v := item.(type) {
		case map[string]any:
			fmt.Fprintf(b, "%s%d.\n", indent, i+1)
			writeMap(b, v, depth+1)
		case []any:
			fmt.Fprintf(b, "%s%d.\n", indent, i+1)
			writeList(b, v, depth+1)
		default:
			fmt.Fprintf(b, "%s%d. %v\n", indent, i+1, v)
		}
	}
}
