package templates

import (
	"bytes"
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"
	"text/template"
	"text/template/parse"

	"advisor/pkg/errors"
)

//go:embed assets
var embeddedFS embed.FS

const ext = ".tmpl"

// Origin tells where a template was loaded from.
type Origin string

const (
	OriginEmbedded Origin = "embedded"
	OriginDir      Origin = "dir"
)

// Template is one parsed prompt template.
type Template struct {
	ID     string
	Origin Origin
	Text   string

	// Fields lists the top-level placeholders the template references.
	Fields []string

	parsed *template.Template
}

// Render executes the template. Missing map keys are an error rather than "<no value>".
func (t *Template) Render(data any) (string, error) {
	var buf bytes.Buffer
	if err := t.parsed.Execute(&buf, data); err != nil {
		return "", errors.Wrapf(err, "render template %s", t.ID)
	}
	return buf.String(), nil
}

// Option configures a Registry.
type Option func(*Registry)

// WithAllowedFields restricts the placeholders templates may reference.
// A template using any other top-level field fails to load.
func WithAllowedFields(fields ...string) Option {
	return func(r *Registry) {
		r.allowed = make(map[string]struct{}, len(fields))
		for _, f := range fields {
			r.allowed[f] = struct{}{}
		}
	}
}

// Registry is an immutable set of templates keyed by ID, the slash separated
// path without extension ("stages/profile/system").
type Registry struct {
	templates map[string]*Template
	allowed   map[string]struct{}
}

// NewEmbedded loads the templates compiled into the binary.
func NewEmbedded(opts ...Option) (*Registry, error) {
	r := newRegistry(opts)
	if err := r.loadEmbedded(); err != nil {
		return nil, err
	}
	return r, nil
}

// NewRegistry loads the embedded templates, then every template under dir.
// A file in dir replaces the embedded template with the same ID, so a
// deployment can override one prompt without copying the rest.
func NewRegistry(dir string, opts ...Option) (*Registry, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfig, "prompts dir: %v", err)
	}
	if !info.IsDir() {
		return nil, errors.Wrapf(errors.ErrConfig, "prompts dir %s is not a directory", dir)
	}

	r := newRegistry(opts)
	if err := r.loadEmbedded(); err != nil {
		return nil, err
	}
	if err := r.load(os.DirFS(dir), OriginDir); err != nil {
		return nil, err
	}
	return r, nil
}

// NewFromFS loads only the templates found in fsys.
func NewFromFS(fsys fs.FS, opts ...Option) (*Registry, error) {
	r := newRegistry(opts)
	if err := r.load(fsys, OriginDir); err != nil {
		return nil, err
	}
	return r, nil
}

func newRegistry(opts []Option) *Registry {
	r := &Registry{templates: map[string]*Template{}}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Lookup returns the template with the given ID.
func (r *Registry) Lookup(id string) (*Template, error) {
	tmpl, ok := r.templates[id]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "template %s", id)
	}
	return tmpl, nil
}

// Require checks that every listed template is present.
func (r *Registry) Require(ids ...string) error {
	var missing []string
	for _, id := range ids {
		if _, ok := r.templates[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return errors.Wrapf(errors.ErrNotFound, "missing templates: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Render executes a template by ID.
func (r *Registry) Render(id string, data any) (string, error) {
	tmpl, err := r.Lookup(id)
	if err != nil {
		return "", err
	}
	return tmpl.Render(data)
}

// List returns all template IDs in sorted order.
func (r *Registry) List() []string {
	return r.ids(func(*Template) bool { return true })
}

// Overrides returns the IDs loaded from a prompts directory.
func (r *Registry) Overrides() []string {
	return r.ids(func(t *Template) bool { return t.Origin == OriginDir })
}

func (r *Registry) ids(keep func(*Template) bool) []string {
	ids := make([]string, 0, len(r.templates))
	for id, t := range r.templates {
		if keep(t) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

func (r *Registry) loadEmbedded() error {
	sub, err := fs.Sub(embeddedFS, "assets")
	if err != nil {
		return errors.Wrap(err, "embedded templates")
	}
	return r.load(sub, OriginEmbedded)
}

func (r *Registry) load(fsys fs.FS, origin Origin) error {
	return fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || path.Ext(p) != ext {
			return nil
		}

		content, err := fs.ReadFile(fsys, p)
		if err != nil {
			return errors.Wrapf(err, "read template %s", p)
		}
		tmpl, err := r.parse(strings.TrimSuffix(p, ext), string(content))
		if err != nil {
			return err
		}
		tmpl.Origin = origin
		r.templates[tmpl.ID] = tmpl
		return nil
	})
}

func (r *Registry) parse(id, text string) (*Template, error) {
	parsed, err := template.New(id).
		Option("missingkey=error").
		Funcs(FuncMap()).
		Parse(text)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrConfig, "parse template %s: %v", id, err)
	}

	fields := referencedFields(parsed.Tree)
	if r.allowed != nil {
		for _, f := range fields {
			if _, ok := r.allowed[f]; !ok {
				return nil, errors.Wrapf(errors.ErrConfig, "template %s references unknown placeholder .%s", id, f)
			}
		}
	}

	return &Template{ID: id, Text: text, Fields: fields, parsed: parsed}, nil
}

// referencedFields walks the parse tree and returns the distinct top-level
// field names used against the root data value. Bodies of range and with
// blocks rebind dot, so only their pipelines are inspected.
func referencedFields(tree *parse.Tree) []string {
	if tree == nil || tree.Root == nil {
		return nil
	}

	seen := map[string]struct{}{}
	var walk func(n parse.Node)
	walk = func(n parse.Node) {
		switch node := n.(type) {
		case *parse.ListNode:
			if node == nil {
				return
			}
			for _, child := range node.Nodes {
				walk(child)
			}
		case *parse.ActionNode:
			walk(node.Pipe)
		case *parse.IfNode:
			walk(node.Pipe)
			walk(node.List)
			walk(node.ElseList)
		case *parse.RangeNode:
			walk(node.Pipe)
		case *parse.WithNode:
			walk(node.Pipe)
		case *parse.TemplateNode:
			walk(node.Pipe)
		case *parse.PipeNode:
			if node == nil {
				return
			}
			for _, cmd := range node.Cmds {
				walk(cmd)
			}
		case *parse.CommandNode:
			for _, arg := range node.Args {
				walk(arg)
			}
		case *parse.ChainNode:
			walk(node.Node)
		case *parse.FieldNode:
			if len(node.Ident) > 0 {
				seen[node.Ident[0]] = struct{}{}
			}
		case *parse.VariableNode:
			if len(node.Ident) > 1 && node.Ident[0] == "$" {
				seen[node.Ident[1]] = struct{}{}
			}
		}
	}
	walk(tree.Root)

	fields := make([]string, 0, len(seen))
	for f := range seen {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	return fields
}
