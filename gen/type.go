package gen

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/strixdb/strix/schema"
)

// ColumnKind is the value kind of a generated column, selecting which
// generic field type the predicate accessor uses.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInt
	KindBool
	KindTime
	KindUUID
)

// Column describes one table column of a generated model package.
type Column struct {
	Name string
	Kind ColumnKind
}

// Type is the code-generation descriptor of one model: its identity, key
// kind, columns, and associations. It carries everything needed to emit the
// model's accessor package.
type Type struct {
	Name         string
	Table        string
	IDKind       schema.KeyKind
	Columns      []Column
	Associations []schema.Association
}

// PackageDir returns the directory (and package) name for the generated
// files, the lowercased model name.
func (t *Type) PackageDir() string {
	return strings.ToLower(t.Name)
}

// FileName returns the generated file path relative to the target directory.
func (t *Type) FileName() string {
	return t.PackageDir() + "/" + t.PackageDir() + ".go"
}

// Validate reports descriptor problems before any file is emitted.
func (t *Type) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("gen: type with empty name")
	}
	if t.Table == "" {
		return fmt.Errorf("gen: type %s has no table", t.Name)
	}
	seen := map[string]struct{}{}
	for _, c := range t.Columns {
		if c.Name == "" {
			return fmt.Errorf("gen: type %s has a column with empty name", t.Name)
		}
		if _, ok := seen[c.Name]; ok {
			return fmt.Errorf("gen: type %s declares column %q twice", t.Name, c.Name)
		}
		seen[c.Name] = struct{}{}
	}
	for _, a := range t.Associations {
		if a.Name == "" || a.Target == "" {
			return fmt.Errorf("gen: type %s has an incomplete association", t.Name)
		}
		if a.Kind == schema.HasManyThrough && a.Through == "" {
			return fmt.Errorf("gen: association %s.%s is missing its through table", t.Name, a.Name)
		}
	}
	return nil
}

// Pascal converts a snake_case identifier into PascalCase, so the column
// "created_at" yields the accessor name "CreatedAt".
func Pascal(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == '-' || r == ' '
	})
	var b strings.Builder
	for _, p := range parts {
		r := []rune(p)
		r[0] = unicode.ToUpper(r[0])
		b.WriteString(string(r))
	}
	return b.String()
}

// Graph is the full generation input: the shared configuration and the set
// of model descriptors.
type Graph struct {
	Config *Config
	Types  []*Type
}

// Config holds the generation target settings.
type Config struct {
	// Target is the output directory; generated packages are created as
	// subdirectories of it.
	Target string
	// Workers bounds generation parallelism. Zero means GOMAXPROCS.
	Workers int
}

// NewGraph validates the descriptors and returns a generation graph.
func NewGraph(cfg *Config, types ...*Type) (*Graph, error) {
	if cfg == nil || cfg.Target == "" {
		return nil, fmt.Errorf("gen: missing target directory")
	}
	names := map[string]struct{}{}
	for _, t := range types {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		if _, ok := names[t.Name]; ok {
			return nil, fmt.Errorf("gen: duplicate type %s", t.Name)
		}
		names[t.Name] = struct{}{}
	}
	return &Graph{Config: cfg, Types: types}, nil
}
