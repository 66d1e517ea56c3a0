// Package fields is the static field catalog: field number -> target profile
// kind, column, and write constraints. It never touches storage.
package fields

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"masterdata/internal/masterdata/models"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Definition describes one catalog field.
type Definition struct {
	No           models.FieldNo
	Key          string
	Kind         models.ProfileKind
	Column       string
	Repeating    bool
	DocumentOnly bool
}

// Mapped reports whether the field has a storage column.
func (d Definition) Mapped() bool {
	return d.Column != ""
}

// Registry is an immutable lookup over the catalog.
type Registry struct {
	byNo   map[models.FieldNo]Definition
	byKey  map[string]Definition
	sorted []Definition
}

type catalogFile struct {
	Fields []catalogEntry `yaml:"fields"`
}

type catalogEntry struct {
	No           int    `yaml:"no"`
	Key          string `yaml:"key"`
	Kind         string `yaml:"kind"`
	Column       string `yaml:"column"`
	DocumentOnly bool   `yaml:"document_only"`
}

var defaultRegistry = sync.OnceValues(func() (*Registry, error) {
	return Parse(catalogYAML)
})

// Default returns the process-wide registry built from the embedded catalog.
// It panics if the embedded catalog is invalid; the catalog test guards that.
func Default() *Registry {
	r, err := defaultRegistry()
	if err != nil {
		panic(fmt.Sprintf("fields: invalid embedded catalog: %v", err))
	}
	return r
}

// Parse builds a registry from a YAML catalog document.
func Parse(data []byte) (*Registry, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decode field catalog: %w", err)
	}
	defs := make([]Definition, 0, len(file.Fields))
	for _, e := range file.Fields {
		kind, err := models.ParseProfileKind(e.Kind)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", e.No, err)
		}
		defs = append(defs, Definition{
			No:           models.FieldNo(e.No),
			Key:          e.Key,
			Kind:         kind,
			Column:       e.Column,
			Repeating:    kind.Repeating(),
			DocumentOnly: e.DocumentOnly,
		})
	}
	return New(defs...)
}

// New builds a registry from definitions, enforcing unique numbers, keys and
// columns, and that every column belongs to its kind.
func New(defs ...Definition) (*Registry, error) {
	r := &Registry{
		byNo:  make(map[models.FieldNo]Definition, len(defs)),
		byKey: make(map[string]Definition, len(defs)),
	}
	columns := make(map[string]models.FieldNo)
	for _, d := range defs {
		if d.No <= 0 {
			return nil, fmt.Errorf("field %q: number must be positive", d.Key)
		}
		if d.Key == "" {
			return nil, fmt.Errorf("field %d: key is required", d.No)
		}
		if _, dup := r.byNo[d.No]; dup {
			return nil, fmt.Errorf("field %d: duplicate number", d.No)
		}
		if _, dup := r.byKey[d.Key]; dup {
			return nil, fmt.Errorf("field %d: duplicate key %q", d.No, d.Key)
		}
		if d.Repeating != d.Kind.Repeating() {
			return nil, fmt.Errorf("field %d: repeating flag disagrees with kind %s", d.No, d.Kind)
		}
		if d.Mapped() {
			if !d.Kind.HasColumn(d.Column) {
				return nil, fmt.Errorf("field %d: column %q is not part of kind %s", d.No, d.Column, d.Kind)
			}
			slot := string(d.Kind) + "." + d.Column
			if other, dup := columns[slot]; dup {
				return nil, fmt.Errorf("field %d: column %s already mapped by field %d", d.No, slot, other)
			}
			columns[slot] = d.No
		} else if d.DocumentOnly {
			return nil, fmt.Errorf("field %d: document-only fields need a column", d.No)
		}
		r.byNo[d.No] = d
		r.byKey[d.Key] = d
		r.sorted = append(r.sorted, d)
	}
	sort.Slice(r.sorted, func(i, j int) bool { return r.sorted[i].No < r.sorted[j].No })
	return r, nil
}

// Lookup returns the definition of no, or ErrUnknownField.
func (r *Registry) Lookup(no models.FieldNo) (Definition, error) {
	d, ok := r.byNo[no]
	if !ok {
		return Definition{}, fmt.Errorf("field %d: %w", no, models.ErrUnknownField)
	}
	return d, nil
}

// ByKey returns the definition with the given key.
func (r *Registry) ByKey(key string) (Definition, bool) {
	d, ok := r.byKey[key]
	return d, ok
}

// MustKey is ByKey for catalog keys known at compile time.
func (r *Registry) MustKey(key string) Definition {
	d, ok := r.byKey[key]
	if !ok {
		panic(fmt.Sprintf("fields: no catalog entry for key %q", key))
	}
	return d
}

// ByKind returns the mapped definitions routed to kind, ordered by number.
func (r *Registry) ByKind(kind models.ProfileKind) []Definition {
	var out []Definition
	for _, d := range r.sorted {
		if d.Kind == kind && d.Mapped() {
			out = append(out, d)
		}
	}
	return out
}

// ByColumn returns the field mapped to kind.column.
func (r *Registry) ByColumn(kind models.ProfileKind, column string) (Definition, bool) {
	for _, d := range r.sorted {
		if d.Kind == kind && d.Column == column {
			return d, true
		}
	}
	return Definition{}, false
}

// All returns every definition ordered by number.
func (r *Registry) All() []Definition {
	return append([]Definition(nil), r.sorted...)
}
