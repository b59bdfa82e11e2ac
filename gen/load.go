package gen

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-openapi/inflect"

	"github.com/strixdb/strix/schema"
)

// descriptorFile is the on-disk generation input: a JSON document listing
// model descriptors.
type descriptorFile struct {
	Models []modelDescriptor `json:"models"`
}

type modelDescriptor struct {
	Name         string                  `json:"name"`
	Table        string                  `json:"table,omitempty"`
	ID           string                  `json:"id,omitempty"`
	Columns      []columnDescriptor      `json:"columns"`
	Associations []associationDescriptor `json:"associations,omitempty"`
}

type columnDescriptor struct {
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

type associationDescriptor struct {
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Target     string `json:"target"`
	ForeignKey string `json:"foreign_key,omitempty"`
	Through    string `json:"through,omitempty"`
	OwnKey     string `json:"own_key,omitempty"`
}

// Load reads model descriptors from a JSON file. Omitted tables default to
// the pluralized underscore form of the model name, and an omitted id type
// defaults to a serial key.
func Load(path string) ([]*Type, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("gen: read descriptors: %w", err)
	}
	var file descriptorFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("gen: parse descriptors: %w", err)
	}
	types := make([]*Type, 0, len(file.Models))
	for _, m := range file.Models {
		t, err := m.build()
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}

func (m modelDescriptor) build() (*Type, error) {
	t := &Type{
		Name:  m.Name,
		Table: m.Table,
	}
	if t.Table == "" {
		t.Table = inflect.Tableize(m.Name)
	}
	switch m.ID {
	case "", "serial":
		t.IDKind = schema.KeySerial
	case "uuid":
		t.IDKind = schema.KeyUUID
	default:
		return nil, fmt.Errorf("gen: model %s: unknown id kind %q", m.Name, m.ID)
	}
	for _, c := range m.Columns {
		kind, err := columnKind(c.Type)
		if err != nil {
			return nil, fmt.Errorf("gen: model %s, column %s: %w", m.Name, c.Name, err)
		}
		t.Columns = append(t.Columns, Column{Name: c.Name, Kind: kind})
	}
	for _, a := range m.Associations {
		kind, err := associationKind(a.Kind)
		if err != nil {
			return nil, fmt.Errorf("gen: model %s, association %s: %w", m.Name, a.Name, err)
		}
		t.Associations = append(t.Associations, schema.Association{
			Name:       a.Name,
			Kind:       kind,
			Target:     a.Target,
			ForeignKey: a.ForeignKey,
			Through:    a.Through,
			OwnKey:     a.OwnKey,
		})
	}
	return t, t.Validate()
}

func columnKind(s string) (ColumnKind, error) {
	switch s {
	case "", "string":
		return KindString, nil
	case "int":
		return KindInt, nil
	case "bool":
		return KindBool, nil
	case "time":
		return KindTime, nil
	case "uuid":
		return KindUUID, nil
	}
	return 0, fmt.Errorf("unknown column type %q", s)
}

func associationKind(s string) (schema.Kind, error) {
	switch s {
	case "belongs_to":
		return schema.BelongsTo, nil
	case "has_one":
		return schema.HasOne, nil
	case "has_many":
		return schema.HasMany, nil
	case "has_many_through":
		return schema.HasManyThrough, nil
	}
	return 0, fmt.Errorf("unknown association kind %q", s)
}
