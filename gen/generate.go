// Package gen emits per-model accessor packages: column constants, typed
// field predicates over the expression algebra, and a Model descriptor
// ready for client registration. Files are built with jennifer and written
// in parallel.
package gen

import (
	"context"

	"github.com/dave/jennifer/jen"

	"github.com/strixdb/strix/schema"
)

const (
	sqlPkg    = "github.com/strixdb/strix/dialect/sql"
	schemaPkg = "github.com/strixdb/strix/schema"
	uuidPkg   = "github.com/google/uuid"
)

// Generate emits one package per type under the graph's target directory.
func Generate(ctx context.Context, g *Graph) error {
	w := NewWriter(g)
	return w.WriteAll(ctx)
}

// genType builds the single source file of one model package.
func genType(t *Type) *jen.File {
	f := jen.NewFile(t.PackageDir())
	f.HeaderComment("Code generated by strixgen. DO NOT EDIT.")

	genConstants(f, t)
	genPredicates(f, t)
	genModel(f, t)
	return f
}

// genConstants emits the table name and one Field* constant per column.
func genConstants(f *jen.File, t *Type) {
	f.Commentf("Table holds the table name of the %s model.", t.Name)
	f.Const().Id("Table").Op("=").Lit(t.Table)

	for _, c := range t.Columns {
		name := "Field" + Pascal(c.Name)
		f.Commentf("%s holds the %q column name.", name, c.Name)
		f.Const().Id(name).Op("=").Lit(c.Name)
	}
}

// genPredicates emits one typed predicate value per column, e.g.
//
//	var Email = sql.StringField(FieldEmail)
func genPredicates(f *jen.File, t *Type) {
	for _, c := range t.Columns {
		varName := Pascal(c.Name)
		constName := "Field" + varName
		// The column accessor would collide with its own constant when the
		// column is literally named "table"; suffix those.
		if varName == "Table" || varName == "Model" {
			varName += "Column"
		}
		f.Commentf("%s is the typed predicate accessor for the %q column.", varName, c.Name)
		v := f.Var().Id(varName).Op("=")
		switch c.Kind {
		case KindInt:
			v.Qual(sqlPkg, "IntField").Call(jen.Id(constName))
		case KindBool:
			v.Qual(sqlPkg, "BoolField").Call(jen.Id(constName))
		case KindTime:
			v.Qual(sqlPkg, "TimeField").Call(jen.Id(constName))
		case KindUUID:
			v.Qual(sqlPkg, "UUIDField").Types(jen.Qual(uuidPkg, "UUID")).Call(jen.Id(constName))
		default:
			v.Qual(sqlPkg, "StringField").Call(jen.Id(constName))
		}
	}
}

// genModel emits the Model constructor used at registration time.
func genModel(f *jen.File, t *Type) {
	idKind := "KeySerial"
	if t.IDKind == schema.KeyUUID {
		idKind = "KeyUUID"
	}
	assocs := make([]jen.Code, 0, len(t.Associations))
	for _, a := range t.Associations {
		d := jen.Dict{
			jen.Id("Name"):   jen.Lit(a.Name),
			jen.Id("Kind"):   jen.Qual(schemaPkg, kindName(a.Kind)),
			jen.Id("Target"): jen.Lit(a.Target),
		}
		if a.ForeignKey != "" {
			d[jen.Id("ForeignKey")] = jen.Lit(a.ForeignKey)
		}
		if a.Through != "" {
			d[jen.Id("Through")] = jen.Lit(a.Through)
		}
		if a.OwnKey != "" {
			d[jen.Id("OwnKey")] = jen.Lit(a.OwnKey)
		}
		assocs = append(assocs, jen.Values(d))
	}

	dict := jen.Dict{
		jen.Id("Name"):   jen.Lit(t.Name),
		jen.Id("Table"):  jen.Id("Table"),
		jen.Id("IDKind"): jen.Qual(schemaPkg, idKind),
	}
	if len(assocs) > 0 {
		dict[jen.Id("Associations")] = jen.Index().Qual(schemaPkg, "Association").Values(assocs...)
	}

	f.Commentf("Model returns the %s model descriptor for client registration.", t.Name)
	f.Func().Id("Model").Params().Op("*").Qual(schemaPkg, "Model").Block(
		jen.Return(jen.Op("&").Qual(schemaPkg, "Model").Values(dict)),
	)
}

func kindName(k schema.Kind) string {
	switch k {
	case schema.HasOne:
		return "HasOne"
	case schema.HasMany:
		return "HasMany"
	case schema.HasManyThrough:
		return "HasManyThrough"
	default:
		return "BelongsTo"
	}
}
