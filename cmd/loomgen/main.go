// Command loomgen emits a typed getter/setter wrapper struct for a
// schema.Descriptor. Typed-schema derivation sits entirely outside the
// query/mutation runtime path, the way ent's code generator produces
// generated/*.go next to hand-written schema/*.go, except here the
// output is a thin convenience wrapper around document.Entity instead
// of a full SQL-backed client.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"

	"github.com/dave/jennifer/jen"

	"github.com/loomdb/loom/schema"
)

// Generator renders one wrapper file per descriptor. main builds each
// descriptor from a command-line collection name alone, so it declares no
// fields and its wrapper carries only New<Name> and Build. Mirrors
// JenniferGenerator (compiler/gen/generate.go) shape:
// a small struct holding the package name and output directory, a
// newFile helper that stamps the "generated, do not edit" header, and a
// writeFile helper that renders straight to disk.
type Generator struct {
	pkg    string
	outDir string
}

func main() {
	var pkg, outDir string
	flag.StringVar(&pkg, "package", "loomgen", "package name for generated wrappers")
	flag.StringVar(&outDir, "out", "./loomgen", "output directory")
	flag.Parse()

	descriptors := flag.Args()
	if len(descriptors) == 0 {
		log.Fatal("loomgen: pass one or more collection names")
	}

	g := &Generator{pkg: pkg, outDir: outDir}
	for _, name := range descriptors {
		desc := schema.New(name).Descriptor()
		if err := g.generate(desc); err != nil {
			log.Fatalf("loomgen: %s: %v", name, err)
		}
	}
}

func (g *Generator) newFile() *jen.File {
	f := jen.NewFile(g.pkg)
	f.HeaderComment("Code generated by loomgen. DO NOT EDIT.")
	return f
}

func (g *Generator) writeFile(f *jen.File, filename string) error {
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(g.outDir, filename))
	if err != nil {
		return err
	}
	defer out.Close()
	return f.Render(out)
}

// generate emits a <Name> struct with one typed getter/setter pair per
// declared field, each getter returning the field's Go-native type (not a
// document.Value) and each setter writing through to the underlying
// map[string]any the engine's Create/Update accept. The wrapper never
// bypasses validation: Build() only returns the accumulated map, which the
// caller passes to Collection.Create/Update.
func (g *Generator) generate(desc *schema.Descriptor) error {
	typeName := exportedName(desc.Name)
	f := g.newFile()

	fields := make([]*schema.Field, 0, len(desc.Fields))
	for _, fd := range desc.Fields {
		fields = append(fields, fd)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i].Name < fields[j].Name })

	f.Type().Id(typeName).Struct(
		jen.Id("data").Map(jen.String()).Any(),
	)

	f.Func().Id("New" + typeName).Params().Op("*").Id(typeName).Block(
		jen.Return(jen.Op("&").Id(typeName).Values(jen.Dict{
			jen.Id("data"): jen.Map(jen.String()).Any().Values(),
		})),
	)

	for _, fd := range fields {
		goType := loomgenGoType(fd)
		exported := exportedName(fd.Name)

		f.Func().Params(jen.Id("w").Op("*").Id(typeName)).Id(exported).Params().Params(goType).Block(
			jen.List(jen.Id("v"), jen.Id("_")).Op(":=").Id("w").Dot("data").Index(jen.Lit(fd.Name)).Assert(goType),
			jen.Return(jen.Id("v")),
		)

		f.Func().Params(jen.Id("w").Op("*").Id(typeName)).Id("Set"+exported).Params(jen.Id("v").Add(goType)).Op("*").Id(typeName).Block(
			jen.Id("w").Dot("data").Index(jen.Lit(fd.Name)).Op("=").Id("v"),
			jen.Return(jen.Id("w")),
		)
	}

	f.Func().Params(jen.Id("w").Op("*").Id(typeName)).Id("Build").Params().Map(jen.String()).Any().Block(
		jen.Return(jen.Id("w").Dot("data")),
	)

	return g.writeFile(f, fmt.Sprintf("%s.go", desc.Name))
}

func loomgenGoType(fd *schema.Field) jen.Code {
	switch fd.Type {
	case schema.TypeString:
		return jen.String()
	case schema.TypeNumber:
		return jen.Float64()
	case schema.TypeBool:
		return jen.Bool()
	case schema.TypeArray:
		return jen.Index().Any()
	case schema.TypeRecord:
		return jen.Map(jen.String()).Any()
	default:
		return jen.Any()
	}
}

func exportedName(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - ('a' - 'A')
	}
	return string(r)
}
