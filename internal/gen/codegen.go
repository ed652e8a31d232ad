package gen

import (
	"bytes"
	"fmt"
	"go/token"
	"go/types"
	"sort"
	"strings"
	"text/template"
	"unicode"

	"golang.org/x/tools/imports"

	"github.com/funvibe/emitter/internal/config"
	"github.com/funvibe/emitter/pkg/descriptor"
)

// CodeGenerator renders dispatcher source files.
type CodeGenerator struct {
	tmpl *template.Template
}

// NewCodeGenerator creates a new code generator.
func NewCodeGenerator() *CodeGenerator {
	return &CodeGenerator{tmpl: template.Must(template.New("emitter").Parse(emitterTemplate))}
}

// GeneratedFile represents a generated Go source file.
type GeneratedFile struct {
	// Filename is the output path.
	Filename string

	// Content is the formatted Go source.
	Content []byte
}

// Generate renders the dispatcher for t.
func (cg *CodeGenerator) Generate(t *Target) (*GeneratedFile, error) {
	data := cg.fileData(t)

	var buf bytes.Buffer
	if err := cg.tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", t.Desc.ID(), err)
	}

	filename := t.Filename()
	src, err := imports.Process(filename, buf.Bytes(), &imports.Options{
		Comments:   true,
		TabIndent:  true,
		TabWidth:   8,
		FormatOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w\n%s", filename, err, buf.Bytes())
	}
	return &GeneratedFile{Filename: filename, Content: src}, nil
}

type fileData struct {
	Header      string
	Package     string
	Imports     []importLine
	Declare     bool
	Source      string
	Interface   string
	Type        string
	EmitterName string
	Runtime     string
	Declared    []methodData
	Methods     []methodData
}

type importLine struct {
	Alias string
	Path  string
}

type methodData struct {
	Name   string
	Params string
	Args   string
}

func (cg *CodeGenerator) fileData(t *Target) fileData {
	id := t.Desc.ID()
	typeName := id.GoTypeName()
	data := fileData{
		Header:      config.GeneratedHeader,
		Package:     t.PkgName,
		Declare:     t.Declare,
		Source:      id.Name,
		Interface:   strings.TrimSuffix(typeName, "Emitter"),
		Type:        typeName,
		EmitterName: id.EmitterName(),
	}
	if t.Runtime != "" {
		data.Runtime = t.Runtime + "."
	}

	paths := make([]string, 0, len(t.Imports))
	for path := range t.Imports {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	for _, path := range paths {
		line := importLine{Path: path}
		if name := t.Imports[path]; name != ImportAlias(path) {
			line.Alias = name
		}
		data.Imports = append(data.Imports, line)
	}

	for _, m := range t.Desc.Flatten() {
		data.Methods = append(data.Methods, methodDataOf(m))
	}
	if t.Declare {
		for _, m := range t.Desc.Methods() {
			data.Declared = append(data.Declared, methodDataOf(m))
		}
	}
	return data
}

func methodDataOf(m descriptor.Method) methodData {
	names := paramNames(m)
	params := make([]string, len(m.Params))
	args := make([]string, len(m.Params))
	for i, p := range m.Params {
		typ := p.Type.Expr
		arg := names[i]
		if m.Variadic && i == len(m.Params)-1 {
			typ = "..." + typ
			arg += "..."
		}
		params[i] = names[i] + " " + typ
		args[i] = arg
	}
	return methodData{
		Name:   m.Name,
		Params: strings.Join(params, ", "),
		Args:   strings.Join(args, ", "),
	}
}

// paramNames keeps declared parameter names where possible. Blank, missing
// and clashing names become argN, N being the parameter index.
func paramNames(m descriptor.Method) []string {
	used := map[string]bool{"e": true, "l": true, "listeners": true}
	names := make([]string, len(m.Params))
	for i, p := range m.Params {
		name := p.Name
		if name == "" || name == "_" || used[name] || !isIdentifier(name) || goReservedWords[name] {
			name = fmt.Sprintf("arg%d", i)
		}
		for used[name] {
			name += "_"
		}
		used[name] = true
		names[i] = name
	}
	return names
}

const emitterTemplate = `{{.Header}}

package {{.Package}}

import (
{{- range .Imports}}
	{{if .Alias}}{{.Alias}} {{end}}"{{.Path}}"
{{- end}}
)
{{- if .Declare}}

// {{.Interface}} is the listener interface for the {{.Source}} service.
type {{.Interface}} interface {
{{- range .Declared}}
	{{.Name}}({{.Params}})
{{- end}}
}
{{- end}}

// {{.Type}} forwards every {{.Interface}} call to the listeners in its registry.
type {{.Type}} struct {
	reg *{{.Runtime}}Registry[{{.Interface}}]
}

var _ {{.Interface}} = (*{{.Type}})(nil)

// New{{.Type}} returns a dispatcher that broadcasts to the listeners in reg.
func New{{.Type}}(reg *{{.Runtime}}Registry[{{.Interface}}]) *{{.Type}} {
	return &{{.Type}}{reg: reg}
}
{{- range .Methods}}

func (e *{{$.Type}}) {{.Name}}({{.Params}}) {
	listeners := e.reg.Begin()
	defer e.reg.End()
	for _, l := range listeners {
		l.{{.Name}}({{.Args}})
	}
}
{{- end}}

func init() {
	{{.Runtime}}RegisterCompiled("{{.EmitterName}}", func(reg *{{.Runtime}}Registry[{{.Interface}}]) {{.Interface}} {
		return New{{.Type}}(reg)
	})
}
`

// importSet assigns package names for one generated file. Names never
// clash with each other or with identifiers declared in the package.
type importSet struct {
	self   string
	byPath map[string]string
	taken  map[string]bool
}

func newImportSet(self string, scope *types.Scope) *importSet {
	s := &importSet{
		self:   self,
		byPath: make(map[string]string),
		taken:  make(map[string]bool),
	}
	if scope != nil {
		for _, name := range scope.Names() {
			s.taken[name] = true
		}
	}
	return s
}

// reserve marks names the generated file declares itself.
func (s *importSet) reserve(names ...string) {
	for _, name := range names {
		s.taken[name] = true
	}
}

// runtime returns the name of the emitter runtime package, or "" when
// the file is generated into the runtime package itself.
func (s *importSet) runtime() string {
	if s.self == config.RuntimeImportPath {
		return ""
	}
	return s.name(config.RuntimeImportPath, config.RuntimePackageName)
}

// name returns the name used for path, assigning one on first use.
func (s *importSet) name(path, preferred string) string {
	if name, ok := s.byPath[path]; ok {
		return name
	}
	base := preferred
	if !isIdentifier(base) || goReservedWords[base] {
		base = ImportAlias(path)
	}
	name := base
	for i := 2; s.taken[name]; i++ {
		name = fmt.Sprintf("%s%d", base, i)
	}
	s.byPath[path] = name
	s.taken[name] = true
	return name
}

// ref returns the type reference for t as spelled inside the file.
func (s *importSet) ref(t types.Type) descriptor.TypeRef {
	var used map[string]string
	expr := types.TypeString(t, func(p *types.Package) string {
		if p.Path() == s.self {
			return ""
		}
		name := s.name(p.Path(), p.Name())
		if used == nil {
			used = make(map[string]string)
		}
		used[p.Path()] = name
		return name
	})
	return descriptor.TypeRef{Expr: expr, Imports: used}
}

// used returns the imports the file for desc needs: the runtime plus every
// package its parameters refer to.
func (s *importSet) used(desc *descriptor.Interface) map[string]string {
	out := desc.Imports()
	if name, ok := s.byPath[config.RuntimeImportPath]; ok {
		out[config.RuntimeImportPath] = name
	}
	return out
}

var goReservedWords = map[string]bool{
	"break": true, "default": true, "func": true, "interface": true, "select": true,
	"case": true, "defer": true, "go": true, "map": true, "struct": true,
	"chan": true, "else": true, "goto": true, "package": true, "switch": true,
	"const": true, "fallthrough": true, "if": true, "range": true, "type": true,
	"continue": true, "for": true, "import": true, "return": true, "var": true,
	// Generated code declares these
	"init": true,
}

// ImportAlias returns a valid Go identifier for an import path.
// Handles hyphens (go-redis → goredis), versioned paths (v9 → parent),
// gopkg.in suffixes (yaml.v3 → yaml) and reserved words (go → pkgGo).
func ImportAlias(pkgPath string) string {
	parts := strings.Split(pkgPath, "/")
	last := parts[len(parts)-1]
	if isMajorVersion(last) && len(parts) > 1 {
		last = parts[len(parts)-2]
	}
	if i := strings.Index(last, ".v"); i > 0 && isMajorVersion(last[i+1:]) {
		last = last[:i]
	}

	alias := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, last)

	if alias == "" || unicode.IsDigit(rune(alias[0])) {
		alias = "pkg" + alias
	}
	if goReservedWords[alias] {
		alias = "pkg" + strings.ToUpper(alias[:1]) + alias[1:]
	}
	return alias
}

func isMajorVersion(s string) bool {
	if len(s) < 2 || s[0] != 'v' {
		return false
	}
	for _, c := range s[1:] {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func isIdentifier(s string) bool {
	return token.IsIdentifier(s)
}
