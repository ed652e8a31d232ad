package gen

import (
	"bytes"
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"go/types"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"

	"github.com/funvibe/emitter/internal/config"
	"github.com/funvibe/emitter/pkg/descriptor"
)

// Target is one listener interface to generate a dispatcher for.
type Target struct {
	// Desc is the validated interface.
	Desc *descriptor.Interface

	// PkgPath and PkgName identify the package the generated file joins.
	PkgPath string
	PkgName string

	// Dir is the output directory.
	Dir string

	// Declare is set when the interface does not exist as Go source yet
	// and the generated file must declare it (protobuf services).
	Declare bool

	// Runtime is the name the file uses for the emitter runtime package.
	Runtime string

	// Imports maps every import path the file needs to its name.
	Imports map[string]string

	// Pos is where the interface was declared.
	Pos token.Position
}

// Filename returns the output path of the generated file.
func (t *Target) Filename() string {
	return filepath.Join(t.Dir, t.Desc.ID().FileName())
}

// Inspector loads Go packages and describes their listener interfaces.
type Inspector struct {
	// dir is the working directory for go/packages; module resolution
	// starts there.
	dir    string
	fset   *token.FileSet
	logger *zap.Logger

	// generated holds the files blanked by parseFile, by absolute path.
	mu        sync.Mutex
	generated map[string]bool
}

// NewInspector creates an Inspector that resolves packages from dir.
func NewInspector(dir string, logger *zap.Logger) *Inspector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inspector{dir: dir, fset: token.NewFileSet(), logger: logger, generated: make(map[string]bool)}
}

// Inspect loads the packages named by specs and describes the selected
// interfaces. Interfaces that break the listener contract are reported as
// diagnostics; the error is reserved for packages that cannot be loaded.
func (ins *Inspector) Inspect(specs []PackageSpec) ([]*Target, []Diagnostic, error) {
	var (
		targets []*Target
		diags   []Diagnostic
	)
	for _, spec := range specs {
		pkgs, err := ins.loadPackages(spec.Pkg)
		if err != nil {
			return nil, nil, fmt.Errorf("loading %s: %w", spec.Pkg, err)
		}

		found := make(map[string]bool)
		for _, pkg := range pkgs {
			for _, name := range spec.Interfaces {
				if pkg.Types.Scope().Lookup(name) != nil {
					found[name] = true
				}
			}
			objs, d := ins.selectTypes(pkg, spec.Interfaces)
			diags = append(diags, d...)
			for _, obj := range objs {
				t, d := ins.target(pkg, obj)
				if d != nil {
					diags = append(diags, *d)
					continue
				}
				targets = append(targets, t)
			}
		}
		for _, name := range spec.Interfaces {
			if !found[name] {
				diags = append(diags, Diagnostic{
					Interface: name,
					Message:   fmt.Sprintf("%s: no type %s", spec.Pkg, name),
				})
			}
		}
	}

	sort.Slice(targets, func(i, j int) bool {
		return targets[i].Desc.ID().String() < targets[j].Desc.ID().String()
	})
	SortDiagnostics(diags)
	return targets, diags, nil
}

// loadPackages loads the packages matching pattern using go/packages.
// Files written by emittergen are parsed as empty so that a stale
// dispatcher never hides the interface it was generated from. go list
// still compiles them; its complaints about those files are ignored.
func (ins *Inspector) loadPackages(pattern string) ([]*packages.Package, error) {
	cfg := &packages.Config{
		Mode: packages.NeedName |
			packages.NeedFiles |
			packages.NeedTypes |
			packages.NeedTypesInfo |
			packages.NeedSyntax,
		Dir:       ins.dir,
		Fset:      ins.fset,
		ParseFile: ins.parseFile,
	}

	pkgs, err := packages.Load(cfg, pattern)
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, fmt.Errorf("no packages match %q", pattern)
	}

	var errs []string
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			if e.Kind == packages.TypeError && pkg.Types != nil {
				// Type errors elsewhere in the package do not stop us from
				// reading interface declarations.
				ins.logger.Warn("type error", zap.String("package", pkg.PkgPath), zap.String("error", e.Error()))
				continue
			}
			if e.Kind == packages.ListError && pkg.Types != nil && ins.inGeneratedFiles(pkg, e) {
				ins.logger.Debug("ignoring error in generated file", zap.String("package", pkg.PkgPath), zap.String("error", e.Error()))
				continue
			}
			errs = append(errs, e.Error())
		}
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("package errors:\n  %s", strings.Join(errs, "\n  "))
	}
	return pkgs, nil
}

func (ins *Inspector) parseFile(fset *token.FileSet, filename string, src []byte) (*ast.File, error) {
	f, err := parser.ParseFile(fset, filename, src, parser.AllErrors|parser.ParseComments)
	if err != nil || !bytes.HasPrefix(src, []byte(config.GeneratedHeader)) {
		return f, err
	}
	ins.mu.Lock()
	ins.generated[filepath.Clean(filename)] = true
	ins.mu.Unlock()
	return &ast.File{Package: f.Package, Name: f.Name}, nil
}

// compilerPos matches the "file.go:line:col: " prefix of compiler errors.
var compilerPos = regexp.MustCompile(`(\S+\.go):\d+(?::\d+)?: `)

// inGeneratedFiles reports whether every position e mentions lies in a
// file of pkg that parseFile blanked. Compiler output names files relative
// to wherever go list ran, so they are matched by base name inside the
// package directory.
func (ins *Inspector) inGeneratedFiles(pkg *packages.Package, e packages.Error) bool {
	if len(pkg.GoFiles) == 0 {
		return false
	}
	dir := filepath.Dir(pkg.GoFiles[0])

	var files []string
	if pos := e.Pos; pos != "" && pos != "-" {
		files = append(files, strings.SplitN(pos, ":", 2)[0])
	}
	for _, m := range compilerPos.FindAllStringSubmatch(e.Msg, -1) {
		files = append(files, m[1])
	}
	if len(files) == 0 {
		return false
	}

	ins.mu.Lock()
	defer ins.mu.Unlock()
	for _, file := range files {
		if !ins.generated[filepath.Join(dir, filepath.Base(file))] {
			return false
		}
	}
	return true
}

// selectTypes returns the named types to generate: the listed names, or
// every type whose doc comment carries the listener directive.
func (ins *Inspector) selectTypes(pkg *packages.Package, names []string) ([]*types.TypeName, []Diagnostic) {
	var (
		objs  []*types.TypeName
		diags []Diagnostic
	)
	if len(names) > 0 {
		for _, name := range names {
			obj := pkg.Types.Scope().Lookup(name)
			if obj == nil {
				continue
			}
			tn, ok := obj.(*types.TypeName)
			if !ok {
				diags = append(diags, Diagnostic{
					Pos:       ins.fset.Position(obj.Pos()),
					Interface: pkg.PkgPath + "." + name,
					Message:   fmt.Sprintf("%s is not a type", name),
				})
				continue
			}
			objs = append(objs, tn)
		}
		return objs, diags
	}

	for _, file := range pkg.Syntax {
		for _, decl := range file.Decls {
			gd, ok := decl.(*ast.GenDecl)
			if !ok || gd.Tok != token.TYPE {
				continue
			}
			for _, spec := range gd.Specs {
				ts := spec.(*ast.TypeSpec)
				doc := ts.Doc
				if doc == nil && len(gd.Specs) == 1 {
					doc = gd.Doc
				}
				if !hasDirective(doc) {
					continue
				}
				if tn, ok := pkg.TypesInfo.Defs[ts.Name].(*types.TypeName); ok {
					objs = append(objs, tn)
				}
			}
		}
	}
	return objs, diags
}

func hasDirective(doc *ast.CommentGroup) bool {
	if doc == nil {
		return false
	}
	for _, c := range doc.List {
		if strings.TrimSpace(c.Text) == config.ListenerDirective {
			return true
		}
	}
	return false
}

// target describes obj for generation into its own package.
func (ins *Inspector) target(pkg *packages.Package, obj *types.TypeName) (*Target, *Diagnostic) {
	imports := newImportSet(pkg.PkgPath, pkg.Types.Scope())
	id := descriptor.Identity{PkgPath: pkg.PkgPath, Name: obj.Name()}
	imports.reserve(id.GoTypeName(), "New"+id.GoTypeName())
	runtime := imports.runtime()

	d := &describer{self: pkg.PkgPath, imports: imports, memo: make(map[*types.TypeName]*descriptor.Interface)}
	desc, err := d.describe(obj)
	if err != nil {
		return nil, &Diagnostic{
			Pos:       ins.fset.Position(offendingPos(obj, err)),
			Interface: id.String(),
			Message:   diagnosticMessage(obj, err),
		}
	}

	dir := ""
	if len(pkg.GoFiles) > 0 {
		dir = filepath.Dir(pkg.GoFiles[0])
	}
	return &Target{
		Desc:    desc,
		PkgPath: pkg.PkgPath,
		PkgName: pkg.Name,
		Dir:     dir,
		Runtime: runtime,
		Imports: imports.used(desc),
		Pos:     ins.fset.Position(obj.Pos()),
	}, nil
}

// diagnosticMessage phrases err for a diagnostic about obj.
func diagnosticMessage(obj *types.TypeName, err error) string {
	var cv *descriptor.ContractViolation
	switch {
	case errors.As(err, &cv) && cv.Method != "":
		return fmt.Sprintf("%s.%s: %s", cv.Interface.Name, cv.Method, cv.Reason)
	case errors.As(err, &cv):
		return fmt.Sprintf("%s: %s", cv.Interface.Name, cv.Reason)
	case errors.Is(err, descriptor.ErrNotInterface):
		return fmt.Sprintf("%s: %v", obj.Name(), descriptor.ErrNotInterface)
	case errors.Is(err, descriptor.ErrGeneric):
		return fmt.Sprintf("%s: %v", obj.Name(), descriptor.ErrGeneric)
	}
	return fmt.Sprintf("%s: %v", obj.Name(), err)
}

// offendingPos returns the position of the method named by a contract
// violation, falling back to the type itself.
func offendingPos(obj *types.TypeName, err error) token.Pos {
	var cv *descriptor.ContractViolation
	if !errors.As(err, &cv) || cv.Method == "" {
		return obj.Pos()
	}
	iface, ok := obj.Type().Underlying().(*types.Interface)
	if !ok {
		return obj.Pos()
	}
	for i := 0; i < iface.NumMethods(); i++ {
		if m := iface.Method(i); m.Name() == cv.Method {
			return m.Pos()
		}
	}
	return obj.Pos()
}

// describer builds descriptors from go/types for one generated file.
type describer struct {
	self    string
	imports *importSet
	memo    map[*types.TypeName]*descriptor.Interface
}

func (d *describer) describe(tn *types.TypeName) (*descriptor.Interface, error) {
	if desc, ok := d.memo[tn]; ok {
		return desc, nil
	}

	id := descriptor.Identity{Name: tn.Name()}
	if tn.Pkg() != nil {
		id.PkgPath = tn.Pkg().Path()
	}
	named, ok := types.Unalias(tn.Type()).(*types.Named)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, descriptor.ErrNotInterface)
	}
	if named.TypeParams().Len() > 0 || named.TypeArgs().Len() > 0 {
		return nil, fmt.Errorf("%s: %w", id, descriptor.ErrGeneric)
	}
	iface, ok := named.Underlying().(*types.Interface)
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, descriptor.ErrNotInterface)
	}
	if !iface.IsMethodSet() {
		return nil, &descriptor.ContractViolation{Interface: id, Reason: "type constraints cannot be listeners"}
	}

	var methods []descriptor.Method
	for i := 0; i < iface.NumExplicitMethods(); i++ {
		m, err := d.method(id, iface.ExplicitMethod(i))
		if err != nil {
			return nil, err
		}
		methods = append(methods, m)
	}

	var supers []*descriptor.Interface
	for i := 0; i < iface.NumEmbeddeds(); i++ {
		switch et := types.Unalias(iface.EmbeddedType(i)).(type) {
		case *types.Named:
			s, err := d.describe(et.Obj())
			if err != nil {
				return nil, err
			}
			supers = append(supers, s)
		case *types.Interface:
			for j := 0; j < et.NumMethods(); j++ {
				m, err := d.method(id, et.Method(j))
				if err != nil {
					return nil, err
				}
				methods = append(methods, m)
			}
		default:
			return nil, &descriptor.ContractViolation{
				Interface: id,
				Reason:    fmt.Sprintf("embeds %s, which is not an interface", et),
			}
		}
	}

	desc, err := descriptor.New(id, methods, supers...)
	if err != nil {
		return nil, err
	}
	d.memo[tn] = desc
	return desc, nil
}

func (d *describer) method(id descriptor.Identity, fn *types.Func) (descriptor.Method, error) {
	sig := fn.Type().(*types.Signature)
	m := descriptor.Method{Name: fn.Name(), Variadic: sig.Variadic()}

	if !fn.Exported() && fn.Pkg() != nil && fn.Pkg().Path() != d.self {
		return m, &descriptor.ContractViolation{
			Interface: id,
			Method:    fn.Name(),
			Reason:    "unexported method of another package cannot be implemented",
		}
	}

	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		p := params.At(i)
		t := p.Type()
		if m.Variadic && i == params.Len()-1 {
			t = t.(*types.Slice).Elem()
		}
		if hidden := d.unreachable(t); hidden != nil {
			return m, &descriptor.ContractViolation{
				Interface: id,
				Method:    fn.Name(),
				Reason:    fmt.Sprintf("parameter type %s is not visible from package %s", hidden.Name(), d.self),
			}
		}
		m.Params = append(m.Params, descriptor.Param{Name: p.Name(), Type: d.imports.ref(t)})
	}

	results := sig.Results()
	for i := 0; i < results.Len(); i++ {
		m.Results = append(m.Results, d.imports.ref(results.At(i).Type()))
	}
	return m, nil
}

// unreachable returns an unexported named type from another package
// that t refers to, if any. Generated code cannot spell such a type.
func (d *describer) unreachable(t types.Type) *types.TypeName {
	switch t := types.Unalias(t).(type) {
	case *types.Named:
		obj := t.Obj()
		if obj.Pkg() != nil && obj.Pkg().Path() != d.self && !obj.Exported() {
			return obj
		}
		for i := 0; i < t.TypeArgs().Len(); i++ {
			if h := d.unreachable(t.TypeArgs().At(i)); h != nil {
				return h
			}
		}
	case *types.Pointer:
		return d.unreachable(t.Elem())
	case *types.Slice:
		return d.unreachable(t.Elem())
	case *types.Array:
		return d.unreachable(t.Elem())
	case *types.Chan:
		return d.unreachable(t.Elem())
	case *types.Map:
		if h := d.unreachable(t.Key()); h != nil {
			return h
		}
		return d.unreachable(t.Elem())
	case *types.Signature:
		for _, tuple := range []*types.Tuple{t.Params(), t.Results()} {
			for i := 0; i < tuple.Len(); i++ {
				if h := d.unreachable(tuple.At(i).Type()); h != nil {
					return h
				}
			}
		}
	}
	return nil
}
