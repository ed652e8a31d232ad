package gen

import (
	"fmt"
	"go/token"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/funvibe/emitter/pkg/descriptor"
)

// emptyMessage is the only output type a listener rpc may have.
const emptyMessage protoreflect.FullName = "google.protobuf.Empty"

// ProtoSource turns protobuf services into listener interfaces. Every
// unary rpc returning google.protobuf.Empty becomes a method taking the
// request message; an Empty request means no parameters.
//
//	service Progress {
//	  rpc Started(Job) returns (google.protobuf.Empty);
//	}
//
// becomes
//
//	type ProgressListener interface {
//		Started(ev *Job)
//	}
type ProtoSource struct {
	accessor protoparse.FileAccessor
}

// NewProtoSource returns a ProtoSource reading files through accessor, or
// from disk when accessor is nil.
func NewProtoSource(accessor protoparse.FileAccessor) *ProtoSource {
	return &ProtoSource{accessor: accessor}
}

// Inspect parses spec.File and describes its services.
func (ps *ProtoSource) Inspect(spec ProtoSpec) ([]*Target, []Diagnostic, error) {
	parser := protoparse.Parser{
		ImportPaths:           spec.ImportPaths,
		IncludeSourceCodeInfo: true,
		Accessor:              ps.accessor,
	}
	fds, err := parser.ParseFiles(spec.File)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing %s: %w", spec.File, err)
	}
	file := fds[0].UnwrapFile()

	goPkg := spec.GoPackage
	if goPkg == "" {
		opts, _ := file.Options().(*descriptorpb.FileOptions)
		goPkg = opts.GetGoPackage()
	}
	if goPkg == "" {
		return nil, nil, fmt.Errorf("%s: no go_package option; set go_package in emitter.yaml", spec.File)
	}
	pkgPath, pkgName, err := splitGoPackage(goPkg)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: go_package: %w", spec.File, err)
	}

	wanted := make(map[string]bool, len(spec.Services))
	for _, s := range spec.Services {
		wanted[s] = true
	}
	found := make(map[string]bool, len(wanted))

	var (
		targets []*Target
		diags   []Diagnostic
	)
	services := file.Services()
	for i := 0; i < services.Len(); i++ {
		sd := services.Get(i)
		if len(wanted) > 0 && !wanted[string(sd.Name())] {
			continue
		}
		found[string(sd.Name())] = true

		t, d := ps.target(spec, file, sd, pkgPath, pkgName)
		if d != nil {
			diags = append(diags, *d)
			continue
		}
		targets = append(targets, t)
	}
	for _, name := range spec.Services {
		if found[name] {
			continue
		}
		diags = append(diags, Diagnostic{
			Pos:       token.Position{Filename: spec.File},
			Interface: name,
			Message:   fmt.Sprintf("no service %s", name),
		})
	}
	SortDiagnostics(diags)
	return targets, diags, nil
}

func (ps *ProtoSource) target(spec ProtoSpec, file protoreflect.FileDescriptor, sd protoreflect.ServiceDescriptor, pkgPath, pkgName string) (*Target, *Diagnostic) {
	id := descriptor.Identity{PkgPath: pkgPath, Name: goCamelCase(string(sd.Name())) + "Listener"}
	imports := newImportSet(pkgPath, nil)
	imports.reserve(id.Name, id.GoTypeName(), "New"+id.GoTypeName())
	runtime := imports.runtime()

	fail := func(at protoreflect.Descriptor, msg string) *Diagnostic {
		return &Diagnostic{
			Pos:       sourcePos(spec.File, file, at),
			Interface: id.String(),
			Message:   fmt.Sprintf("%s: %s", sd.FullName(), msg),
		}
	}

	var methods []descriptor.Method
	rpcs := sd.Methods()
	for i := 0; i < rpcs.Len(); i++ {
		md := rpcs.Get(i)
		if md.IsStreamingClient() || md.IsStreamingServer() {
			return nil, fail(md, fmt.Sprintf("rpc %s: streaming rpcs cannot be listener methods", md.Name()))
		}

		m := descriptor.Method{Name: goCamelCase(string(md.Name()))}
		if in := md.Input(); in.FullName() != emptyMessage {
			m.Params = []descriptor.Param{{Name: "ev", Type: messageRef(imports, file, in, pkgPath)}}
		}
		if out := md.Output(); out.FullName() != emptyMessage {
			m.Results = []descriptor.TypeRef{messageRef(imports, file, out, pkgPath)}
		}
		methods = append(methods, m)
	}

	desc, err := descriptor.New(id, methods)
	if err != nil {
		if cv, ok := err.(*descriptor.ContractViolation); ok && cv.Method != "" {
			at := protoreflect.Descriptor(sd)
			for i := 0; i < rpcs.Len(); i++ {
				if goCamelCase(string(rpcs.Get(i).Name())) == cv.Method {
					at = rpcs.Get(i)
				}
			}
			return nil, fail(at, fmt.Sprintf("rpc %s: %s", at.Name(), cv.Reason))
		}
		return nil, fail(sd, err.Error())
	}

	return &Target{
		Desc:    desc,
		PkgPath: pkgPath,
		PkgName: pkgName,
		Dir:     spec.Out,
		Declare: true,
		Runtime: runtime,
		Imports: imports.used(desc),
		Pos:     sourcePos(spec.File, file, sd),
	}, nil
}

// messageRef spells a message the way protoc-gen-go names it, qualified
// unless it lives in the generated package.
func messageRef(imports *importSet, file protoreflect.FileDescriptor, md protoreflect.MessageDescriptor, self string) descriptor.TypeRef {
	owner := md.ParentFile()
	name := strings.TrimPrefix(string(md.FullName()), string(owner.Package())+".")
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = goCamelCase(p)
	}
	goName := strings.Join(parts, "_")

	path := self
	pkgName := ""
	if owner.Path() != file.Path() {
		opts, _ := owner.Options().(*descriptorpb.FileOptions)
		if v := opts.GetGoPackage(); v != "" {
			if p, n, err := splitGoPackage(v); err == nil {
				path, pkgName = p, n
			}
		}
	}
	if path == self {
		return descriptor.TypeRef{Expr: "*" + goName}
	}

	alias := imports.name(path, pkgName)
	return descriptor.TypeRef{
		Expr:    "*" + alias + "." + goName,
		Imports: map[string]string{path: alias},
	}
}

func sourcePos(filename string, file protoreflect.FileDescriptor, d protoreflect.Descriptor) token.Position {
	pos := token.Position{Filename: filepath.ToSlash(filename)}
	loc := file.SourceLocations().ByDescriptor(d)
	if len(loc.Path) > 0 {
		pos.Line = loc.StartLine + 1
		pos.Column = loc.StartColumn + 1
	}
	return pos
}

// goCamelCase converts a protobuf name to a Go identifier the way
// protoc-gen-go does for the common cases: "job_done" → "JobDone".
func goCamelCase(s string) string {
	var b strings.Builder
	upper := true
	for _, r := range s {
		switch {
		case r == '_' || r == '-':
			upper = true
			continue
		case upper:
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(r)
		}
		upper = unicode.IsDigit(r)
	}
	return b.String()
}
