package gen

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/funvibe/emitter/internal/config"
	"github.com/funvibe/emitter/pkg/descriptor"
)

const fixturesPkg = "github.com/funvibe/emitter/internal/testlisteners"

func TestImportAlias(t *testing.T) {
	tests := []struct {
		pkgPath  string
		expected string
	}{
		{"net/http", "http"},
		{"github.com/redis/go-redis/v9", "goredis"},
		{"github.com/foo/go", "pkgGo"},
		{"github.com/foo/map", "pkgMap"},
		{"github.com/foo/init", "pkgInit"},
		{"gopkg.in/yaml.v3", "yaml"},
		{"github.com/foo/bar-baz", "barbaz"},
		{"github.com/foo/v9", "foo"},
		{"github.com/foo/3d", "pkg3d"},
		{"v9", "v9"},
		{"", "pkg"},
	}

	for _, tt := range tests {
		t.Run(tt.pkgPath, func(t *testing.T) {
			t.Parallel()
			got := ImportAlias(tt.pkgPath)
			if got != tt.expected {
				t.Errorf("ImportAlias(%q) = %q; want %q", tt.pkgPath, got, tt.expected)
			}
		})
	}
}

func TestParamNames(t *testing.T) {
	m := descriptor.Method{
		Name: "M",
		Params: []descriptor.Param{
			{Name: "a"}, {Name: ""}, {Name: "_"}, {Name: "e"}, {Name: "l"},
			{Name: "listeners"}, {Name: "arg0"}, {Name: "a"},
		},
	}
	got := strings.Join(paramNames(m), ",")
	want := "a,arg1,arg2,arg3,arg4,arg5,arg0,arg7"
	if got != want {
		t.Errorf("paramNames = %s, want %s", got, want)
	}

	m = descriptor.Method{Name: "M", Params: []descriptor.Param{{Name: "arg1"}, {Name: ""}}}
	got = strings.Join(paramNames(m), ",")
	if got != "arg1,arg1_" {
		t.Errorf("paramNames = %s, want arg1,arg1_", got)
	}
}

func TestImportSet(t *testing.T) {
	s := newImportSet("example.com/app", nil)
	s.reserve("time")
	if got := s.runtime(); got != "emitter" {
		t.Errorf("runtime = %q, want emitter", got)
	}
	if got := s.name("time", "time"); got != "time2" {
		t.Errorf("name(time) = %q, want time2", got)
	}
	if got := s.name("example.com/other/emitter", "emitter"); got != "emitter2" {
		t.Errorf("name(other emitter) = %q, want emitter2", got)
	}
	if got := s.name("time", "time"); got != "time2" {
		t.Errorf("second name(time) = %q, want stable time2", got)
	}

	self := newImportSet(config.RuntimeImportPath, nil)
	if got := self.runtime(); got != "" {
		t.Errorf("runtime inside runtime package = %q, want empty", got)
	}
}

// fixtureTarget describes one of the committed testlisteners interfaces by
// hand, the way the inspector would.
func fixtureTarget(t *testing.T, name string, methods []descriptor.Method, supers ...*descriptor.Interface) *Target {
	t.Helper()
	desc, err := descriptor.New(descriptor.Identity{PkgPath: fixturesPkg, Name: name}, methods, supers...)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return &Target{
		Desc:    desc,
		PkgPath: fixturesPkg,
		PkgName: "testlisteners",
		Dir:     filepath.Join("..", "testlisteners"),
		Runtime: "emitter",
		Imports: map[string]string{config.RuntimeImportPath: "emitter"},
	}
}

func ref(expr string) descriptor.TypeRef { return descriptor.TypeRef{Expr: expr} }

func TestGenerateMatchesCommittedFixtures(t *testing.T) {
	listener := fixtureTarget(t, "Listener", []descriptor.Method{{Name: "Increment"}})

	targets := []*Target{
		listener,
		fixtureTarget(t, "InheritedListener", []descriptor.Method{{Name: "IncrementOther"}}, listener.Desc),
		fixtureTarget(t, "EmptyListener", nil),
		fixtureTarget(t, "ArgumentListener", []descriptor.Method{{
			Name: "Add",
			Params: []descriptor.Param{
				{Name: "a", Type: ref("int")},
				{Name: "b", Type: ref("rune")},
				{Name: "c", Type: ref("int32")},
				{Name: "d", Type: ref("int64")},
				{Name: "e", Type: ref("float64")},
			},
		}}),
		fixtureTarget(t, "VariadicListener", []descriptor.Method{{
			Name:     "Log",
			Variadic: true,
			Params: []descriptor.Param{
				{Name: "level", Type: ref("int")},
				{Name: "parts", Type: ref("string")},
			},
		}}),
	}

	cg := NewCodeGenerator()
	for _, target := range targets {
		t.Run(target.Desc.ID().Name, func(t *testing.T) {
			file, err := cg.Generate(target)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			want, err := os.ReadFile(file.Filename)
			if err != nil {
				t.Fatalf("reading fixture: %v", err)
			}
			if string(file.Content) != string(want) {
				t.Errorf("%s is stale; generated:\n%s", file.Filename, file.Content)
			}
		})
	}
}

func TestGenerateDeclaredInterface(t *testing.T) {
	desc, err := descriptor.New(descriptor.Identity{PkgPath: "example.com/app/jobspb", Name: "ProgressListener"}, []descriptor.Method{
		{Name: "Started", Params: []descriptor.Param{{Name: "ev", Type: ref("*Job")}}},
		{Name: "Ticked", Params: []descriptor.Param{{Name: "ev", Type: descriptor.TypeRef{
			Expr:    "*timestamppb.Timestamp",
			Imports: map[string]string{"google.golang.org/protobuf/types/known/timestamppb": "timestamppb"},
		}}}},
		{Name: "Reset"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	imports := desc.Imports()
	imports[config.RuntimeImportPath] = "emitter"
	target := &Target{
		Desc:    desc,
		PkgPath: "example.com/app/jobspb",
		PkgName: "jobspb",
		Dir:     t.TempDir(),
		Declare: true,
		Runtime: "emitter",
		Imports: imports,
	}

	file, err := NewCodeGenerator().Generate(target)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	src := string(file.Content)

	if !strings.HasPrefix(src, config.GeneratedHeader+"\n") {
		t.Errorf("missing generated header:\n%s", src)
	}
	for _, want := range []string{
		"type ProgressListener interface {\n\tStarted(ev *Job)\n\tTicked(ev *timestamppb.Timestamp)\n\tReset()\n}",
		"func (e *ProgressListenerEmitter) Reset() {",
		"l.Ticked(ev)",
		`"google.golang.org/protobuf/types/known/timestamppb"`,
		`emitter.RegisterCompiled("example.com/app/jobspb.ProgressListener$Emitter"`,
	} {
		if !strings.Contains(src, want) {
			t.Errorf("generated source lacks %q:\n%s", want, src)
		}
	}
	if filepath.Base(file.Filename) != "progress_listener_emitter.go" {
		t.Errorf("filename = %s, want progress_listener_emitter.go", file.Filename)
	}

	if _, err := parser.ParseFile(token.NewFileSet(), file.Filename, file.Content, parser.AllErrors); err != nil {
		t.Errorf("generated source does not parse: %v", err)
	}
}

func TestGenerateAliasedImport(t *testing.T) {
	desc, err := descriptor.New(descriptor.Identity{PkgPath: "example.com/app", Name: "Sink"}, []descriptor.Method{
		{Name: "Write", Params: []descriptor.Param{{Name: "doc", Type: descriptor.TypeRef{
			Expr:    "*yamlv3.Node",
			Imports: map[string]string{"gopkg.in/yaml.v3": "yamlv3"},
		}}}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	imports := desc.Imports()
	imports[config.RuntimeImportPath] = "emitter"
	file, err := NewCodeGenerator().Generate(&Target{
		Desc: desc, PkgPath: "example.com/app", PkgName: "app", Dir: t.TempDir(),
		Runtime: "emitter", Imports: imports,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(file.Content), `yamlv3 "gopkg.in/yaml.v3"`) {
		t.Errorf("expected an explicit alias:\n%s", file.Content)
	}
}
