package config

// RuntimeImportPath is the package generated dispatchers register with.
const RuntimeImportPath = "github.com/funvibe/emitter/pkg/emitter"

// RuntimePackageName is the name generated code uses for RuntimeImportPath.
const RuntimePackageName = "emitter"

// GeneratedHeader starts every generated file.
const GeneratedHeader = "// Code generated by emittergen. DO NOT EDIT."

// ListenerDirective marks an interface for generation in its doc comment.
const ListenerDirective = "//emitter:listener"

// ConfigFileNames are the generator config files, in lookup order.
var ConfigFileNames = []string{"emitter.yaml", "emitter.yml"}

// Cache locations, relative to the config directory.
const (
	CacheDirName  = ".emittergen"
	CacheFileName = "cache.db"
)

// CodegenVersion is mixed into every cache fingerprint. Bump it whenever
// the generated output changes shape.
const CodegenVersion = "1"
