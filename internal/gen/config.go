// Package gen generates listener dispatchers ahead of time.
//
// It reads emitter.yaml (or scans a single package when there is no
// config), loads the listed Go packages with go/packages and the listed
// protobuf files with protoparse, validates every selected listener
// interface and writes one <name>_emitter.go file per interface. Each file
// declares a concrete forwarding type and registers it with the emitter
// runtime from init, so emitter.MakeEmitter finds it by name.
//
// The gen package handles:
//   - Parsing and validating emitter.yaml
//   - Describing Go interfaces via go/types
//   - Describing protobuf services as listener interfaces
//   - Rendering and formatting the dispatcher source
//   - Skipping unchanged interfaces via a fingerprint cache
package gen

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/funvibe/emitter/internal/config"
)

// Config represents the top-level emitter.yaml configuration.
type Config struct {
	// Packages lists Go packages whose interfaces get dispatchers.
	Packages []PackageSpec `yaml:"packages"`

	// Protos lists protobuf files whose services are turned into listener
	// interfaces, one interface per service.
	Protos []ProtoSpec `yaml:"protos,omitempty"`

	// NoCache disables the fingerprint cache; every interface is
	// regenerated.
	NoCache bool `yaml:"no_cache,omitempty"`
}

// PackageSpec selects interfaces from one Go package.
type PackageSpec struct {
	// Pkg is a go/packages pattern: an import path, or a directory relative
	// to emitter.yaml when it starts with ".".
	Pkg string `yaml:"pkg"`

	// Interfaces names the interfaces to generate. When empty, every
	// interface whose doc comment carries //emitter:listener is used.
	// Dispatchers are always written next to the interface.
	Interfaces []string `yaml:"interfaces,omitempty"`
}

// ProtoSpec describes one protobuf source.
type ProtoSpec struct {
	// File is the .proto file, relative to one of ImportPaths.
	File string `yaml:"file"`

	// ImportPaths are searched for File and its imports, relative to
	// emitter.yaml. Defaults to the config directory.
	ImportPaths []string `yaml:"import_paths,omitempty"`

	// Services restricts generation to the named services.
	Services []string `yaml:"services,omitempty"`

	// GoPackage overrides the file's go_package option, in the same
	// "import/path;name" form.
	GoPackage string `yaml:"go_package,omitempty"`

	// Out is the output directory, relative to emitter.yaml. Required.
	Out string `yaml:"out"`
}

// LoadConfig reads and parses an emitter.yaml file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	return ParseConfig(data, path)
}

// ParseConfig parses emitter.yaml content from bytes.
// The path argument is used only for error messages.
func ParseConfig(data []byte, path string) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := cfg.validate(path); err != nil {
		return nil, err
	}
	cfg.setDefaults()
	return &cfg, nil
}

// FindConfig searches for emitter.yaml starting from dir and walking up to
// parent directories. It returns "" and a nil error when there is none.
func FindConfig(dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolving directory: %w", err)
	}

	for {
		for _, name := range config.ConfigFileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

// validate checks the configuration for semantic errors.
func (c *Config) validate(path string) error {
	if len(c.Packages) == 0 && len(c.Protos) == 0 {
		return fmt.Errorf("%s: no packages or protos defined", path)
	}

	seenPkgs := make(map[string]int)
	for i, p := range c.Packages {
		if p.Pkg == "" {
			return fmt.Errorf("%s: packages[%d]: pkg is required", path, i)
		}
		if prev, ok := seenPkgs[p.Pkg]; ok {
			return fmt.Errorf("%s: packages[%d] (%s): duplicates packages[%d]", path, i, p.Pkg, prev)
		}
		seenPkgs[p.Pkg] = i

		seen := make(map[string]bool, len(p.Interfaces))
		for j, name := range p.Interfaces {
			if !isIdentifier(name) {
				return fmt.Errorf("%s: packages[%d].interfaces[%d] (%s): %q is not a Go identifier",
					path, i, j, p.Pkg, name)
			}
			if seen[name] {
				return fmt.Errorf("%s: packages[%d].interfaces[%d] (%s): %s listed twice",
					path, i, j, p.Pkg, name)
			}
			seen[name] = true
		}
	}

	for i, p := range c.Protos {
		if p.File == "" {
			return fmt.Errorf("%s: protos[%d]: file is required", path, i)
		}
		if !strings.HasSuffix(p.File, ".proto") {
			return fmt.Errorf("%s: protos[%d] (%s): not a .proto file", path, i, p.File)
		}
		if p.Out == "" {
			return fmt.Errorf("%s: protos[%d] (%s): out is required", path, i, p.File)
		}
		if p.GoPackage != "" {
			if _, _, err := splitGoPackage(p.GoPackage); err != nil {
				return fmt.Errorf("%s: protos[%d] (%s): go_package: %w", path, i, p.File, err)
			}
		}
		for j, s := range p.Services {
			if !isIdentifier(s) {
				return fmt.Errorf("%s: protos[%d].services[%d] (%s): %q is not a service name",
					path, i, j, p.File, s)
			}
		}
	}

	return nil
}

// setDefaults fills in default values for omitted fields.
func (c *Config) setDefaults() {
	for i := range c.Protos {
		if len(c.Protos[i].ImportPaths) == 0 {
			c.Protos[i].ImportPaths = []string{"."}
		}
	}
}

// Resolve makes every relative path in c absolute against dir, the
// directory containing emitter.yaml.
func (c *Config) Resolve(dir string) {
	for i := range c.Packages {
		c.Packages[i].Pkg = resolvePattern(dir, c.Packages[i].Pkg)
	}
	for i := range c.Protos {
		p := &c.Protos[i]
		p.Out = resolvePath(dir, p.Out)
		for j := range p.ImportPaths {
			p.ImportPaths[j] = resolvePath(dir, p.ImportPaths[j])
		}
	}
}

// resolvePattern anchors "./x" and "../x" patterns at dir. Import paths
// are left alone.
func resolvePattern(dir, pattern string) string {
	if pattern == "." || pattern == ".." || strings.HasPrefix(pattern, "./") || strings.HasPrefix(pattern, "../") {
		return filepath.Join(dir, pattern)
	}
	return pattern
}

func resolvePath(dir, p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(dir, p)
}

// splitGoPackage splits a go_package value into its import path and
// package name. The name defaults to the last path element.
func splitGoPackage(v string) (path, name string, err error) {
	path, name, _ = strings.Cut(v, ";")
	if path == "" {
		return "", "", fmt.Errorf("empty import path in %q", v)
	}
	if name == "" {
		name = ImportAlias(path)
	}
	if !isIdentifier(name) {
		return "", "", fmt.Errorf("%q is not a valid package name", name)
	}
	return path, name, nil
}
