package gen

import (
	"bytes"
	"fmt"
	"os"

	"github.com/jhump/protoreflect/desc/protoparse"
	"go.uber.org/zap"
)

// Generator runs the whole pipeline: inspect, render, write.
type Generator struct {
	// dir is the project directory; go/packages resolves from it.
	dir string

	logger  *zap.Logger
	cache   *Cache
	protos  *ProtoSource
	codegen *CodeGenerator

	// dryRun renders files without writing them.
	dryRun bool
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithLogger sets the logger for progress output.
func WithLogger(logger *zap.Logger) GeneratorOption {
	return func(g *Generator) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithCache skips interfaces whose output is up to date in c.
func WithCache(c *Cache) GeneratorOption {
	return func(g *Generator) { g.cache = c }
}

// WithProtoAccessor reads .proto files through accessor instead of disk.
func WithProtoAccessor(accessor protoparse.FileAccessor) GeneratorOption {
	return func(g *Generator) { g.protos = NewProtoSource(accessor) }
}

// WithDryRun renders every file but writes nothing.
func WithDryRun(v bool) GeneratorOption {
	return func(g *Generator) { g.dryRun = v }
}

// NewGenerator creates a Generator for the project in dir.
func NewGenerator(dir string, opts ...GeneratorOption) *Generator {
	g := &Generator{
		dir:     dir,
		logger:  zap.NewNop(),
		protos:  NewProtoSource(nil),
		codegen: NewCodeGenerator(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Result reports what a run did.
type Result struct {
	// Files holds every rendered file, written or not.
	Files []*GeneratedFile

	// Written lists the files that were (re)written.
	Written []string

	// Unchanged lists the files that were already up to date.
	Unchanged []string

	// Diagnostics lists the interfaces that were skipped and why.
	Diagnostics []Diagnostic
}

// Run generates dispatchers for everything cfg selects. Paths in cfg must
// already be resolved. Diagnostics do not make Run fail; I/O and loading
// problems do.
func (g *Generator) Run(cfg *Config) (*Result, error) {
	res := &Result{}

	if g.cache != nil && !g.dryRun {
		n, err := g.cache.Prune()
		if err != nil {
			return nil, err
		}
		if n > 0 {
			g.logger.Debug("pruned cache", zap.Int("entries", n))
		}
	}

	var targets []*Target
	if len(cfg.Packages) > 0 {
		ins := NewInspector(g.dir, g.logger)
		t, d, err := ins.Inspect(cfg.Packages)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t...)
		res.Diagnostics = append(res.Diagnostics, d...)
	}
	for _, spec := range cfg.Protos {
		t, d, err := g.protos.Inspect(spec)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t...)
		res.Diagnostics = append(res.Diagnostics, d...)
	}

	seen := make(map[string]*Target, len(targets))
	for _, t := range targets {
		name := t.Desc.ID().EmitterName()
		if prev, ok := seen[name]; ok {
			res.Diagnostics = append(res.Diagnostics, Diagnostic{
				Pos:       t.Pos,
				Interface: t.Desc.ID().String(),
				Message:   fmt.Sprintf("%s is also generated from %s", name, prev.Pos),
			})
			continue
		}
		seen[name] = t

		if err := g.generate(t, res); err != nil {
			return nil, err
		}
	}

	SortDiagnostics(res.Diagnostics)
	return res, nil
}

func (g *Generator) generate(t *Target, res *Result) error {
	log := g.logger.With(zap.Stringer("interface", t.Desc.ID()))
	fp := Fingerprint(t)

	if g.cache != nil && !g.dryRun && g.cache.Fresh(t, fp) {
		log.Debug("up to date", zap.String("file", t.Filename()))
		res.Unchanged = append(res.Unchanged, t.Filename())
		return nil
	}

	file, err := g.codegen.Generate(t)
	if err != nil {
		return err
	}
	res.Files = append(res.Files, file)
	if g.dryRun {
		return nil
	}

	if old, err := os.ReadFile(file.Filename); err == nil && bytes.Equal(old, file.Content) {
		log.Debug("unchanged", zap.String("file", file.Filename))
		res.Unchanged = append(res.Unchanged, file.Filename)
	} else {
		if err := os.MkdirAll(t.Dir, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", t.Dir, err)
		}
		if err := os.WriteFile(file.Filename, file.Content, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", file.Filename, err)
		}
		log.Info("generated", zap.String("file", file.Filename), zap.Int("methods", len(t.Desc.Flatten())))
		res.Written = append(res.Written, file.Filename)
	}

	if g.cache != nil {
		if err := g.cache.Store(t, fp, file.Content); err != nil {
			return err
		}
	}
	return nil
}
