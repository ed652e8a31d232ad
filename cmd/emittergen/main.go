// Command emittergen writes ahead-of-time dispatchers for listener
// interfaces. Run it from go:generate in a package that declares
// interfaces marked with //emitter:listener:
//
//	//go:generate go run github.com/funvibe/emitter/cmd/emittergen
//
// or point it at an emitter.yaml that lists packages and .proto files.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/funvibe/emitter/internal/gen"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type options struct {
	config  string
	types   string
	dir     string
	noCache bool
	dryRun  bool
	verbose bool
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	var o options
	fs := flag.NewFlagSet("emittergen", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&o.config, "config", "", "path to emitter.yaml (default: none, scan -dir)")
	fs.StringVar(&o.types, "type", "", "comma-separated interface names (default: every //emitter:listener interface)")
	fs.StringVar(&o.dir, "dir", ".", "package directory to scan when no config is given")
	fs.BoolVar(&o.noCache, "no-cache", false, "regenerate everything")
	fs.BoolVar(&o.dryRun, "n", false, "print file names without writing")
	fs.BoolVar(&o.verbose, "v", false, "verbose output")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: emittergen [flags]\n\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		fs.Usage()
		return nil, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if o.config != "" && o.types != "" {
		return nil, errors.New("-type cannot be combined with -config")
	}
	return &o, nil
}

func newLogger(verbose bool, w io.Writer) *zap.Logger {
	level := zapcore.WarnLevel
	if verbose {
		level = zapcore.DebugLevel
	}
	enc := zap.NewDevelopmentEncoderConfig()
	enc.TimeKey = ""
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), zapcore.AddSync(w), level)
	return zap.New(core).Named("emittergen")
}

// loadConfig returns the configuration to run, the project directory and
// the directory holding the cache.
func loadConfig(o *options) (cfg *gen.Config, dir, cacheDir string, err error) {
	if o.config != "" {
		cfg, err := gen.LoadConfig(o.config)
		if err != nil {
			return nil, "", "", err
		}
		dir, err := filepath.Abs(filepath.Dir(o.config))
		if err != nil {
			return nil, "", "", fmt.Errorf("resolving directory: %w", err)
		}
		cfg.Resolve(dir)
		return cfg, dir, dir, nil
	}

	dir, err = filepath.Abs(o.dir)
	if err != nil {
		return nil, "", "", fmt.Errorf("resolving directory: %w", err)
	}
	spec := gen.PackageSpec{Pkg: dir}
	if o.types != "" {
		for _, name := range strings.Split(o.types, ",") {
			if name = strings.TrimSpace(name); name != "" {
				spec.Interfaces = append(spec.Interfaces, name)
			}
		}
	}
	cfg = &gen.Config{Packages: []gen.PackageSpec{spec}}

	// A config further up still decides where and whether to cache.
	cacheDir = dir
	if found, err := gen.FindConfig(dir); err == nil && found != "" {
		if parent, err := gen.LoadConfig(found); err == nil {
			cfg.NoCache = parent.NoCache
			cacheDir = filepath.Dir(found)
		}
	}
	return cfg, dir, cacheDir, nil
}

func run(args []string, stdout, stderr io.Writer) int {
	o, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(stderr, "emittergen: %s\n", err)
		return 2
	}

	logger := newLogger(o.verbose, stderr)
	defer logger.Sync()

	cfg, dir, cacheDir, err := loadConfig(o)
	if err != nil {
		fmt.Fprintf(stderr, "emittergen: %s\n", err)
		return 1
	}

	opts := []gen.GeneratorOption{gen.WithLogger(logger), gen.WithDryRun(o.dryRun)}
	if !o.noCache && !cfg.NoCache && !o.dryRun {
		cache, err := gen.OpenCache(cacheDir)
		if err != nil {
			logger.Warn("cache disabled", zap.Error(err))
		} else {
			defer cache.Close()
			opts = append(opts, gen.WithCache(cache))
		}
	}

	res, err := gen.NewGenerator(dir, opts...).Run(cfg)
	if err != nil {
		fmt.Fprintf(stderr, "emittergen: %s\n", err)
		return 1
	}

	if o.dryRun {
		for _, f := range res.Files {
			fmt.Fprintln(stdout, f.Filename)
		}
	}
	logger.Debug("done",
		zap.Int("written", len(res.Written)),
		zap.Int("unchanged", len(res.Unchanged)),
		zap.Int("diagnostics", len(res.Diagnostics)))

	if len(res.Diagnostics) > 0 {
		printer := gen.NewPlainPrinter(stderr)
		if f, ok := stderr.(*os.File); ok {
			printer = gen.NewPrinter(f)
		}
		printer.Print(res.Diagnostics)
		return 1
	}
	return 0
}
