package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const progressProto = `syntax = "proto3";

package jobs;

option go_package = "example.com/app/jobspb";

import "google/protobuf/empty.proto";

message Job {
  string id = 1;
}

service Progress {
  rpc Started(Job) returns (google.protobuf.Empty);
  rpc Finished(Job) returns (google.protobuf.Empty);
}
`

func writeProject(t *testing.T, yaml, proto string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "emitter.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "progress.proto"), []byte(proto), 0o644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunFlagErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
		code int
	}{
		{"help", []string{"-h"}, 0},
		{"unknown flag", []string{"-bogus"}, 2},
		{"positional", []string{"./pkg"}, 2},
		{"type with config", []string{"-config", "emitter.yaml", "-type", "Listener"}, 2},
		{"missing config", []string{"-config", filepath.Join(os.TempDir(), "no-such-dir", "emitter.yaml")}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			if code := run(tt.args, &stdout, &stderr); code != tt.code {
				t.Errorf("exit code = %d, want %d; stderr:\n%s", code, tt.code, stderr.String())
			}
		})
	}
}

func TestRunProtoConfig(t *testing.T) {
	dir := writeProject(t, "protos:\n  - file: progress.proto\n    out: ./jobspb\n", progressProto)
	cfgPath := filepath.Join(dir, "emitter.yaml")
	out := filepath.Join(dir, "jobspb", "progress_listener_emitter.go")

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", cfgPath, "-n"}, &stdout, &stderr); code != 0 {
		t.Fatalf("dry run exit code = %d; stderr:\n%s", code, stderr.String())
	}
	if strings.TrimSpace(stdout.String()) != out {
		t.Errorf("dry run printed %q, want %q", stdout.String(), out)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Fatal("dry run wrote the output file")
	}

	stdout.Reset()
	if code := run([]string{"-config", cfgPath}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d; stderr:\n%s", code, stderr.String())
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading output: %v", err)
	}
	for _, want := range []string{
		"package jobspb",
		"type ProgressListener interface {",
		"func (e *ProgressListenerEmitter) Finished(ev *Job) {",
	} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output lacks %q:\n%s", want, data)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, ".emittergen", "cache.db")); err != nil {
		t.Errorf("expected the cache next to emitter.yaml: %v", err)
	}
}

func TestRunNoCacheConfig(t *testing.T) {
	dir := writeProject(t, "no_cache: true\nprotos:\n  - file: progress.proto\n    out: ./jobspb\n", progressProto)

	var stdout, stderr bytes.Buffer
	if code := run([]string{"-config", filepath.Join(dir, "emitter.yaml")}, &stdout, &stderr); code != 0 {
		t.Fatalf("exit code = %d; stderr:\n%s", code, stderr.String())
	}
	if _, err := os.Stat(filepath.Join(dir, ".emittergen")); !os.IsNotExist(err) {
		t.Error("no_cache must not create the cache directory")
	}
}

func TestRunReportsDiagnostics(t *testing.T) {
	proto := progressProto + `
service Query {
  rpc Get(Job) returns (Job);
}
`
	dir := writeProject(t, "protos:\n  - file: progress.proto\n    out: ./jobspb\n", proto)

	var stdout, stderr bytes.Buffer
	code := run([]string{"-config", filepath.Join(dir, "emitter.yaml"), "-no-cache"}, &stdout, &stderr)
	if code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr.String(), "rpc Get: listener methods must not return values") {
		t.Errorf("stderr lacks the diagnostic:\n%s", stderr.String())
	}
	if strings.Contains(stderr.String(), "\x1b[") {
		t.Error("diagnostics written to a buffer must not be colored")
	}
	// The valid service is still generated.
	if _, err := os.Stat(filepath.Join(dir, "jobspb", "progress_listener_emitter.go")); err != nil {
		t.Errorf("expected ProgressListener to be generated: %v", err)
	}
}

func TestLoadConfigWithoutConfigFile(t *testing.T) {
	root := t.TempDir()
	pkgDir := filepath.Join(root, "events")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		t.Fatal(err)
	}

	cfg, dir, cacheDir, err := loadConfig(&options{dir: pkgDir, types: "Listener, StatusListener,"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if dir != pkgDir || cacheDir != pkgDir {
		t.Errorf("dir = %s, cacheDir = %s, want %s", dir, cacheDir, pkgDir)
	}
	spec := cfg.Packages[0]
	if spec.Pkg != pkgDir || strings.Join(spec.Interfaces, ",") != "Listener,StatusListener" {
		t.Errorf("spec = %+v", spec)
	}

	if err := os.WriteFile(filepath.Join(root, "emitter.yaml"), []byte("no_cache: true\npackages:\n  - pkg: ./events\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, _, cacheDir, err = loadConfig(&options{dir: pkgDir})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.NoCache || cacheDir != root {
		t.Errorf("NoCache = %v, cacheDir = %s; want the enclosing config to apply", cfg.NoCache, cacheDir)
	}
	if len(cfg.Packages) != 1 || len(cfg.Packages[0].Interfaces) != 0 {
		t.Errorf("packages = %+v, want only the scanned directory", cfg.Packages)
	}
}
