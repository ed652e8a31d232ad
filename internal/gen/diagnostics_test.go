package gen

import (
	"strings"
	"testing"
)

func TestDiagnosticString(t *testing.T) {
	d := Diagnostic{Interface: "example.com/app.Listener", Message: "Listener.Get: listener methods must not return values"}
	if got, want := d.String(), "example.com/app.Listener: Listener.Get: listener methods must not return values"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	d.Pos.Filename, d.Pos.Line, d.Pos.Column = "app/events.go", 12, 2
	if got, want := d.String(), "app/events.go:12:2: Listener.Get: listener methods must not return values"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}

func TestPrinterPlainAndSorted(t *testing.T) {
	diags := []Diagnostic{
		{Message: "b"},
		{Message: "c"},
		{Message: "a"},
	}
	diags[0].Pos.Filename, diags[0].Pos.Line = "x.go", 9
	diags[1].Pos.Filename, diags[1].Pos.Line = "y.go", 1
	diags[2].Pos.Filename, diags[2].Pos.Line = "x.go", 3
	SortDiagnostics(diags)

	var buf strings.Builder
	NewPlainPrinter(&buf).Print(diags)
	want := "x.go:3: a\nx.go:9: b\ny.go:1: c\n"
	if buf.String() != want {
		t.Errorf("printed %q, want %q", buf.String(), want)
	}
}
