package main

import (
	"strings"
	"testing"
)

func TestRenderTablePadsShortRows(t *testing.T) {
	out := renderTable(
		[]string{"Name", "Count"},
		[][]string{{"alpha", "3"}, {"beta"}},
		[]columnAlignment{alignLeft, alignRight},
	)
	if !strings.Contains(out, "alpha") || !strings.Contains(out, "beta") {
		t.Fatalf("rows missing from output:\n%s", out)
	}
	if !strings.Contains(out, "Name") {
		t.Fatalf("header missing from output:\n%s", out)
	}
}

func TestRenderTableEmptyHeaders(t *testing.T) {
	if out := renderTable(nil, [][]string{{"x"}}, nil); out != "" {
		t.Fatalf("expected empty output, got %q", out)
	}
}
