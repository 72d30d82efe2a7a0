package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/segmentio/encoding/json"
	"go.uber.org/zap"

	"github.com/tangzhangming/treeopt/internal/config"
)

func runScenarios(t *testing.T, cfg *config.Config) map[string]Report {
	t.Helper()
	r, err := newRunner(cfg, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	r.stats = true
	reports, err := r.runAll(scenarios)
	if err != nil {
		t.Fatal(err)
	}
	byName := make(map[string]Report, len(reports))
	for _, rep := range reports {
		byName[rep.Scenario] = rep
	}
	return byName
}

func TestScenarios(t *testing.T) {
	reports := runScenarios(t, config.Default())

	tests := []struct {
		scenario string
		index    int
		want     string
	}{
		{"A", 0, "1"},
		{"B", 0, "x"},
		{"C", 0, "{ int x; (x = 1); x; }"},
		{"D", 0, "{ new ArgumentException(); 42; }"},
		{"E", 1, "10"},
		{"F", 0, "((a == b) | c)"},
	}
	for _, tt := range tests {
		rep, ok := reports[tt.scenario]
		if !ok {
			t.Fatalf("scenario %s missing", tt.scenario)
		}
		if got := rep.Cases[tt.index].Output; got != tt.want {
			t.Errorf("%s: expected %s, got %s", tt.scenario, tt.want, got)
		}
	}

	e := reports["E"].Cases[0]
	if e.Output != e.Input {
		t.Errorf("E: expected impure argument to block reduction, got %s", e.Output)
	}
	if len(e.Before.Effects) != 1 || e.Before.Effects[0] != "call Host.Next()" {
		t.Errorf("E: expected one Host.Next call, got %v", e.Before.Effects)
	}

	for name, rep := range reports {
		for i, c := range rep.Cases {
			if !c.Agree {
				t.Errorf("%s[%d]: %s vs %s", name, i, c.Before, c.After)
			}
		}
		if rep.Stats == nil {
			t.Errorf("%s: expected stats", name)
		}
	}
}

func TestScenarioDWithCatalog(t *testing.T) {
	cfg := config.Default()
	cfg.Purity.Members = []string{"ArgumentException.ctor"}
	rep := runScenarios(t, cfg)["D"]
	c := rep.Cases[0]
	if c.Output != "42" {
		t.Errorf("expected 42, got %s", c.Output)
	}
	if !c.Agree || c.Before.Value != int32(42) {
		t.Errorf("expected both runs to yield 42, got %s and %s", c.Before, c.After)
	}
}

func TestUnknownPurityMember(t *testing.T) {
	cfg := config.Default()
	cfg.Purity.Members = []string{"Nope.Nothing"}
	if _, err := newRunner(cfg, zap.NewNop()); err == nil || !strings.Contains(err.Error(), "Nope.Nothing") {
		t.Errorf("expected unknown member error, got %v", err)
	}
}

func TestJSONOutput(t *testing.T) {
	r, err := newRunner(config.Default(), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	s, _ := findScenario("A")
	reports, err := r.runAll([]scenario{s})
	if err != nil {
		t.Fatal(err)
	}
	var buf bytes.Buffer
	if err := writeJSON(&buf, reports); err != nil {
		t.Fatal(err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 1 || decoded[0]["scenario"] != "A" {
		t.Errorf("expected scenario A, got %v", decoded)
	}
	if _, ok := decoded[0]["stats"]; ok {
		t.Error("expected stats to be omitted")
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	writeText(&buf, []Report{{
		Scenario: "A",
		Title:    "additive identity",
		Cases: []Case{{
			Input:  "(1 + 0)",
			Output: "1",
			Before: Result{Value: int32(1)},
			After:  Result{Value: int32(1)},
			Agree:  true,
		}},
	}}, painter{})
	out := buf.String()
	for _, want := range []string{"=== Scenario A: additive identity ===", "output: 1", "before: 1"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestPainter(t *testing.T) {
	if got := (painter{}).mismatch("x"); got != "x" {
		t.Errorf("expected plain text, got %q", got)
	}
	if got := (painter{enabled: true}).output("x"); got != "\033[32mx\033[0m" {
		t.Errorf("expected green text, got %q", got)
	}
	t.Setenv("NO_COLOR", "1")
	if detectColor().enabled {
		t.Error("expected NO_COLOR to disable colors")
	}
}
