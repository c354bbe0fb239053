package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/fleveque/fundamentals-analyzer/internal/config"
	"github.com/fleveque/fundamentals-analyzer/internal/flow"
	"github.com/fleveque/fundamentals-analyzer/internal/model"
)

func TestParseSections(t *testing.T) {
	keys, err := parseSections([]string{"quick_stats", " risk_analysis ", ""})
	if err != nil {
		t.Fatalf("parseSections: %v", err)
	}
	want := []model.SectionKey{model.SectionQuickStats, model.SectionRiskAnalysis}
	if len(keys) != len(want) || keys[0] != want[0] || keys[1] != want[1] {
		t.Errorf("got %v, want %v", keys, want)
	}

	if _, err := parseSections([]string{"valuation"}); err == nil {
		t.Error("expected error for unknown section")
	}
}

func TestPrintProviders(t *testing.T) {
	var buf bytes.Buffer
	printProviders(&buf, config.NewSecretStoreFromMap(map[string]string{"GROQ_API_KEY": "gsk"}))
	out := buf.String()

	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 providers, got %d:\n%s", len(lines), out)
	}
	if !strings.HasPrefix(lines[0], "groq") || !strings.Contains(lines[0], "GROQ_API_KEY set") {
		t.Errorf("unexpected groq line: %q", lines[0])
	}
	if !strings.Contains(lines[1], "no key needed") {
		t.Errorf("ollama needs no key: %q", lines[1])
	}
}

func TestSankeyCommand_SampleJSON(t *testing.T) {
	t.Setenv("FUNDAMENTALS_LLM_SECRETS_FILE", t.TempDir()+"/none.env")

	var buf bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"sankey", "--format", "json"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sankey: %v", err)
	}

	var g flow.Graph
	if err := json.Unmarshal(buf.Bytes(), &g); err != nil {
		t.Fatalf("decoding output: %v", err)
	}
	if !g.Fallback || g.Title != flow.SampleTitle {
		t.Errorf("expected the sample graph, got %q (fallback=%v)", g.Title, g.Fallback)
	}
}

func TestSectionsCommand(t *testing.T) {
	var buf bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&buf)
	cmd.SetArgs([]string{"sections"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("sections: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != len(model.AllSections) {
		t.Fatalf("expected %d sections, got %d", len(model.AllSections), len(lines))
	}
	if !strings.HasPrefix(lines[0], "quick_stats") {
		t.Errorf("expected quick_stats first, got %q", lines[0])
	}
}
