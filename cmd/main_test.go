package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestAskMatchedQuestion(t *testing.T) {
	out, err := execute(t, "ask", "Send", "to", "Lab", "button", "is", "disabled")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	for _, want := range []string{"send-to-lab", "Steps:", "1. Complete the sample details", "rule pass"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestAskOrdinalLabels(t *testing.T) {
	out, err := execute(t, "ask", "--step-labels", "ordinal", "I can't create an audit")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if !strings.Contains(out, "1. Step 1") {
		t.Fatalf("expected ordinal step labels:\n%s", out)
	}
	if _, err := execute(t, "ask", "--step-labels", "roman", "audit"); err == nil {
		t.Fatal("expected unknown label mode to fail")
	}
}

func TestAskUnmatchedQuestion(t *testing.T) {
	out, err := execute(t, "ask", "asdkjfhaskldjfh nonsense")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if !strings.Contains(out, "couldn't find a guide") || strings.Contains(out, "Steps:") {
		t.Fatalf("unexpected output for unmatched question:\n%s", out)
	}
}

func TestCatalogCheck(t *testing.T) {
	out, err := execute(t, "catalog", "check")
	if err != nil {
		t.Fatalf("catalog check failed: %v", err)
	}
	if !strings.Contains(out, "articles: 10") || !strings.HasSuffix(strings.TrimSpace(out), "ok") {
		t.Fatalf("unexpected catalog check output:\n%s", out)
	}

	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
articles:
  - id: lonely
    title: Lonely article
    steps:
      - action: do it
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog failed: %v", err)
	}
	out, err = execute(t, "catalog", "check", path)
	if err != nil {
		t.Fatalf("catalog check failed: %v", err)
	}
	if !strings.Contains(out, "warning: article lonely has no intent rule") {
		t.Fatalf("expected unreachable warning:\n%s", out)
	}

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(bad, []byte("articles:\n  - id: x\n    title: X\n"), 0o644); err != nil {
		t.Fatalf("write bad catalog failed: %v", err)
	}
	if _, err := execute(t, "catalog", "check", bad); err == nil {
		t.Fatal("expected invalid catalog to fail")
	}
}

func TestLoadAndValidateConfig(t *testing.T) {
	cfg, err := loadAndValidateConfig("")
	if err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
	if cfg.APIBind == "" {
		t.Fatal("default api bind missing")
	}

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("step_labels: roman\n"), 0o644); err != nil {
		t.Fatalf("write config failed: %v", err)
	}
	if _, err := loadAndValidateConfig(path); err == nil {
		t.Fatal("expected invalid step labels to fail validation")
	}
}
