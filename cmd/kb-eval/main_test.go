package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"carlos-assist/internal/store"
)

func TestHitrateDefaultSamplesPassGates(t *testing.T) {
	var out bytes.Buffer
	report := filepath.Join(t.TempDir(), "report.csv")
	if err := runHitrate(&out, filepath.FromSlash("../../docs/kb/hitrate_samples.json"), "", report); err != nil {
		t.Fatalf("default samples should pass gates: %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Hitrate : 20/20") {
		t.Fatalf("unexpected summary:\n%s", out.String())
	}

	f, err := os.Open(report)
	if err != nil {
		t.Fatalf("open report failed: %v", err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read report failed: %v", err)
	}
	if len(rows) != 21 {
		t.Fatalf("expected header plus 20 rows, got %d", len(rows))
	}
	if rows[1][2] != "send-to-lab" || rows[1][5] != "true" {
		t.Fatalf("unexpected first report row: %v", rows[1])
	}
}

func TestHitrateFailsGate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "samples.json")
	samples := `[
  {"question": "Send to Lab button is disabled", "expectAny": ["send-to-lab"]},
  {"question": "Send to Lab button is disabled", "expectAny": ["create-audit"]}
]`
	if err := os.WriteFile(path, []byte(samples), 0o644); err != nil {
		t.Fatalf("write samples failed: %v", err)
	}
	var out bytes.Buffer
	err := runHitrate(&out, path, "", "")
	if !errors.Is(err, errGateFailed) {
		t.Fatalf("expected gate failure, got %v", err)
	}
	if !strings.Contains(out.String(), "=> miss") {
		t.Fatalf("expected a miss line:\n%s", out.String())
	}
}

func TestEvaluateEmptyExpectationMeansClarify(t *testing.T) {
	summary := summarize([]sampleResult{
		{Question: "a", Hit: true, Pass: "rule"},
		{Question: "b", Hit: true, Pass: "content"},
	})
	if summary.HitRatio != 1 || summary.FallbackRatio != 0.5 {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	path := filepath.Join(t.TempDir(), "samples.json")
	if err := os.WriteFile(path, []byte(`[{"question": "asdkjfhaskldjfh nonsense"}]`), 0o644); err != nil {
		t.Fatalf("write samples failed: %v", err)
	}
	var out bytes.Buffer
	if err := runHitrate(&out, path, "", ""); err != nil {
		t.Fatalf("unmatched question with no expectation should count as hit: %v", err)
	}
}

func TestLoadSamplesRejectsInvalidInput(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte(`[]`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := loadSamples(empty); err == nil {
		t.Fatal("expected error for empty samples")
	}
	blank := filepath.Join(dir, "blank.json")
	if err := os.WriteFile(blank, []byte(`[{"question": "  "}]`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if _, err := loadSamples(blank); err == nil {
		t.Fatal("expected error for blank question")
	}
	if _, err := loadSamples(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestArchiveSummary(t *testing.T) {
	dir := t.TempDir()
	archive, err := store.NewStore(dir)
	if err != nil {
		t.Fatalf("open store failed: %v", err)
	}
	ctx := context.Background()
	events := []store.MatchEvent{
		{SessionID: "s1", Query: "send to lab", Pass: "rule", ArticleID: "send-to-lab", Hits: 2, At: time.Now()},
		{SessionID: "s1", Query: "nonsense", Pass: "none", At: time.Now()},
	}
	for _, event := range events {
		if err := archive.RecordMatch(ctx, event); err != nil {
			t.Fatalf("record match failed: %v", err)
		}
	}
	if err := archive.Close(); err != nil {
		t.Fatalf("close store failed: %v", err)
	}

	var out bytes.Buffer
	if err := runArchive(ctx, &out, dir); err != nil {
		t.Fatalf("archive summary failed: %v", err)
	}
	for _, want := range []string{"Replies : 2", "Hitrate : 50.00%", "Top     : send-to-lab x1", "Tickets : 0"} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("output missing %q:\n%s", want, out.String())
		}
	}
}
