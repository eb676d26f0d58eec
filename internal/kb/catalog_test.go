package kb

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaultCatalog(t *testing.T) {
	c, err := LoadDefault()
	if err != nil {
		t.Fatalf("load default catalog failed: %v", err)
	}
	if c.Len() == 0 {
		t.Fatal("expected default catalog to contain articles")
	}
	seen := make(map[string]struct{}, c.Len())
	for _, article := range c.Articles() {
		if _, ok := seen[article.ID]; ok {
			t.Fatalf("duplicate article id %s", article.ID)
		}
		seen[article.ID] = struct{}{}
		if len(article.Steps) == 0 {
			t.Fatalf("article %s has no steps", article.ID)
		}
	}
	for _, id := range []string{"send-to-lab", "create-audit"} {
		if _, err := c.Get(id); err != nil {
			t.Fatalf("expected article %s in default catalog: %v", id, err)
		}
	}
	if len(c.Suggestions()) == 0 {
		t.Fatal("expected default suggestions")
	}
}

func TestNewRejectsInvalidArticles(t *testing.T) {
	step := []Step{{Action: "do it"}}
	cases := []struct {
		name     string
		articles []Article
		rules    []IntentRule
	}{
		{
			name:     "duplicate id",
			articles: []Article{{ID: "a", Title: "A", Steps: step}, {ID: " a ", Title: "A2", Steps: step}},
		},
		{
			name:     "missing steps",
			articles: []Article{{ID: "a", Title: "A"}},
		},
		{
			name:     "blank step action",
			articles: []Article{{ID: "a", Title: "A", Steps: []Step{{Action: "  "}}}},
		},
		{
			name:     "missing title",
			articles: []Article{{ID: "a", Steps: step}},
		},
		{
			name:     "unknown priority",
			articles: []Article{{ID: "a", Title: "A", Steps: step, Diagnostics: Diagnostics{Priority: "urgent"}}},
		},
		{
			name:     "unknown related article",
			articles: []Article{{ID: "a", Title: "A", Steps: step, Diagnostics: Diagnostics{Related: []string{"b"}}}},
		},
		{
			name:     "rule targets unknown article",
			articles: []Article{{ID: "a", Title: "A", Steps: step}},
			rules:    []IntentRule{{ArticleID: "b", Triggers: []string{"x"}}},
		},
		{
			name:     "rule without triggers",
			articles: []Article{{ID: "a", Title: "A", Steps: step}},
			rules:    []IntentRule{{ArticleID: "a", Triggers: []string{" ", ""}}},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.articles, tc.rules, nil)
			if !errors.Is(err, ErrInvalidCatalog) {
				t.Fatalf("expected ErrInvalidCatalog, got %v", err)
			}
		})
	}
}

func TestCatalogIsImmutable(t *testing.T) {
	articles := []Article{{
		ID:     "a",
		Title:  "A",
		Causes: []string{"cause"},
		Steps:  []Step{{Action: "first"}},
		Tags:   []string{"Tag"},
	}}
	c, err := New(articles, []IntentRule{{ArticleID: "a", Triggers: []string{"Hello World"}}}, nil)
	if err != nil {
		t.Fatalf("new catalog failed: %v", err)
	}
	articles[0].Steps[0].Action = "mutated"

	got, err := c.Get("a")
	if err != nil {
		t.Fatalf("get article failed: %v", err)
	}
	if got.Steps[0].Action != "first" {
		t.Fatalf("catalog should not share caller slices, got %q", got.Steps[0].Action)
	}
	got.Causes[0] = "mutated"
	again, _ := c.Get("a")
	if again.Causes[0] != "cause" {
		t.Fatalf("Get should return a copy, got %q", again.Causes[0])
	}
	if again.Tags[0] != "tag" {
		t.Fatalf("tags should be lowercased, got %q", again.Tags[0])
	}
	if again.Diagnostics.Priority != PriorityMedium {
		t.Fatalf("empty priority should default to medium, got %q", again.Diagnostics.Priority)
	}
	rules := c.Rules()
	if rules[0].Triggers[0] != "hello world" {
		t.Fatalf("triggers should be lowercased, got %q", rules[0].Triggers[0])
	}
}

func TestGetUnknownArticle(t *testing.T) {
	c, err := LoadDefault()
	if err != nil {
		t.Fatalf("load default catalog failed: %v", err)
	}
	if _, err := c.Get("does-not-exist"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	content := `
suggestions: ["hello"]
articles:
  - id: only
    title: Only article
    intent: do the only thing
    steps:
      - action: step one
    diagnostics:
      priority: low
rules:
  - article: only
    triggers: ["only"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write catalog failed: %v", err)
	}
	c, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load catalog file failed: %v", err)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 article, got %d", c.Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing catalog file")
	}

	badPath := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(badPath, []byte("articles:\n  - id: x\n    unknown_field: 1\n"), 0o644); err != nil {
		t.Fatalf("write bad catalog failed: %v", err)
	}
	if _, err := LoadFile(badPath); !errors.Is(err, ErrInvalidCatalog) {
		t.Fatalf("expected ErrInvalidCatalog for unknown field, got %v", err)
	}
}
