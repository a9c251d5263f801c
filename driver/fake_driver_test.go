package driver

import (
	"context"
	"testing"
)

const sampleHTML = `
<html><head><title>Fixture Match</title></head>
<body>
  <div class="match-card">
    <span class="team-name">Manchester United</span>
    <span class="score" data-role="home-score">2</span>
  </div>
</body></html>`

func TestFakeDriverQueryOne(t *testing.T) {
	d, err := NewFakeDriver(sampleHTML, "https://example.test/match/1")
	if err != nil {
		t.Fatalf("NewFakeDriver: %v", err)
	}
	el, ok, err := d.QueryOne(context.Background(), ".team-name")
	if err != nil || !ok {
		t.Fatalf("QueryOne: ok=%v err=%v", ok, err)
	}
	if got := el.Text(); got != "Manchester United" {
		t.Fatalf("Text() = %q", got)
	}
	if got := el.TagName(); got != "span" {
		t.Fatalf("TagName() = %q", got)
	}
}

func TestFakeDriverQueryOneMiss(t *testing.T) {
	d, err := NewFakeDriver(sampleHTML, "https://example.test/match/1")
	if err != nil {
		t.Fatalf("NewFakeDriver: %v", err)
	}
	_, ok, err := d.QueryOne(context.Background(), ".nonexistent")
	if err != nil {
		t.Fatalf("QueryOne returned error: %v", err)
	}
	if ok {
		t.Fatalf("expected no match")
	}
}

func TestFakeDriverPathAndParent(t *testing.T) {
	d, err := NewFakeDriver(sampleHTML, "https://example.test/match/1")
	if err != nil {
		t.Fatalf("NewFakeDriver: %v", err)
	}
	el, ok, err := d.QueryOne(context.Background(), "[data-role='home-score']")
	if err != nil || !ok {
		t.Fatalf("QueryOne: ok=%v err=%v", ok, err)
	}
	if el.Path() == "" {
		t.Fatalf("expected non-empty path")
	}
	parent := el.Parent()
	if parent == nil || parent.TagName() != "div" {
		t.Fatalf("expected div parent, got %#v", parent)
	}
}

func TestFakeDriverEvaluateUnknownScript(t *testing.T) {
	d, err := NewFakeDriver(sampleHTML, "https://example.test/match/1")
	if err != nil {
		t.Fatalf("NewFakeDriver: %v", err)
	}
	if _, err := d.Evaluate(context.Background(), "tabs"); err == nil {
		t.Fatalf("expected error for unregistered script")
	}
	d.RegisterScript("tabs", func(ctx context.Context) (any, error) {
		return map[string]any{"active_tab": "live"}, nil
	})
	out, err := d.Evaluate(context.Background(), "tabs")
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	m, ok := out.(map[string]any)
	if !ok || m["active_tab"] != "live" {
		t.Fatalf("unexpected result: %#v", out)
	}
}
