package classify

import (
	"testing"

	"sentryvision/internal/model"
)

func TestExtractPlainObject(t *testing.T) {
	var d model.ClassificationDecision
	err := ExtractJSONObject(`{"flag": true, "severity": "High", "reason": "crash"}`, &d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Flag || d.Severity != "High" || d.Reason != "crash" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestExtractWithSurroundingProse(t *testing.T) {
	text := `Sure! Based on the evidence, here is my answer:
{"flag": true, "severity": "Medium", "reason": "unusual motion"}
Let me know if you need anything else.`
	var d model.ClassificationDecision
	if err := ExtractJSONObject(text, &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Flag || d.Severity != "Medium" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestExtractBracesInsideStrings(t *testing.T) {
	text := `{"flag": false, "severity": "Low", "reason": "pattern {x} looked like \"noise\""}`
	var d model.ClassificationDecision
	if err := ExtractJSONObject(text, &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Reason != `pattern {x} looked like "noise"` {
		t.Fatalf("unexpected reason: %q", d.Reason)
	}
}

func TestExtractSkipsUnparseableSpans(t *testing.T) {
	text := `{this is not json} but {"flag": true, "severity": "Low", "reason": "ok"} follows`
	var d model.ClassificationDecision
	if err := ExtractJSONObject(text, &d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !d.Flag || d.Reason != "ok" {
		t.Fatalf("unexpected decision: %+v", d)
	}
}

func TestExtractNoObject(t *testing.T) {
	var d model.ClassificationDecision
	if err := ExtractJSONObject("no structured data here", &d); err == nil {
		t.Fatalf("expected error for text without object")
	}
	if err := ExtractJSONObject("unbalanced { to the end", &d); err == nil {
		t.Fatalf("expected error for unbalanced text")
	}
}
