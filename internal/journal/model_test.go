package journal

import (
	"errors"
	"testing"
)

func TestNewDateAcceptsCalendarDate(t *testing.T) {
	date, err := NewDate(" 2026-03-14 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if date.String() != "2026-03-14" {
		t.Fatalf("unexpected date: %s", date)
	}
}

func TestNewDateRejectsMalformedInput(t *testing.T) {
	for _, raw := range []string{"", "march 14", "2026-13-01", "2026-02-30", "14-03-2026"} {
		if _, err := NewDate(raw); !errors.Is(err, ErrInvalidDate) {
			t.Fatalf("expected ErrInvalidDate for %q, got %v", raw, err)
		}
	}
}

func TestParseAnswerKind(t *testing.T) {
	if kind, err := ParseAnswerKind(" Base "); err != nil || kind != AnswerKindBase {
		t.Fatalf("expected base kind, got %v %v", kind, err)
	}
	if kind, err := ParseAnswerKind("ai"); err != nil || kind != AnswerKindAI {
		t.Fatalf("expected ai kind, got %v %v", kind, err)
	}
	if _, err := ParseAnswerKind("manual"); !errors.Is(err, ErrInvalidAnswerKind) {
		t.Fatalf("expected ErrInvalidAnswerKind, got %v", err)
	}
}

func TestWordCountCountsWhitespaceTokens(t *testing.T) {
	if got := WordCount("Hello world.\nA new line."); got != 5 {
		t.Fatalf("expected word count 5, got %d", got)
	}
	if got := WordCount(""); got != 0 {
		t.Fatalf("expected word count 0 for empty content, got %d", got)
	}
	if got := WordCount("  spaced   out\ttokens  "); got != 3 {
		t.Fatalf("expected word count 3, got %d", got)
	}
}
