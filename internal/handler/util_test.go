package handler

import "testing"

func TestParseInt64_Valid(t *testing.T) {
	n, ok := parseInt64("42")
	if !ok || n != 42 {
		t.Errorf("parseInt64(42) = (%d, %v), want (42, true)", n, ok)
	}
}

func TestParseInt64_Invalid(t *testing.T) {
	if _, ok := parseInt64("not-a-number"); ok {
		t.Error("parseInt64 should reject non-numeric input")
	}
}

func TestParseInt64_Empty(t *testing.T) {
	if _, ok := parseInt64(""); ok {
		t.Error("parseInt64 should reject empty input")
	}
}
