package environment

import (
	"testing"
	"time"
)

func TestStringOr(t *testing.T) {
	t.Setenv("AIKO_TEST_STR", "value")
	if got := StringOr("AIKO_TEST_STR", "fallback"); got != "value" {
		t.Errorf("StringOr() = %q, want %q", got, "value")
	}
	if got := StringOr("AIKO_TEST_STR_MISSING", "fallback"); got != "fallback" {
		t.Errorf("StringOr() = %q, want fallback", got)
	}
}

func TestRequiredString(t *testing.T) {
	t.Setenv("AIKO_TEST_REQ", "present")
	if _, err := RequiredString("AIKO_TEST_REQ"); err != nil {
		t.Errorf("RequiredString() unexpected error: %v", err)
	}
	if _, err := RequiredString("AIKO_TEST_REQ_MISSING"); err == nil {
		t.Error("RequiredString() expected error for missing variable")
	}
}

func TestIntOr(t *testing.T) {
	tests := []struct {
		name  string
		value string
		def   int
		want  int
	}{
		{"valid", "42", 7, 42},
		{"empty", "", 7, 7},
		{"garbage", "not-a-number", 7, 7},
		{"negative", "-3", 7, -3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AIKO_TEST_INT", tt.value)
			if got := IntOr("AIKO_TEST_INT", tt.def); got != tt.want {
				t.Errorf("IntOr() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDurationOr(t *testing.T) {
	t.Setenv("AIKO_TEST_DUR", "90s")
	if got := DurationOr("AIKO_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Errorf("DurationOr() = %v, want 90s", got)
	}
	t.Setenv("AIKO_TEST_DUR", "")
	if got := DurationOr("AIKO_TEST_DUR", time.Minute); got != time.Minute {
		t.Errorf("DurationOr() = %v, want default 1m", got)
	}
}

func TestStringSliceOr(t *testing.T) {
	t.Setenv("AIKO_TEST_SLICE", " a, b ,,c ")
	got := StringSliceOr("AIKO_TEST_SLICE", nil)
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("StringSliceOr() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("StringSliceOr()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
