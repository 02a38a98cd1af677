package wxerrors

import (
	"errors"
	"strings"
	"testing"
)

func TestKindString(t *testing.T) {
	cases := []struct {
		k    Kind
		want string
	}{
		{KindConfig, "ConfigError"},
		{KindFetch, "FetchError"},
		{KindDataDecode, "DataDecodeError"},
		{KindMissingField, "MissingFieldError"},
		{KindRegionMismatch, "RegionMismatchError"},
		{KindRender, "RenderError"},
		{KindCancelled, "CancelledError"},
		{KindUnknown, "UnknownError"},
	}
	for _, c := range cases {
		if got := c.k.String(); got != c.want {
			t.Errorf("%v.String() = %q, want %q", int(c.k), got, c.want)
		}
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := New(KindFetch, "gfs025", "2026073100", 6, "temp_2m", cause)
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to find the wrapped cause")
	}
	if errors.Unwrap(err) != cause {
		t.Error("Unwrap should return the original cause")
	}
}

func TestErrorMessageContainsContext(t *testing.T) {
	err := New(KindMissingField, "gfs025", "2026073100", 6, "snow_total", errors.New("no csnow"))
	msg := err.Error()
	for _, want := range []string{"gfs025", "2026073100", "snow_total", "fh=006", "no csnow"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error() = %q, expected to contain %q", msg, want)
		}
	}
}

func TestKindOfUnclassifiedErrorIsUnknown(t *testing.T) {
	if got := KindOf(errors.New("plain")); got != KindUnknown {
		t.Errorf("KindOf(plain) = %v, want KindUnknown", got)
	}
}

func TestRecoverable(t *testing.T) {
	cases := []struct {
		kind Kind
		want bool
	}{
		{KindFetch, true},
		{KindMissingField, true},
		{KindDataDecode, true},
		{KindRender, true},
		{KindConfig, false},
		{KindRegionMismatch, false},
		{KindCancelled, false},
	}
	for _, c := range cases {
		err := New(c.kind, "m", "r", 0, "v", nil)
		if got := Recoverable(err); got != c.want {
			t.Errorf("Recoverable(%v) = %v, want %v", c.kind, got, c.want)
		}
	}
}
