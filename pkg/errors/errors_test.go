package errors

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestErrorFormat(t *testing.T) {
	err := New(ErrCodeUnresolvable, "failed to download %s", "g:a:1.0")
	if got, want := err.Error(), "UNRESOLVABLE_ARTIFACT: failed to download g:a:1.0"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}

	wrapped := Wrap(ErrCodeInvalidManifest, io.ErrUnexpectedEOF, "parse %s", "mods/a.jar!/deps.json")
	if got, want := wrapped.Error(), "INVALID_MANIFEST: parse mods/a.jar!/deps.json: unexpected EOF"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestWrapKeepsCause(t *testing.T) {
	err := fmt.Errorf("fetch g:a:1.0: %w", Wrap(ErrCodeNetwork, io.ErrUnexpectedEOF, "download"))

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause lost through wrapping")
	}
	if !Is(err, ErrCodeNetwork) {
		t.Errorf("GetCode() = %q, want %q", GetCode(err), ErrCodeNetwork)
	}
}

func TestSentinelIdentity(t *testing.T) {
	sentinel := New(ErrCodeNotFound, "not in repository")
	err := fmt.Errorf("https://repo/g/a/1.0/a-1.0.jar: %w", sentinel)

	if !errors.Is(err, sentinel) {
		t.Error("errors.Is lost the sentinel")
	}
	if errors.Is(err, New(ErrCodeNotFound, "not in repository")) {
		t.Error("distinct errors with the same code compared equal")
	}
}

func TestIsAndGetCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
		want bool
	}{
		{"direct", New(ErrCodeChecksumMismatch, "bad"), ErrCodeChecksumMismatch, true},
		{"other code", New(ErrCodeChecksumMismatch, "bad"), ErrCodeNetwork, false},
		{"outermost wins", Wrap(ErrCodeUnresolvable, New(ErrCodeNetwork, "inner"), "outer"), ErrCodeNetwork, false},
		{"behind fmt wrap", fmt.Errorf("x: %w", New(ErrCodeDownloadsDisabled, "off")), ErrCodeDownloadsDisabled, true},
		{"plain", errors.New("plain"), ErrCodeInternal, false},
		{"empty code", errors.New("plain"), "", false},
		{"nil", nil, ErrCodeInternal, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Is(tt.err, tt.code); got != tt.want {
				t.Errorf("Is() = %v, want %v (code %q)", got, tt.want, GetCode(tt.err))
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	if got := UserMessage(New(ErrCodeDownloadsDisabled, "Failed to download library g:a:1.0 from any repository! (downloads disabled)")); got != "Failed to download library g:a:1.0 from any repository! (downloads disabled)" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(fmt.Errorf("ctx: %w", New(ErrCodeRestartRequired, "restart"))); got != "restart" {
		t.Errorf("UserMessage() = %q", got)
	}
	if got := UserMessage(errors.New("plain error")); got != "plain error" {
		t.Errorf("UserMessage() = %q", got)
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{New(ErrCodeDownloadsDisabled, "off"), true},
		{New(ErrCodeUnresolvable, "gone"), true},
		{New(ErrCodeRestartRequired, "restart"), true},
		{fmt.Errorf("fetch: %w", New(ErrCodeUnresolvable, "gone")), true},
		{Wrap(ErrCodeInternal, New(ErrCodeRestartRequired, "restart"), "outer"), false},
		{New(ErrCodeChecksumMismatch, "bad"), false},
		{New(ErrCodeNotFound, "missing"), false},
		{errors.New("plain"), false},
		{nil, false},
	}

	for _, tt := range tests {
		if got := IsFatal(tt.err); got != tt.want {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
