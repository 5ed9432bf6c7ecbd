package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorMessage(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "WithoutCause",
			err:  New(ErrCodeInvalidConfig, "bad value for %q", "exclude_features"),
			want: `INVALID_CONFIG: bad value for "exclude_features"`,
		},
		{
			name: "WithCause",
			err:  Wrap(ErrCodeInvalidManifest, stderrors.New("unexpected token"), "parse Cargo.toml"),
			want: "INVALID_MANIFEST: parse Cargo.toml: unexpected token",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIs(t *testing.T) {
	err := New(ErrCodeTooManyCombinations, "2^25 combinations")

	if !Is(err, ErrCodeTooManyCombinations) {
		t.Error("Is() = false for matching code")
	}
	if Is(err, ErrCodeInternal) {
		t.Error("Is() = true for non-matching code")
	}
	if Is(stderrors.New("plain"), ErrCodeInternal) {
		t.Error("Is() = true for plain error")
	}

	// Codes survive fmt wrapping.
	wrapped := fmt.Errorf("loading workspace: %w", err)
	if !Is(wrapped, ErrCodeTooManyCombinations) {
		t.Error("Is() = false for wrapped error")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("no such file")
	err := Wrap(ErrCodeManifestNotFound, cause, "open manifest")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is() does not find the cause")
	}
	if got := GetCode(err); got != ErrCodeManifestNotFound {
		t.Errorf("GetCode() = %q, want %q", got, ErrCodeManifestNotFound)
	}
}

func TestUserMessage(t *testing.T) {
	err := New(ErrCodeInvalidConfig, "wrong type for skip_feature_sets")
	if got := UserMessage(err); strings.Contains(got, "INVALID_CONFIG") {
		t.Errorf("UserMessage() = %q, should not contain the code", got)
	}
	plain := stderrors.New("plain failure")
	if got := UserMessage(plain); got != "plain failure" {
		t.Errorf("UserMessage() = %q, want %q", got, "plain failure")
	}
}
