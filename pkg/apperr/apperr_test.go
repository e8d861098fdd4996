package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestUserMessage(t *testing.T) {
	direct := NotFound("User not found")
	wrapped := fmt.Errorf("loading sender: %w", direct)
	plain := errors.New("disk on fire")

	tests := []struct {
		name string
		err  error
		want string
	}{
		{"direct app error", direct, "User not found"},
		{"wrapped app error", wrapped, "User not found"},
		{"plain error", plain, "something went wrong"},
		{"nil error", nil, "something went wrong"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err, "something went wrong"); got != tt.want {
				t.Errorf("UserMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("row gone")
	err := Wrap(CodeInternal, "failed to load message", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	var ae *AppError
	if !errors.As(err, &ae) || ae.Code != CodeInternal {
		t.Errorf("errors.As failed or wrong code: %v", err)
	}
}
