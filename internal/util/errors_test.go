package util

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestMultiError(t *testing.T) {
	t.Run("empty multi-error", func(t *testing.T) {
		m := &MultiError{}
		if m.ErrorOrNil() != nil {
			t.Error("expected nil for empty multi-error")
		}
	})

	t.Run("single error", func(t *testing.T) {
		err := errors.New("test error")
		m := NewMultiError([]error{err})

		if m.Error() != "test error" {
			t.Errorf("expected %q, got %q", "test error", m.Error())
		}
	})

	t.Run("multiple errors", func(t *testing.T) {
		m := NewMultiError([]error{
			errors.New("error 1"),
			nil,
			errors.New("error 2"),
		})

		if len(m.Errors) != 2 {
			t.Fatalf("expected nil errors to be filtered, got %d", len(m.Errors))
		}
		msg := m.Error()
		if !strings.Contains(msg, "2 errors occurred") {
			t.Errorf("expected count in message, got %q", msg)
		}
	})

	t.Run("truncates long lists", func(t *testing.T) {
		m := &MultiError{}
		for i := 0; i < 15; i++ {
			m.Add(fmt.Errorf("node %d", i))
		}
		m.Add(nil)

		if len(m.Errors) != 15 {
			t.Fatalf("expected 15 errors, got %d", len(m.Errors))
		}
		if !strings.Contains(m.Error(), "and 5 more errors") {
			t.Errorf("expected truncation note, got %q", m.Error())
		}
	})
}

func TestMultiErrorUnwrap(t *testing.T) {
	target := errors.New("submission refused")
	m := NewMultiError([]error{errors.New("other"), fmt.Errorf("node 2: %w", target)})

	if !errors.Is(m, target) {
		t.Error("expected errors.Is to find wrapped error")
	}
}

func TestValidationError(t *testing.T) {
	err := NewValidationError("execution_control.nodes", 0, "must be positive")

	want := `validation failed for field "execution_control.nodes" (value: 0): must be positive`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}

	if !errors.Is(err, ErrInvalidConfig) {
		t.Error("expected validation errors to match ErrInvalidConfig")
	}

	noValue := NewValidationError("name", nil, "is required")
	if noValue.Error() != `validation failed for field "name": is required` {
		t.Errorf("unexpected message %q", noValue.Error())
	}
}

func TestFriendlyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{name: "nil", err: nil, contains: ""},
		{name: "timeout", err: fmt.Errorf("submit: %w", ErrTimeout), contains: "timed out"},
		{name: "cancelled", err: ErrCancelled, contains: "cancelled"},
		{name: "dataset", err: fmt.Errorf("read ghi: %w", ErrDatasetNotFound), contains: "Dataset not found"},
		{name: "read only", err: ErrReadOnly, contains: "read-only"},
		{name: "config", err: NewValidationError("name", nil, "is required"), contains: "Invalid configuration"},
		{name: "unknown", err: errors.New("boom"), contains: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FriendlyError(tt.err)
			if tt.contains == "" {
				if got != "" {
					t.Errorf("expected empty message, got %q", got)
				}
				return
			}
			if !strings.Contains(got, tt.contains) {
				t.Errorf("expected %q to contain %q", got, tt.contains)
			}
		})
	}
}

func TestCombineErrors(t *testing.T) {
	if err := CombineErrors(nil, nil); err != nil {
		t.Errorf("expected nil, got %v", err)
	}

	err := CombineErrors(nil, errors.New("a"), errors.New("b"))
	var m *MultiError
	if !errors.As(err, &m) || len(m.Errors) != 2 {
		t.Errorf("expected MultiError with 2 errors, got %v", err)
	}
}

func TestWrapErrorf(t *testing.T) {
	if WrapErrorf(nil, "ignored") != nil {
		t.Error("expected nil when wrapping nil")
	}

	base := errors.New("disk full")
	err := WrapErrorf(base, "failed to write %s", "ghi_summary.csv")
	if err.Error() != "failed to write ghi_summary.csv: disk full" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if !errors.Is(err, base) {
		t.Error("expected wrapped error to unwrap to base")
	}
}
