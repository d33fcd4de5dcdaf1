package core

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	errorTests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrInvalidArgument", ErrInvalidArgument, "invalid argument"},
		{"ErrInvalidSide", ErrInvalidSide, "invalid side"},
		{"ErrInvalidQuantity", ErrInvalidQuantity, "invalid quantity"},
		{"ErrInvalidPrice", ErrInvalidPrice, "invalid price"},
		{"ErrSymbolMismatch", ErrSymbolMismatch, "symbol mismatch"},
		{"ErrDuplicateOrderID", ErrDuplicateOrderID, "duplicate order id"},
		{"ErrOrderNotFound", ErrOrderNotFound, "order not found"},
		{"ErrOrderNotCancelable", ErrOrderNotCancelable, "order not cancelable"},
		{"ErrInvalidSnapshot", ErrInvalidSnapshot, "invalid snapshot"},
		{"ErrInvalidConfig", ErrInvalidConfig, "invalid engine config"},
	}

	for _, tt := range errorTests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err == nil {
				t.Fatalf("Error %s is nil", tt.name)
			}

			if tt.err.Error() != tt.msg {
				t.Errorf("Expected error message %q, got %q", tt.msg, tt.err.Error())
			}

			// Wrapped errors must still match the sentinel
			wrapped := fmt.Errorf("order x: %w", tt.err)
			if !errors.Is(wrapped, tt.err) {
				t.Errorf("Wrapped %s does not match with errors.Is", tt.name)
			}
		})
	}
}
