package jobs

import (
	"errors"
	"fmt"
	"testing"
)

func TestPermanent(t *testing.T) {
	base := errors.New("missing column")
	wrapped := fmt.Errorf("handler: %w", Permanent(base))

	if !IsPermanent(wrapped) {
		t.Error("IsPermanent() = false for wrapped permanent error")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Permanent should unwrap to the original error")
	}
	if IsPermanent(base) {
		t.Error("IsPermanent() = true for plain error")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}
}
