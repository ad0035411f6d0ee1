package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinels_MatchThroughWrapping(t *testing.T) {
	sentinels := []error{
		ErrorNotFound, ErrEmptySelection, ErrCategoryRequired, ErrFileTooLarge,
		ErrUploadCancelled, ErrInvalidArchive, ErrBatchInProgress, ErrBatchFailed, ErrWebhookRejected,
	}
	for _, s := range sentinels {
		wrapped := fmt.Errorf("ctx: %w", s)
		if !errors.Is(wrapped, s) {
			t.Fatalf("errors.Is failed for %v", s)
		}
	}
	if errors.Is(ErrUploadCancelled, ErrBatchFailed) {
		t.Fatalf("distinct sentinels must not match")
	}
}
