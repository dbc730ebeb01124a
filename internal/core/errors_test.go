package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKindMatching(t *testing.T) {
	err := fmt.Errorf("commit turn: %w", E(PersistenceFailure, "add turn", errors.New("disk full")))

	assert.True(t, errors.Is(err, ErrPersistenceFailure))
	assert.False(t, errors.Is(err, ErrCancelled))
	assert.Equal(t, PersistenceFailure, KindOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "nil", err: nil, want: KindUnknown},
		{name: "plain", err: errors.New("boom"), want: KindUnknown},
		{name: "context canceled", err: fmt.Errorf("infer: %w", context.Canceled), want: Cancelled},
		{name: "deadline", err: context.DeadlineExceeded, want: Cancelled},
		{name: "sentinel", err: ErrInferenceFailure, want: InferenceFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "cancelled", ErrCancelled.Error())
	assert.Equal(t, "infer: inference failure", E(InferenceFailure, "infer", nil).Error())
	assert.Equal(t, "unknown tool: nope", E(ToolUnknown, "", errors.New("nope")).Error())
}
