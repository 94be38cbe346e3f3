package main

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/s3desk/s3desk/errors"
)

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, 0},
		{"cancelled transfer", errors.NewObjectError("upload", "b", "k", errors.ErrCancelled), 130},
		{"interrupted context", fmt.Errorf("list: %w", context.Canceled), 130},
		{"bad input", errors.NewError("rename", errors.ErrInvalidInput), 2},
		{"other failure", errors.ErrObjectNotFound, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}
