package errors_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	svcErr "github.com/oggyb/pupmatch/internal/errors"
)

func TestMap(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{"validation", svcErr.Validation("latitude %v out of range", 91), codes.InvalidArgument},
		{"gorm not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), codes.NotFound},
		{"not found", svcErr.NotFound("match"), codes.NotFound},
		{"blocked", svcErr.ErrBlocked, codes.FailedPrecondition},
		{"conflict", svcErr.Conflict("profile exists"), codes.AlreadyExists},
		{"deadline", context.DeadlineExceeded, codes.DeadlineExceeded},
		{"canceled", context.Canceled, codes.Canceled},
		{"unavailable", svcErr.Unavailable("mysql", fmt.Errorf("dial tcp")), codes.Unavailable},
		{"other", fmt.Errorf("boom"), codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, ok := status.FromError(svcErr.Map(tt.err))
			assert.True(t, ok)
			assert.Equal(t, tt.want, st.Code())
		})
	}
}

func TestMap_PassesThroughStatus(t *testing.T) {
	in := svcErr.InvalidArgument("bad id")
	assert.Equal(t, in, svcErr.Map(in))
	assert.Nil(t, svcErr.Map(nil))
}

func TestUnavailable_KeepsCause(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := svcErr.Unavailable("redis", cause)

	assert.ErrorIs(t, err, svcErr.ErrDependencyUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.Nil(t, svcErr.Unavailable("redis", nil))
}
