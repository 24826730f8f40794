// pkg/errors/errors_test.go
// TEST TYPE: Unit Test
// DEPENDENCIES: None
// PURPOSE: Test error creation, wrapping, and utility functions

package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/arthur-debert/solodeploy/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    errors.ErrorCode
		message string
		wantStr string
	}{
		{
			name:    "not_found_error",
			code:    errors.ErrNotFound,
			message: "role not found",
			wantStr: "[NOT_FOUND] role not found",
		},
		{
			name:    "descriptor_error",
			code:    errors.ErrDescriptorInvalid,
			message: "missing repository",
			wantStr: "[DESCRIPTOR_INVALID] missing repository",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := errors.New(tt.code, tt.message)

			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.message, err.Message)
			assert.NotNil(t, err.Details)
			assert.Equal(t, tt.wantStr, err.Error())
		})
	}
}

func TestNewf(t *testing.T) {
	err := errors.Newf(errors.ErrTransfer, "upload to %s failed after %d bytes", "web1", 512)
	assert.Equal(t, "upload to web1 failed after 512 bytes", err.Message)
}

func TestWrap(t *testing.T) {
	baseErr := stderrors.New("base error")

	t.Run("wrap_non_nil_error", func(t *testing.T) {
		err := errors.Wrap(baseErr, errors.ErrFetch, "checkout failed")

		assert.Equal(t, errors.ErrFetch, err.Code)
		assert.Same(t, baseErr, err.Wrapped)
		assert.Equal(t, "[FETCH] checkout failed: base error", err.Error())
	})

	t.Run("wrap_nil_error_returns_nil", func(t *testing.T) {
		assert.Nil(t, errors.Wrap(nil, errors.ErrFetch, "checkout failed"))
		assert.Nil(t, errors.Wrapf(nil, errors.ErrFetch, "checkout %s failed", "x"))
	})
}

func TestWithDetails(t *testing.T) {
	err := errors.New(errors.ErrInstall, "swap failed").
		WithDetail("host", "web1").
		WithDetails(map[string]interface{}{
			"destination": "/home/deploy/chef/cookbooks",
		})

	assert.Equal(t, "web1", err.Details["host"])
	assert.Equal(t, "/home/deploy/chef/cookbooks", err.Details["destination"])
	assert.Equal(t, err.Details, errors.GetErrorDetails(err))
}

func TestIs(t *testing.T) {
	err1 := errors.New(errors.ErrConnection, "error 1")
	err2 := errors.New(errors.ErrConnection, "error 2")
	err3 := errors.New(errors.ErrInternal, "error 3")

	assert.True(t, err1.Is(err2))
	assert.False(t, err1.Is(err3))
	assert.True(t, stderrors.Is(err1, err2))
}

func TestIsErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		code     errors.ErrorCode
		expected bool
	}{
		{
			name:     "matching_code",
			err:      errors.New(errors.ErrNotFound, "not found"),
			code:     errors.ErrNotFound,
			expected: true,
		},
		{
			name:     "different_code",
			err:      errors.New(errors.ErrNotFound, "not found"),
			code:     errors.ErrInternal,
			expected: false,
		},
		{
			name:     "wrapped_error",
			err:      errors.Wrap(stderrors.New("base"), errors.ErrRemoteCommand, "exit 1"),
			code:     errors.ErrRemoteCommand,
			expected: true,
		},
		{
			name:     "standard_error",
			err:      stderrors.New("standard error"),
			code:     errors.ErrNotFound,
			expected: false,
		},
		{
			name:     "nil_error",
			err:      nil,
			code:     errors.ErrNotFound,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, errors.IsErrorCode(tt.err, tt.code))
		})
	}
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, errors.ErrStage, errors.GetErrorCode(errors.New(errors.ErrStage, "x")))
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(stderrors.New("plain")))
	assert.Equal(t, errors.ErrUnknown, errors.GetErrorCode(nil))
}

func TestErrorChaining(t *testing.T) {
	rootCause := stderrors.New("root cause")
	transferErr := errors.Wrap(rootCause, errors.ErrTransfer, "cannot upload archive")
	hostErr := errors.Wrap(transferErr, errors.ErrInstall, "update failed")

	assert.True(t, errors.IsErrorCode(hostErr, errors.ErrInstall))

	var middle *errors.SoloError
	require.True(t, stderrors.As(hostErr.Unwrap(), &middle))
	assert.Equal(t, errors.ErrTransfer, middle.Code)

	assert.True(t, stderrors.Is(hostErr, rootCause))
}
