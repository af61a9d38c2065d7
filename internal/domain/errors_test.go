package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKind(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("query job: %w", NewError(KindTransientNetwork, "status job-42", cause))

	assert.ErrorIs(t, err, ErrTransientNetwork)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrDispatchFailure)
	assert.Equal(t, KindTransientNetwork, KindOf(err))
	assert.Equal(t, ErrorKind(""), KindOf(cause))
}

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"kind only", &Error{Kind: KindConfiguration}, "ConfigurationError"},
		{"with op", &Error{Kind: KindCapabilityUnsupported, Op: "sign"}, "CapabilityUnsupported: sign"},
		{"with cause", &Error{Kind: KindDispatchFailure, Err: errors.New("rejected")}, "DispatchFailure: rejected"},
		{"with op and cause", NewError(KindDispatchFailure, "submit", errors.New("rejected")), "DispatchFailure: submit: rejected"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestEngineError(t *testing.T) {
	assert.Equal(t, "engine returned status 400: Invalid file", (&EngineError{StatusCode: 400, Message: "Invalid file"}).Error())
	assert.Equal(t, "engine returned status 503", (&EngineError{StatusCode: 503}).Error())
}

func TestClassifyTransport(t *testing.T) {
	assert.NoError(t, ClassifyTransport("op", nil))

	timeout := ClassifyTransport("submit", fmt.Errorf("post: %w", context.DeadlineExceeded))
	assert.ErrorIs(t, timeout, ErrTransientNetwork)
	assert.ErrorIs(t, timeout, context.DeadlineExceeded)

	dial := ClassifyTransport("status", &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")})
	assert.ErrorIs(t, dial, ErrTransientNetwork)

	other := ClassifyTransport("put", errors.New("access denied"))
	assert.NotErrorIs(t, other, ErrTransientNetwork)
	assert.EqualError(t, other, "put: access denied")
}
