package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/Jj0520/FileWise-sub000/pkg/types"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
		auth      bool
	}{
		{"googleapi 429", &googleapi.Error{Code: 429, Message: "quota"}, true, false},
		{"googleapi 503", &googleapi.Error{Code: 503}, true, false},
		{"googleapi 500", &googleapi.Error{Code: 500}, true, false},
		{"googleapi 401", &googleapi.Error{Code: 401}, false, true},
		{"googleapi 403", &googleapi.Error{Code: 403}, false, true},
		{"googleapi 400", &googleapi.Error{Code: 400}, false, false},
		{"wrapped googleapi", fmt.Errorf("embed: %w", &googleapi.Error{Code: 429}), true, false},
		{"grpc resource exhausted", errors.New("rpc error: code = ResourceExhausted desc = quota"), true, false},
		{"status text", errors.New("RESOURCE_EXHAUSTED: too many requests"), true, false},
		{"permission denied", errors.New("PERMISSION_DENIED: key revoked"), false, true},
		{"unauthenticated", errors.New("rpc error: code = Unauthenticated desc = nope"), false, true},
		{"bad key", errors.New("API key not valid. Please pass a valid API key."), false, true},
		{"plain", errors.New("boom"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			assert.Equal(t, tt.transient, errors.Is(got, types.ErrTransientProvider))
			assert.Equal(t, tt.auth, errors.Is(got, types.ErrAuth))
			assert.ErrorIs(t, got, tt.err, "original error stays in the chain")
			assert.Equal(t, tt.transient, IsRetryable(got))
		})
	}
}

func TestClassifyErrorPassThrough(t *testing.T) {
	assert.NoError(t, ClassifyError(nil))
	assert.Equal(t, context.Canceled, ClassifyError(context.Canceled))

	already := fmt.Errorf("%w: x", types.ErrAuth)
	assert.Equal(t, already, ClassifyError(already))
}

func TestClassifyStatus(t *testing.T) {
	assert.ErrorIs(t, ClassifyStatus(429, "slow down"), types.ErrTransientProvider)
	assert.ErrorIs(t, ClassifyStatus(502, ""), types.ErrTransientProvider)
	assert.ErrorIs(t, ClassifyStatus(401, "bad key"), types.ErrAuth)

	err := ClassifyStatus(400, "bad request\n")
	assert.NotErrorIs(t, err, types.ErrTransientProvider)
	assert.NotErrorIs(t, err, types.ErrAuth)
	assert.Equal(t, "api error 400: bad request", err.Error())
}

func TestBuildAnswerPrompt(t *testing.T) {
	assert.Equal(t, "what?", BuildAnswerPrompt("what?", nil))

	prompt := BuildAnswerPrompt("Who signed?", []string{"Alice signed.", "Bob watched."})
	assert.Contains(t, prompt, "Context 1:\nAlice signed.")
	assert.Contains(t, prompt, "Context 2:\nBob watched.")
	assert.Contains(t, prompt, "Question: Who signed?")
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	cb := NewBreaker("test", zap.NewNop())
	failing := func() (string, error) {
		return "", fmt.Errorf("%w: 503", types.ErrTransientProvider)
	}

	for i := 0; i < 3; i++ {
		_, err := Execute(cb, failing)
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := Execute(cb, func() (string, error) { return "ok", nil })
	assert.ErrorIs(t, err, types.ErrTransientProvider)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestBreakerIgnoresAuthFailures(t *testing.T) {
	cb := NewBreaker("test", zap.NewNop())
	for i := 0; i < 5; i++ {
		_, err := Execute(cb, func() (int, error) { return 0, types.ErrAuth })
		assert.ErrorIs(t, err, types.ErrAuth)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())

	v, err := Execute(cb, func() (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}
