package openaicompat

import (
	"errors"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientRequiresKey(t *testing.T) {
	t.Setenv("DOCRAG_TEST_KEY", "")
	_, err := NewClient(Config{APIKeyEnv: "DOCRAG_TEST_KEY"})
	assert.ErrorContains(t, err, "DOCRAG_TEST_KEY")

	t.Setenv("DOCRAG_TEST_KEY", "sk-test")
	c, err := NewClient(Config{APIKeyEnv: "DOCRAG_TEST_KEY", BaseURL: "http://localhost:1/v1"})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestClassify(t *testing.T) {
	var perm *backoff.PermanentError

	err := Classify(&openai.APIError{HTTPStatusCode: 401, Message: "bad key"})
	assert.True(t, errors.As(err, &perm))

	err = Classify(&openai.APIError{HTTPStatusCode: 429, Message: "slow down"})
	assert.False(t, errors.As(err, &perm))

	err = Classify(&openai.RequestError{HTTPStatusCode: 400, Err: errors.New("bad request")})
	assert.True(t, errors.As(err, &perm))

	err = Classify(errors.New("dial tcp: connection refused"))
	assert.False(t, errors.As(err, &perm))
}
