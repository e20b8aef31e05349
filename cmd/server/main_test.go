package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/docsync/internal/server/jwt"
)

const testSecret = "0123456789abcdef"

func TestRun_Version(t *testing.T) {
	for _, args := range [][]string{{"version"}, {"-version"}, {"serve", "--version"}} {
		var out bytes.Buffer
		require.NoError(t, run(args, &out, &out))
		assert.Contains(t, out.String(), "Version:    dev")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"frobnicate"}, &out, &out)
	assert.Error(t, err)
	assert.Contains(t, out.String(), "Usage:")
}

func TestRun_IssueToken(t *testing.T) {
	var out bytes.Buffer
	err := run([]string{"issue-token", "-user", "u-alice", "--name", "Alice", "-jwt-secret", testSecret}, &out, &out)
	require.NoError(t, err)

	claims, err := jwt.NewService(testSecret, time.Hour).Validate(strings.TrimSpace(out.String()))
	require.NoError(t, err)
	assert.Equal(t, "u-alice", claims.Subject)
	assert.Equal(t, "Alice", claims.Name)
}

func TestRun_IssueTokenErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"missing user", []string{"issue-token", "-jwt-secret", testSecret}},
		{"dangling flag", []string{"issue-token", "-jwt-secret", testSecret, "-user"}},
		{"short secret", []string{"issue-token", "-user", "u-alice", "-jwt-secret", "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Error(t, run(tt.args, &out, &out))
		})
	}
}
