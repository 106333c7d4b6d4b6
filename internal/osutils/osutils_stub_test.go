//go:build !windows

package osutils

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnsureFirewallRuleNoop(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	assert.NoError(t, EnsureFirewallRule(12345, logger))
	assert.False(t, IsAdmin())
}
