//go:build !windows

// Package osutils holds OS integration helpers.
package osutils

import "log/slog"

// IsAdmin is a stub for non-Windows platforms
func IsAdmin() bool {
	return false
}

// EnsureFirewallRule is a no-op outside Windows.
func EnsureFirewallRule(port int, logger *slog.Logger) error {
	logger.Debug("Firewall rule management is only supported on Windows", slog.Int("port", port))
	return nil
}
