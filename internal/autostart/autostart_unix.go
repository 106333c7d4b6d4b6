//go:build !windows

package autostart

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"text/template"
)

// location returns where the login entry lives and how it is rendered.
func location(goos, home string) (string, *template.Template, error) {
	switch goos {
	case "darwin":
		return filepath.Join(home, "Library", "LaunchAgents", launchAgentLabel+".plist"), launchAgentPlist, nil
	case "linux":
		return filepath.Join(home, ".config", "systemd", "user", "kmrelay.service"), systemdUnit, nil
	}
	return "", nil, ErrUnsupported
}

func enableIn(goos, home string, e entry) (string, error) {
	path, tmpl, err := location(goos, home)
	if err != nil {
		return "", err
	}
	content, err := render(tmpl, e)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	return path, os.WriteFile(path, []byte(content), 0644)
}

func disableIn(goos, home string) error {
	path, _, err := location(goos, home)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func enabledIn(goos, home string) bool {
	path, _, err := location(goos, home)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Enable registers the running executable with args to start on login.
// It returns where the entry was written. On Linux the systemd user unit
// still needs "systemctl --user enable kmrelay".
func Enable(args []string) (string, error) {
	e, err := currentEntry(args)
	if err != nil {
		return "", err
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return enableIn(runtime.GOOS, home, e)
}

// Disable removes the login entry. Removing a missing entry is not an error.
func Disable() error {
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return disableIn(runtime.GOOS, home)
}

// IsEnabled reports whether a login entry exists.
func IsEnabled() bool {
	home, err := os.UserHomeDir()
	if err != nil {
		return false
	}
	return enabledIn(runtime.GOOS, home)
}
