//go:build windows

// Package osutils holds OS integration helpers.
package osutils

import (
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/windows"
)

const firewallRuleName = "kmrelay UDP"

// IsAdmin checks if the current process has administrative privileges
func IsAdmin() bool {
	var token windows.Token
	h, _ := windows.GetCurrentProcess()
	if err := windows.OpenProcessToken(h, windows.TOKEN_QUERY, &token); err != nil {
		return false
	}
	defer token.Close()

	var sid *windows.SID
	err := windows.AllocateAndInitializeSid(
		&windows.SECURITY_NT_AUTHORITY,
		2,
		windows.SECURITY_BUILTIN_DOMAIN_RID,
		windows.DOMAIN_ALIAS_RID_ADMINS,
		0, 0, 0, 0, 0, 0,
		&sid,
	)
	if err != nil {
		return false
	}
	defer windows.FreeSid(sid)

	member, err := token.IsMember(sid)
	if err != nil {
		return false
	}
	return member
}

// EnsureFirewallRule makes sure inbound UDP traffic to port is allowed,
// creating the rule through an elevated PowerShell when needed.
func EnsureFirewallRule(port int, logger *slog.Logger) error {
	out, err := exec.Command("netsh", "advfirewall", "firewall", "show", "rule", "name="+firewallRuleName).CombinedOutput()
	if err == nil && ruleMatches(string(out), port) {
		logger.Info("Firewall rule present", slog.String("rule", firewallRuleName), slog.Int("port", port))
		return nil
	}

	psCommand := firewallCommand(port)

	if !IsAdmin() {
		logger.Info("Firewall rule missing, requesting elevation", slog.Int("port", port))

		verbPtr, _ := syscall.UTF16PtrFromString("runas")
		exePtr, _ := syscall.UTF16PtrFromString("powershell.exe")
		argPtr, _ := syscall.UTF16PtrFromString(fmt.Sprintf("-NoProfile -WindowStyle Hidden -Command \"%s\"", psCommand))

		if err := windows.ShellExecute(0, verbPtr, exePtr, argPtr, nil, windows.SW_HIDE); err != nil {
			return fmt.Errorf("launch elevated powershell: %w", err)
		}
		return nil
	}

	if output, err := exec.Command("powershell", "-NoProfile", "-Command", psCommand).CombinedOutput(); err != nil {
		return fmt.Errorf("create firewall rule: %w (output: %s)", err, output)
	}
	logger.Info("Firewall rule created", slog.String("rule", firewallRuleName), slog.Int("port", port))
	return nil
}

func ruleMatches(netshOutput string, port int) bool {
	return strings.Contains(netshOutput, firewallRuleName) &&
		strings.Contains(netshOutput, strconv.Itoa(port)) &&
		strings.Contains(netshOutput, "UDP") &&
		strings.Contains(netshOutput, "Allow")
}

func firewallCommand(port int) string {
	return fmt.Sprintf(
		"Remove-NetFirewallRule -DisplayName '%s' -ErrorAction SilentlyContinue; New-NetFirewallRule -DisplayName '%s' -Direction Inbound -LocalPort %d -Protocol UDP -Action Allow -Profile Any",
		firewallRuleName, firewallRuleName, port,
	)
}
