package main

import (
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kmrelay/internal/config"
	"kmrelay/internal/protocol"
)

func TestVersion(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 0, run([]string{"-version"}, &stdout, &stderr))
	assert.Equal(t, "kmrelay version "+version+"\n", stdout.String())
}

func TestBadArguments(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"-nope"}, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"extra"}, &stdout, &stderr))
}

func TestInitConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kmrelay.toml")
	var stdout, stderr bytes.Buffer

	require.Equal(t, 0, run([]string{"-config", path, "-init-config"}, &stdout, &stderr), stderr.String())
	assert.FileExists(t, path)

	m, err := config.NewManager(path)
	require.NoError(t, err)
	require.NoError(t, m.Load())
	assert.Equal(t, config.DefaultConfig(), m.Get())

	stderr.Reset()
	assert.Equal(t, 1, run([]string{"-config", path, "-init-config"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "already exists")
}

func TestInvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kmrelay.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"port": 0}}`), 0644))

	var stdout, stderr bytes.Buffer
	assert.Equal(t, 1, run([]string{"-config", path}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "server config")
}

func TestSend(t *testing.T) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	defer conn.Close()

	var stdout, stderr bytes.Buffer
	code := run([]string{
		"-send", "AUTO_MOVE -10 20 300",
		"-target", conn.LocalAddr().String(),
		"-mac", "24875054",
	}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	buf := make([]byte, 1024)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, _, err := conn.ReadFromUDP(buf)
	require.NoError(t, err)

	pkt, err := protocol.NewDecoder().Decode(buf[:n])
	require.NoError(t, err)
	assert.Equal(t, uint32(0x24875054), pkt.Header.Mac)
	assert.Equal(t, protocol.AutoMove{X: -10, Y: 20, Duration: 300}, pkt.Command)
}

func TestSendRejectsBadInput(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"-send", "JUMP 1"}, &stdout, &stderr))
	assert.Equal(t, 2, run([]string{"-send", "REBOOT", "-mac", "zz"}, &stdout, &stderr))
}

func TestApplyOverrides(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NoError(t, applyOverrides(cfg, options{listen: "0.0.0.0:9000", device: "/dev/ttyUSB1"}))
	assert.Equal(t, "0.0.0.0", cfg.Server.BindAddress)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Device)

	assert.Error(t, applyOverrides(cfg, options{listen: "9000"}))
	assert.Error(t, applyOverrides(cfg, options{listen: "host:port"}))
}

func TestInitLoggerJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.log")
	var stdout, stderr bytes.Buffer

	logger, closeLog := initLogger(config.LoggingConfig{Level: "warn", Format: "json", Output: path}, &stdout, &stderr)
	logger.Info("hidden")
	logger.Warn("shown", "cmd", "MOUSE_MOVE")
	closeLog()

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &entry))
	assert.Equal(t, "shown", entry["msg"])
	assert.Equal(t, "MOUSE_MOVE", entry["cmd"])
	assert.Empty(t, stdout.String())
}

func TestInitLoggerStderr(t *testing.T) {
	var stdout, stderr bytes.Buffer
	logger, closeLog := initLogger(config.LoggingConfig{Level: "info", Format: "text", Output: "stderr"}, &stdout, &stderr)
	defer closeLog()

	logger.Debug("dropped")
	logger.Info("kept")
	assert.Contains(t, stderr.String(), "msg=kept")
	assert.NotContains(t, stderr.String(), "dropped")
}

func TestAutostartRejectsUnknownAction(t *testing.T) {
	var stdout, stderr bytes.Buffer
	assert.Equal(t, 2, run([]string{"-autostart", "maybe"}, &stdout, &stderr))
	assert.Contains(t, stderr.String(), "invalid -autostart")
}
