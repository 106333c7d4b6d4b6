// Package autostart registers the relay to start on user login.
package autostart

import (
	"errors"
	"os"
	"strings"
	"text/template"
)

// ErrUnsupported is returned on platforms without a login start mechanism.
var ErrUnsupported = errors.New("autostart not supported on this platform")

const launchAgentLabel = "com.kmrelay.relay"

var launchAgentPlist = template.Must(template.New("plist").Parse(`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd">
<plist version="1.0">
<dict>
    <key>Label</key>
    <string>` + launchAgentLabel + `</string>
    <key>ProgramArguments</key>
    <array>
        <string>{{.ExecutablePath}}</string>
{{- range .Args}}
        <string>{{.}}</string>
{{- end}}
    </array>
    <key>RunAtLoad</key>
    <true/>
    <key>KeepAlive</key>
    <false/>
</dict>
</plist>
`))

var systemdUnit = template.Must(template.New("unit").Parse(`[Unit]
Description=kmrelay UDP to serial HID relay
After=network.target

[Service]
ExecStart={{.CommandLine}}
Restart=on-failure

[Install]
WantedBy=default.target
`))

// entry is the command started at login.
type entry struct {
	ExecutablePath string
	Args           []string
}

func currentEntry(args []string) (entry, error) {
	exe, err := os.Executable()
	if err != nil {
		return entry{}, err
	}
	return entry{ExecutablePath: exe, Args: args}, nil
}

// CommandLine quotes every word that contains spaces.
func (e entry) CommandLine() string {
	words := append([]string{e.ExecutablePath}, e.Args...)
	for i, w := range words {
		if strings.ContainsAny(w, " \t") {
			words[i] = `"` + w + `"`
		}
	}
	return strings.Join(words, " ")
}

func render(t *template.Template, e entry) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, e); err != nil {
		return "", err
	}
	return sb.String(), nil
}
