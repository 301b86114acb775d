package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secallow.conf")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfigDefaultsWithoutFile(t *testing.T) {
	settings, err := LoadConfig([]string{filepath.Join(t.TempDir(), "missing.conf")})
	require.NoError(t, err)

	assert.Empty(t, settings.SecurityGroup)
	assert.Equal(t, []int{22, 80, 443}, settings.Ports)
	assert.True(t, settings.AllICMP)
	assert.Equal(t, DefaultStunServer, settings.StunServer)
	assert.Equal(t, DefaultStunPort, settings.StunPort)
	assert.Equal(t, DefaultBackend, settings.Backend)
	assert.Equal(t, DefaultOSCommand, settings.OSCommand)
	assert.Empty(t, settings.LogFile)
}

func TestLoadConfigReadsAllSections(t *testing.T) {
	path := writeConfig(t, `[rules]
security_group = shell-access
ports = ssh,https,8080
all_icmp = false

[stun]
server = stun.example.org
port = 3478

[log]
file = /var/log/secallow/address.log
keep_history = true

[provider]
backend = neutron
`)

	settings, err := LoadConfig([]string{path})
	require.NoError(t, err)

	assert.Equal(t, "shell-access", settings.SecurityGroup)
	assert.Equal(t, []int{22, 443, 8080}, settings.Ports)
	assert.False(t, settings.AllICMP)
	assert.Equal(t, "stun.example.org", settings.StunServer)
	assert.Equal(t, 3478, settings.StunPort)
	assert.Equal(t, "/var/log/secallow/address.log", settings.LogFile)
	assert.True(t, settings.KeepHistory)
	assert.Equal(t, "neutron", settings.Backend)
}

func TestLoadConfigSkipsEmptyFiles(t *testing.T) {
	empty := writeConfig(t, "")
	full := writeConfig(t, "[rules]\nsecurity_group = shell-access\n")

	settings, err := LoadConfig([]string{empty, full})
	require.NoError(t, err)
	assert.Equal(t, "shell-access", settings.SecurityGroup)
}

func TestLoadConfigRejectsUnknownBackend(t *testing.T) {
	path := writeConfig(t, "[provider]\nbackend = azure\n")

	_, err := LoadConfig([]string{path})
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadPorts(t *testing.T) {
	path := writeConfig(t, "[rules]\nports = ssh,bogus\n")

	_, err := LoadConfig([]string{path})
	assert.Error(t, err)
}

func TestLoadConfigRejectsBadStunPort(t *testing.T) {
	path := writeConfig(t, "[stun]\nport = 70000\n")

	_, err := LoadConfig([]string{path})
	assert.Error(t, err)
}
