package sshutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSSHConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseSSHConfigFile(t *testing.T) {
	path := writeSSHConfig(t, `
Host web
    HostName 10.0.0.5
    User alice
    Port 2222
    IdentityFile ~/.ssh/id_web

Host db
    HostName db.internal
    User postgres

Host *
    ServerAliveInterval 60

Host staging-*
    User deploy
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)

	// Wildcard blocks never list as aliases; the rest come back sorted.
	require.Len(t, hosts, 2)
	assert.Equal(t, "db", hosts[0].Alias)
	assert.Equal(t, "web", hosts[1].Alias)

	web := hosts[1]
	assert.Equal(t, "10.0.0.5", web.Hostname)
	assert.Equal(t, "alice", web.User)
	assert.Equal(t, "2222", web.Port)
	assert.Equal(t, filepath.Join(homeDir(), ".ssh", "id_web"), web.IdentityFile)

	assert.Empty(t, hosts[0].Port)
}

func TestParseSSHConfigFile_Shapes(t *testing.T) {
	tests := []struct {
		name    string
		content string
		aliases []string
	}{
		{"empty file", "", nil},
		{"comments only", "# one\n\n# two\n", nil},
		{"duplicate block", "Host twin\n  HostName a\n\nHost twin\n  HostName b\n", []string{"twin"}},
		{"several patterns", "Host a b c\n  User shared\n", []string{"a", "b", "c"}},
		{"question mark wildcard", "Host box?\n  User x\n\nHost box1\n  User y\n", []string{"box1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hosts, err := ParseSSHConfigFile(writeSSHConfig(t, tt.content))
			require.NoError(t, err)

			var aliases []string
			for _, h := range hosts {
				aliases = append(aliases, h.Alias)
			}
			assert.Equal(t, tt.aliases, aliases)
		})
	}
}

func TestParseSSHConfigFile_MissingFile(t *testing.T) {
	hosts, err := ParseSSHConfigFile(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Nil(t, hosts)
}

func TestParseSSHConfigFile_StopsAtMatch(t *testing.T) {
	path := writeSSHConfig(t, `
Host early
    HostName early.example.com

Match host *.example.com
    User matched

Host late
    HostName late.example.com
`)

	hosts, err := ParseSSHConfigFile(path)
	require.NoError(t, err)
	require.Len(t, hosts, 1)
	assert.Equal(t, "early", hosts[0].Alias)
	assert.Equal(t, 5, hosts[0].MatchLine)
}

func TestSSHHostEntry_Description(t *testing.T) {
	tests := []struct {
		name  string
		entry SSHHostEntry
		want  string
	}{
		{"alias only", SSHHostEntry{Alias: "web"}, "web"},
		{"hostname same as alias", SSHHostEntry{Alias: "web", Hostname: "web"}, "web"},
		{"user only", SSHHostEntry{Alias: "web", User: "alice"}, "user: alice"},
		{"default port hidden", SSHHostEntry{Alias: "web", Port: "22"}, "web"},
		{"custom port", SSHHostEntry{Alias: "web", Port: "2222"}, "port: 2222"},
		{
			"everything",
			SSHHostEntry{Alias: "web", Hostname: "10.0.0.5", User: "alice", Port: "2222"},
			"10.0.0.5, user: alice, port: 2222",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Description())
		})
	}
}

func TestLookupHost(t *testing.T) {
	path := writeSSHConfig(t, `
Host devbox
    HostName 10.0.0.5
    User alice
    Port 2222

Host work-*
    User workuser
`)

	tests := []struct {
		name      string
		alias     string
		wantFound bool
		want      SSHHostEntry
	}{
		{
			name:      "concrete alias",
			alias:     "devbox",
			wantFound: true,
			want:      SSHHostEntry{Alias: "devbox", Hostname: "10.0.0.5", User: "alice", Port: "2222"},
		},
		{
			name:      "wildcard block",
			alias:     "work-laptop",
			wantFound: true,
			want:      SSHHostEntry{Alias: "work-laptop", User: "workuser"},
		},
		{
			name:  "unknown alias",
			alias: "nowhere",
			want:  SSHHostEntry{Alias: "nowhere"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry, found, err := LookupHost(path, tt.alias)
			require.NoError(t, err)
			assert.Equal(t, tt.wantFound, found)
			assert.Equal(t, tt.want, entry)
		})
	}
}

func TestLookupHost_MissingFile(t *testing.T) {
	entry, found, err := LookupHost("/nonexistent/config", "devbox")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, "devbox", entry.Alias)
}

func TestExpandPath(t *testing.T) {
	home := homeDir()
	assert.Equal(t, filepath.Join(home, ".ssh", "id_rsa"), expandPath("~/.ssh/id_rsa"))
	assert.Equal(t, "/etc/ssh/key", expandPath("/etc/ssh/key"))
	assert.Equal(t, "relative/key", expandPath("relative/key"))
}
