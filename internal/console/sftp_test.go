package console

import (
	"os"
	"path"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rileyhilliard/rterm/pkg/sshutil/sshtest"
)

func TestSFTP_Flow(t *testing.T) {
	root := t.TempDir()
	srv := sshtest.New(t, sshtest.WithSFTPRoot(root))
	f := newFixture(t)
	f.login(t, srv)

	f.run(t, "sftp-start")
	require.True(t, f.sess.IsFileTransferActive(), "transcript:\n%s", f.transcript)
	assert.Contains(t, f.transcript.String(), "SFTP started in")

	f.run(t, "sftp-ls")
	assert.Contains(t, f.transcript.Lines(), "(empty directory)")

	local := filepath.Join(t.TempDir(), "report.txt")
	require.NoError(t, os.WriteFile(local, []byte("quarterly numbers\n"), 0o644))

	f.run(t, "sftp-put "+local)
	assert.Contains(t, f.transcript.String(), "Uploaded "+local+" to report.txt (18 bytes)")
	data, err := os.ReadFile(filepath.Join(root, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers\n", string(data))

	f.run(t, "sftp-mkdir archive")
	assert.Contains(t, f.transcript.Lines(), "Created archive")
	assert.DirExists(t, filepath.Join(root, "archive"))

	f.run(t, "sftp-ls")
	out := f.transcript.String()
	assert.Contains(t, out, "archive")
	assert.Contains(t, out, "report.txt")

	back := filepath.Join(t.TempDir(), "copy.txt")
	f.run(t, "sftp-get report.txt "+back)
	assert.Contains(t, f.transcript.String(), "Downloaded report.txt to "+back+" (18 bytes)")
	data, err = os.ReadFile(back)
	require.NoError(t, err)
	assert.Equal(t, "quarterly numbers\n", string(data))

	f.run(t, "sftp-cd archive")
	f.run(t, "sftp-pwd")
	assert.Contains(t, f.transcript.Lines(), filepath.ToSlash(filepath.Join(root, "archive")))
	f.run(t, "sftp-cd ..")

	f.run(t, "sftp-rm report.txt")
	assert.Contains(t, f.transcript.Lines(), "Removed report.txt")
	assert.NoFileExists(t, filepath.Join(root, "report.txt"))

	f.run(t, "sftp-end")
	assert.Contains(t, f.transcript.Lines(), "SFTP closed")
	assert.False(t, f.sess.IsFileTransferActive())
	assert.True(t, f.sess.IsConnected())
}

func TestSFTP_RemoteFailuresAreReported(t *testing.T) {
	srv := sshtest.New(t)
	f := newFixture(t)
	f.login(t, srv)
	f.run(t, "sftp-start")

	local := filepath.Join(t.TempDir(), "missing.txt")
	f.run(t, "sftp-get missing.txt "+local)
	require.NotEmpty(t, f.errors())
	assert.Contains(t, f.errors()[0], "sftp: can't open remote file")
	assert.NoFileExists(t, local)

	ft, err := f.sess.FileTransfer()
	require.NoError(t, err)
	f.run(t, "sftp-rm missing.txt")
	assert.Contains(t, f.errors(), "sftp: rm "+path.Join(ft.Getwd(), "missing.txt"))
}

func TestSFTP_MissingArgument(t *testing.T) {
	srv := sshtest.New(t)
	f := newFixture(t)
	f.login(t, srv)
	f.run(t, "sftp-start")

	f.run(t, "sftp-mkdir")
	assert.Contains(t, f.errors(), "sftp-mkdir: missing argument")
}

func TestSFTP_Denied(t *testing.T) {
	srv := sshtest.New(t, sshtest.WithoutSFTP())
	f := newFixture(t)
	f.login(t, srv)

	f.run(t, "sftp-start")
	assert.False(t, f.sess.IsFileTransferActive())
	require.NotEmpty(t, f.errors())
	assert.True(t, f.sess.IsConnected(), "a refused subsystem leaves the session up")
}

func TestSFTP_StartRequiresConnection(t *testing.T) {
	f := newFixture(t)
	f.run(t, "sftp-start")
	assert.Contains(t, f.errors(), "ssh: not connected")

	f.run(t, "sftp-pwd")
	assert.Contains(t, f.errors(), "SFTP not connected")

	f.run(t, "sftp-end")
	assert.Contains(t, f.transcript.Lines(), "SFTP not active")
}
