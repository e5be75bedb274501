package console

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/rileyhilliard/rterm/internal/config"
	"github.com/rileyhilliard/rterm/internal/dispatch"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/internal/session"
)

// sftpOp runs against an open file-transfer sub-session.
type sftpOp func(ctx context.Context, ft *session.FileTransfer, cmd dispatch.Command) dispatch.Result

func (c *Console) registerSFTP() {
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    "sftp-start",
		Usage:   "sftp-start",
		Summary: "Open the file-transfer sub-session",
		Check: func(dispatch.Command) error {
			return c.sess.CheckAlive()
		},
		Run: func(ctx context.Context, _ dispatch.Command, _ dispatch.Emitter) dispatch.Result {
			if err := c.sess.StartFileTransfer(ctx); err != nil {
				return dispatch.Fail(err)
			}
			ft, err := c.sess.FileTransfer()
			if err != nil {
				return dispatch.Fail(err)
			}
			return dispatch.OK(fmt.Sprintf("SFTP started in %s", ft.Getwd()))
		},
	})

	c.registerSFTPOp("sftp-ls", "sftp-ls [path]", "List a remote directory", 0, c.sftpList)
	c.registerSFTPOp("sftp-get", "sftp-get <remote> [local]", "Download a remote file", 1, c.sftpGet)
	c.registerSFTPOp("sftp-put", "sftp-put <local> [remote]", "Upload a local file", 1, c.sftpPut)
	c.registerSFTPOp("sftp-mkdir", "sftp-mkdir <path>", "Create a remote directory", 1, c.sftpMkdir)
	c.registerSFTPOp("sftp-rm", "sftp-rm <path>", "Remove a remote file or empty directory", 1, c.sftpRemove)
	c.registerSFTPOp("sftp-cd", "sftp-cd <path>", "Change the remote working directory", 1, c.sftpChdir)

	c.disp.Register(dispatch.SyncCommand{
		Name:    "sftp-pwd",
		Usage:   "sftp-pwd",
		Summary: "Show the remote working directory",
		Run: func(dispatch.Command) dispatch.Result {
			ft, err := c.sess.FileTransfer()
			if err != nil {
				return dispatch.Fail(err)
			}
			return dispatch.OK(ft.Getwd())
		},
	})
	c.disp.Register(dispatch.SyncCommand{
		Name:    "sftp-end",
		Usage:   "sftp-end",
		Summary: "Close the file-transfer sub-session",
		Run: func(dispatch.Command) dispatch.Result {
			if !c.sess.IsFileTransferActive() {
				return dispatch.OK("SFTP not active")
			}
			if err := c.sess.CloseFileTransfer(); err != nil {
				return dispatch.Fail(errors.WrapWithCode(err, errors.ErrSFTP, "sftp-end: close failed", ""))
			}
			return dispatch.OK("SFTP closed")
		},
	})
}

// registerSFTPOp registers an async sftp command that needs at least
// minArgs arguments and an open sub-session. Both are checked before the
// task starts, so nothing local or remote is touched on failure.
func (c *Console) registerSFTPOp(name, usage, summary string, minArgs int, op sftpOp) {
	c.disp.RegisterAsync(dispatch.AsyncCommand{
		Name:    name,
		Usage:   usage,
		Summary: summary,
		Check: func(cmd dispatch.Command) error {
			if _, err := c.sess.FileTransfer(); err != nil {
				return err
			}
			if len(cmd.Args) < minArgs {
				return errors.New(errors.ErrUsage,
					fmt.Sprintf("%s: missing argument", cmd.Name),
					"Use: "+usage)
			}
			return nil
		},
		Run: func(ctx context.Context, cmd dispatch.Command, _ dispatch.Emitter) dispatch.Result {
			ft, err := c.sess.FileTransfer()
			if err != nil {
				return dispatch.Fail(err)
			}
			return op(ctx, ft, cmd)
		},
	})
}

func (c *Console) sftpList(ctx context.Context, ft *session.FileTransfer, cmd dispatch.Command) dispatch.Result {
	listing, err := ft.List(ctx, cmd.Arg(0))
	if err != nil {
		return dispatch.Fail(err)
	}
	return dispatch.OK(listing.String())
}

func (c *Console) sftpGet(ctx context.Context, ft *session.FileTransfer, cmd dispatch.Command) dispatch.Result {
	remote := cmd.Arg(0)
	local := cmd.Arg(1)
	if local == "" {
		local = path.Base(remote)
	}
	local = config.ExpandTilde(local)

	n, err := ft.Download(ctx, remote, local)
	if err != nil {
		return dispatch.Fail(err)
	}
	return dispatch.OK(fmt.Sprintf("Downloaded %s to %s (%d bytes)", remote, local, n))
}

func (c *Console) sftpPut(ctx context.Context, ft *session.FileTransfer, cmd dispatch.Command) dispatch.Result {
	local := config.ExpandTilde(cmd.Arg(0))
	remote := cmd.Arg(1)

	n, err := ft.Upload(ctx, local, remote)
	if err != nil {
		return dispatch.Fail(err)
	}
	if remote == "" {
		remote = filepath.Base(local)
	}
	return dispatch.OK(fmt.Sprintf("Uploaded %s to %s (%d bytes)", local, remote, n))
}

func (c *Console) sftpMkdir(ctx context.Context, ft *session.FileTransfer, cmd dispatch.Command) dispatch.Result {
	if err := ft.Mkdir(ctx, cmd.Arg(0)); err != nil {
		return dispatch.Fail(err)
	}
	return dispatch.OK("Created " + cmd.Arg(0))
}

func (c *Console) sftpRemove(ctx context.Context, ft *session.FileTransfer, cmd dispatch.Command) dispatch.Result {
	if err := ft.Remove(ctx, cmd.Arg(0)); err != nil {
		return dispatch.Fail(err)
	}
	return dispatch.OK("Removed " + cmd.Arg(0))
}

func (c *Console) sftpChdir(ctx context.Context, ft *session.FileTransfer, cmd dispatch.Command) dispatch.Result {
	if err := ft.Chdir(ctx, cmd.Arg(0)); err != nil {
		return dispatch.Fail(err)
	}
	return dispatch.OK(ft.Getwd())
}
