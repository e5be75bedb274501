package session

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/sftp"
	"github.com/rileyhilliard/rterm/internal/errors"
	"github.com/rileyhilliard/rterm/pkg/sshutil"
	"go.uber.org/zap"
)

// EmptyDirectory is what Listing.String returns for a directory with no entries.
const EmptyDirectory = "(empty directory)"

// DirEntry is one remote directory entry. Listings are never cached.
type DirEntry struct {
	Name    string
	IsDir   bool
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time
}

// Listing is the ordered content of one remote directory.
type Listing struct {
	Path    string
	Entries []DirEntry
}

// String renders the listing one entry per line, or EmptyDirectory.
func (l Listing) String() string {
	if len(l.Entries) == 0 {
		return EmptyDirectory
	}
	var b strings.Builder
	for i, e := range l.Entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		fmt.Fprintf(&b, "%s %10d  %s  %s", e.Mode.String(), e.Size, e.ModTime.Format("Jan _2 15:04"), name)
	}
	return b.String()
}

// FileTransfer is the open SFTP sub-session. Relative paths resolve
// against its working directory.
type FileTransfer struct {
	sess   *Session
	conn   *sshutil.Client
	client *sftp.Client

	mu  sync.Mutex
	cwd string
}

// StartFileTransfer opens the sftp subsystem. A server that refuses it
// yields an ErrSFTPDenied error, distinct from transport failures.
// Starting while already open is a no-op.
func (s *Session) StartFileTransfer(ctx context.Context) error {
	client, err := s.usableClient()
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.sftp != nil {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	sc, err := client.OpenSFTP()
	if err != nil {
		return s.checkDrop(client, err)
	}
	if err := ctx.Err(); err != nil {
		sc.Close()
		return errors.WrapWithCode(err, errors.ErrSFTP, "sftp: start cancelled", "")
	}

	cwd, err := sc.Getwd()
	if err != nil {
		cwd = "."
	}

	ft := &FileTransfer{sess: s, conn: client, client: sc, cwd: cwd}

	s.mu.Lock()
	if s.client != client || s.state != StateConnected {
		s.mu.Unlock()
		sc.Close()
		return errNotConnected()
	}
	if s.sftp != nil {
		s.mu.Unlock()
		sc.Close()
		return nil
	}
	s.sftp = ft
	s.mu.Unlock()

	s.logger.Info("sftp started", zap.String("target", client.String()), zap.String("cwd", cwd))
	return nil
}

// FileTransfer returns the open sub-session, or an ErrState error
// "SFTP not connected" when there is none.
func (s *Session) FileTransfer() (*FileTransfer, error) {
	s.mu.Lock()
	ft := s.sftp
	state := s.state
	s.mu.Unlock()

	if ft == nil {
		suggestion := "Start it with: sftp-start"
		if state != StateConnected {
			suggestion = "Connect with ssh + ssh-login, then run: sftp-start"
		}
		return nil, errors.New(errors.ErrState, "SFTP not connected", suggestion)
	}

	if _, err := s.usableClient(); err != nil {
		return nil, err
	}
	return ft, nil
}

// CloseFileTransfer closes the sub-session. Closing when none is open is a no-op.
func (s *Session) CloseFileTransfer() error {
	s.mu.Lock()
	ft := s.sftp
	s.sftp = nil
	s.mu.Unlock()
	if ft == nil {
		return nil
	}
	return ft.client.Close()
}

// IsFileTransferActive reports whether an SFTP sub-session is open.
func (s *Session) IsFileTransferActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sftp != nil
}

// Getwd returns the remote working directory.
func (f *FileTransfer) Getwd() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cwd
}

// Chdir changes the remote working directory. p must be a directory.
func (f *FileTransfer) Chdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := f.resolve(p)
	info, err := f.client.Stat(target)
	if err != nil {
		return f.fail(err, "sftp: cd "+target)
	}
	if !info.IsDir() {
		return errors.New(errors.ErrSFTP, "sftp: cd "+target+": not a directory", "")
	}
	if resolved, err := f.client.RealPath(target); err == nil {
		target = resolved
	}

	f.mu.Lock()
	f.cwd = target
	f.mu.Unlock()
	return nil
}

// List returns the entries of p sorted by name. An empty p lists the
// working directory.
func (f *FileTransfer) List(ctx context.Context, p string) (Listing, error) {
	target := f.resolve(p)
	if err := ctx.Err(); err != nil {
		return Listing{Path: target}, err
	}

	infos, err := f.client.ReadDir(target)
	if err != nil {
		return Listing{Path: target}, f.fail(err, "sftp: ls "+target)
	}

	entries := make([]DirEntry, 0, len(infos))
	for _, info := range infos {
		entries = append(entries, DirEntry{
			Name:    info.Name(),
			IsDir:   info.IsDir(),
			Size:    info.Size(),
			Mode:    info.Mode(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})

	return Listing{Path: target, Entries: entries}, nil
}

// Upload copies localPath to remotePath, truncating any existing file.
// An empty remotePath or an existing remote directory keeps the local name.
func (f *FileTransfer) Upload(ctx context.Context, localPath, remotePath string) (int64, error) {
	src, err := os.Open(localPath)
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrSFTP,
			"sftp: can't read local file "+localPath, "Check the local path")
	}
	defer src.Close()

	if info, err := src.Stat(); err == nil && info.IsDir() {
		return 0, errors.New(errors.ErrSFTP,
			"sftp: "+localPath+" is a directory", "Only single files can be uploaded")
	}

	target := f.resolve(remotePath)
	if remotePath == "" {
		target = f.resolve(filepath.Base(localPath))
	} else if info, err := f.client.Stat(target); err == nil && info.IsDir() {
		target = path.Join(target, filepath.Base(localPath))
	}

	dst, err := f.client.Create(target)
	if err != nil {
		return 0, f.fail(err, "sftp: can't create remote file "+target)
	}

	n, err := copyContext(ctx, dst, src)
	closeErr := dst.Close()
	if err != nil {
		return n, f.fail(err, "sftp: upload to "+target+" failed")
	}
	if closeErr != nil {
		return n, f.fail(closeErr, "sftp: upload to "+target+" failed")
	}

	f.sess.logger.Info("sftp upload",
		zap.String("local", localPath), zap.String("remote", target), zap.Int64("bytes", n))
	return n, nil
}

// Download copies remotePath to localPath. Data lands in a temp file next
// to localPath and is renamed into place only after the whole transfer
// succeeded, so a failed download never creates or modifies localPath.
func (f *FileTransfer) Download(ctx context.Context, remotePath, localPath string) (int64, error) {
	source := f.resolve(remotePath)
	src, err := f.client.Open(source)
	if err != nil {
		return 0, f.fail(err, "sftp: can't open remote file "+source)
	}
	defer src.Close()

	info, err := src.Stat()
	if err != nil {
		return 0, f.fail(err, "sftp: can't stat remote file "+source)
	}
	if info.IsDir() {
		return 0, errors.New(errors.ErrSFTP,
			"sftp: "+source+" is a directory", "Only single files can be downloaded")
	}

	target := localPath
	if target == "" {
		target = path.Base(source)
	} else if st, err := os.Stat(target); err == nil && st.IsDir() {
		target = filepath.Join(target, path.Base(source))
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".rterm-download-*")
	if err != nil {
		return 0, errors.WrapWithCode(err, errors.ErrSFTP,
			"sftp: can't write to "+filepath.Dir(target), "Check the local directory exists and is writable")
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	n, err := copyContext(ctx, tmp, src)
	if err != nil {
		cleanup()
		return n, f.fail(err, "sftp: download of "+source+" failed")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return n, errors.WrapWithCode(err, errors.ErrSFTP, "sftp: can't write "+target, "")
	}
	if err := os.Chmod(tmpName, 0644); err != nil {
		os.Remove(tmpName)
		return n, errors.WrapWithCode(err, errors.ErrSFTP, "sftp: can't write "+target, "")
	}
	if err := os.Rename(tmpName, target); err != nil {
		os.Remove(tmpName)
		return n, errors.WrapWithCode(err, errors.ErrSFTP, "sftp: can't write "+target, "")
	}

	f.sess.logger.Info("sftp download",
		zap.String("remote", source), zap.String("local", target), zap.Int64("bytes", n))
	return n, nil
}

// Mkdir creates one remote directory. An existing directory is an error.
func (f *FileTransfer) Mkdir(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := f.resolve(p)
	if err := f.client.Mkdir(target); err != nil {
		return f.fail(err, "sftp: mkdir "+target)
	}
	return nil
}

// Remove deletes a remote file or empty directory. A missing path is an error.
func (f *FileTransfer) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	target := f.resolve(p)
	if err := f.client.Remove(target); err != nil {
		return f.fail(err, "sftp: rm "+target)
	}
	return nil
}

func (f *FileTransfer) resolve(p string) string {
	f.mu.Lock()
	cwd := f.cwd
	f.mu.Unlock()
	if p == "" || p == "." {
		return cwd
	}
	if path.IsAbs(p) {
		return path.Clean(p)
	}
	return path.Join(cwd, p)
}

// fail wraps err as ErrSFTP, or as a disconnect when the transport died.
func (f *FileTransfer) fail(err error, message string) error {
	wrapped := errors.WrapWithCode(err, errors.ErrSFTP, message, "")
	return f.sess.checkDrop(f.conn, wrapped)
}

// copyContext is io.Copy that stops between reads once ctx is done.
func copyContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	return io.Copy(dst, &ctxReader{ctx: ctx, r: src})
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
