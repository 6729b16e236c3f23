package remote

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/juju/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"

	"github.com/raoulx24/wandering-echo/internal/config"
	"github.com/raoulx24/wandering-echo/internal/logging"
)

// SFTPDestination stores streams on a remote SFTP server.
type SFTPDestination struct {
	dir        string
	log        logging.Logger
	sshClient  *ssh.Client
	sftpClient *sftp.Client
}

// NewSFTP connects to the server described by cfg and makes sure dir exists.
func NewSFTP(dir string, cfg config.SFTPConfig, log logging.Logger) (*SFTPDestination, error) {
	hostKeyCallback, err := NewHostKeyCallback(cfg.KnownHostsPath, cfg.TrustOnFirstUse, log)
	if err != nil {
		return nil, fmt.Errorf("configuring host key verification: %w", err)
	}

	auth, err := authMethods(cfg)
	if err != nil {
		return nil, err
	}

	port := cfg.Port
	if port == 0 {
		port = 22
	}
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	log.Debug("connecting to sftp server", "addr", addr)

	sshClient, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            cfg.Username,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         30 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	sftpClient, err := sftp.NewClient(sshClient,
		sftp.MaxPacketUnchecked(131072),
		sftp.UseConcurrentWrites(true),
		sftp.MaxConcurrentRequestsPerFile(64),
	)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("starting sftp session: %w", err)
	}

	d := &SFTPDestination{dir: dir, log: log, sshClient: sshClient, sftpClient: sftpClient}
	if err := sftpClient.MkdirAll(dir); err != nil {
		d.Close()
		return nil, fmt.Errorf("creating %s: %w", dir, err)
	}
	return d, nil
}

func authMethods(cfg config.SFTPConfig) ([]ssh.AuthMethod, error) {
	switch {
	case cfg.KeyPath != "":
		key, err := os.ReadFile(cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("reading ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parsing ssh key: %w", err)
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	case cfg.Password != "":
		return []ssh.AuthMethod{ssh.Password(cfg.Password)}, nil
	default:
		return nil, fmt.Errorf("no authentication method provided for sftp")
	}
}

func (d *SFTPDestination) Close() error {
	if d.sftpClient != nil {
		d.sftpClient.Close()
	}
	if d.sshClient != nil {
		return d.sshClient.Close()
	}
	return nil
}

// Upload writes to a temporary name and renames on success so a broken
// stream never looks like a complete backup.
func (d *SFTPDestination) Upload(ctx context.Context, name string, r io.Reader) (int64, error) {
	final := path.Join(d.dir, name)
	tmp := final + ".part"

	f, err := d.sftpClient.Create(tmp)
	if err != nil {
		return 0, errors.Annotatef(err, "creating %s", tmp)
	}

	// closing the session is the only way to interrupt a blocked write
	stop := context.AfterFunc(ctx, func() { f.Close() })
	defer stop()

	n, err := f.ReadFrom(r)
	if cerr := f.Close(); err == nil && cerr != nil && ctx.Err() == nil {
		err = cerr
	}
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		_ = d.sftpClient.Remove(tmp)
		return n, errors.Annotatef(err, "writing %s", final)
	}

	if err := d.sftpClient.PosixRename(tmp, final); err != nil {
		_ = d.sftpClient.Remove(tmp)
		return n, errors.Annotatef(err, "renaming %s", tmp)
	}
	d.log.Debug("sftp upload complete", "path", final, "bytes", n)
	return n, nil
}

func (d *SFTPDestination) Delete(_ context.Context, name string) error {
	err := d.sftpClient.Remove(path.Join(d.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return errors.Trace(err)
}

func (d *SFTPDestination) List(context.Context) ([]File, error) {
	entries, err := d.sftpClient.ReadDir(d.dir)
	if err != nil {
		return nil, errors.Annotatef(err, "reading %s", d.dir)
	}
	var files []File
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		files = append(files, File{Name: e.Name(), Size: e.Size(), Modified: e.ModTime()})
	}
	return files, nil
}

func (d *SFTPDestination) Type() string { return "sftp" }
