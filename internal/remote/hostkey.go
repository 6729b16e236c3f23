package remote

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/raoulx24/wandering-echo/internal/logging"
)

// NewHostKeyCallback checks host keys against a known_hosts file. Unknown
// hosts are appended when trustOnFirstUse is set; changed keys are always
// rejected.
func NewHostKeyCallback(knownHostsPath string, trustOnFirstUse bool, log logging.Logger) (ssh.HostKeyCallback, error) {
	if strings.TrimSpace(knownHostsPath) == "" {
		return nil, fmt.Errorf("knownHostsPath must be set for sftp")
	}
	if err := ensureKnownHostsFile(knownHostsPath); err != nil {
		return nil, err
	}

	base, err := knownhosts.New(knownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("reading known_hosts: %w", err)
	}

	return func(hostname string, remote net.Addr, key ssh.PublicKey) error {
		err := base(hostname, remote, key)
		if err == nil {
			return nil
		}

		keyErr, ok := err.(*knownhosts.KeyError)
		if !ok {
			return err
		}

		fingerprint := ssh.FingerprintSHA256(key)
		if len(keyErr.Want) > 0 {
			log.Warn("ssh host key changed", "host", hostname, "fingerprint", fingerprint)
			return fmt.Errorf("ssh host key changed for %s", hostname)
		}
		if !trustOnFirstUse {
			return fmt.Errorf("unknown ssh host key for %s", hostname)
		}
		if err := appendKnownHost(knownHostsPath, hostname, remote, key); err != nil {
			return err
		}
		log.Info("ssh host key accepted", "host", hostname, "fingerprint", fingerprint)

		// later connections must see the new line
		base, err = knownhosts.New(knownHostsPath)
		return err
	}, nil
}

func ensureKnownHostsFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating known_hosts directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("creating known_hosts file: %w", err)
	}
	return f.Close()
}

func appendKnownHost(path, hostname string, remote net.Addr, key ssh.PublicKey) error {
	line := knownhosts.Line(knownHostsEntries(hostname, remote), key) + "\n"

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening known_hosts: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("writing known_hosts entry: %w", err)
	}
	return nil
}

func knownHostsEntries(hostname string, remote net.Addr) []string {
	var entries []string
	if hostname != "" {
		entries = append(entries, knownhosts.Normalize(hostname))
	}
	if remote != nil {
		addr := knownhosts.Normalize(remote.String())
		if len(entries) == 0 || addr != entries[0] {
			entries = append(entries, addr)
		}
	}
	return entries
}
