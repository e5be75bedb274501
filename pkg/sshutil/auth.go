package sshutil

import (
	"bytes"
	"crypto/x509"
	stderrors "errors"
	"fmt"
	"net"
	"os"

	"github.com/rileyhilliard/rterm/internal/errors"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
)

// PasswordMethods offers secret as a password and answers every
// keyboard-interactive prompt with the same secret.
// Servers configured for PAM usually only offer keyboard-interactive.
func PasswordMethods(secret []byte) []ssh.AuthMethod {
	return []ssh.AuthMethod{
		ssh.PasswordCallback(func() (string, error) {
			return string(secret), nil
		}),
		ssh.KeyboardInteractive(func(name, instruction string, questions []string, echos []bool) ([]string, error) {
			answers := make([]string, len(questions))
			for i := range questions {
				answers[i] = string(secret)
			}
			return answers, nil
		}),
	}
}

// KeyFileMethod loads a private key from keyPath. passphrase may be empty
// for unencrypted keys. Returns EncryptedKeyError when the key needs a
// passphrase that wasn't supplied.
func KeyFileMethod(keyPath string, passphrase []byte) (ssh.AuthMethod, error) {
	key, err := os.ReadFile(keyPath)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Can't read key file %s", keyPath),
			"Check the path and file permissions")
	}

	var signer ssh.Signer
	if len(passphrase) > 0 {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(key, passphrase)
	} else {
		signer, err = ssh.ParsePrivateKey(key)
	}
	if err != nil {
		var missing *ssh.PassphraseMissingError
		if stderrors.As(err, &missing) || (isEncryptedPEM(key) && len(passphrase) == 0) {
			return nil, &EncryptedKeyError{Path: keyPath}
		}
		if stderrors.Is(err, x509.IncorrectPasswordError) { //nolint:staticcheck // still returned by ssh for bad passphrases
			return nil, errors.WrapWithCode(err, errors.ErrAuth,
				fmt.Sprintf("Wrong passphrase for %s", keyPath),
				"Re-enter the passphrase")
		}
		return nil, errors.WrapWithCode(err, errors.ErrAuth,
			fmt.Sprintf("Can't parse key file %s", keyPath),
			"Use an OpenSSH or PEM private key")
	}

	return ssh.PublicKeys(signer), nil
}

// AgentMethod returns an auth method backed by the running ssh-agent.
// The returned closer releases the agent socket and must be called once
// authentication has finished.
func AgentMethod() (ssh.AuthMethod, func() error, error) {
	socket := os.Getenv("SSH_AUTH_SOCK")
	if socket == "" {
		return nil, nil, errors.New(errors.ErrAuth,
			"No ssh-agent available",
			"Start an agent or pass a key file: ssh-key-login <user@host> <keyfile>")
	}

	conn, err := net.Dial("unix", socket)
	if err != nil {
		return nil, nil, errors.WrapWithCode(err, errors.ErrAuth,
			"Can't talk to ssh-agent",
			"Check SSH_AUTH_SOCK points at a running agent")
	}

	client := agent.NewClient(conn)
	signers, err := client.Signers()
	if err != nil || len(signers) == 0 {
		conn.Close()
		return nil, nil, errors.New(errors.ErrAuth,
			"ssh-agent has no keys loaded",
			"Add one with: ssh-add <keyfile>")
	}

	return ssh.PublicKeysCallback(client.Signers), conn.Close, nil
}

// EncryptedKeyError is returned when an SSH key requires a passphrase.
type EncryptedKeyError struct {
	Path string
}

func (e *EncryptedKeyError) Error() string {
	return fmt.Sprintf("SSH key at %s is encrypted (passphrase protected)", e.Path)
}

// isEncryptedPEM checks if PEM data contains encryption markers.
func isEncryptedPEM(data []byte) bool {
	return bytes.Contains(data, []byte("ENCRYPTED")) ||
		bytes.Contains(data, []byte("Proc-Type: 4,ENCRYPTED"))
}

// WipeBytes zeroes b in place.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
