package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

const defaultSSHPort = "22"

// NativeTransport speaks SSH in-process. Targets are "[user@]host[:port]";
// ssh config aliases are not resolved.
type NativeTransport struct {
	KeyFile        string
	KnownHostsFile string
	ConnectTimeout time.Duration

	// AgentSocket defaults to $SSH_AUTH_SOCK.
	AgentSocket string
}

func (t *NativeTransport) Run(ctx context.Context, host, script string) ([]byte, error) {
	username, addr := splitTarget(host, currentUsername())

	cfg, closeAuth, err := t.clientConfig(username)
	if err != nil {
		return nil, err
	}
	defer closeAuth()

	dialer := net.Dialer{Timeout: t.ConnectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, cfg)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	session, err := client.NewSession()
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer session.Close()

	var stdout, stderr bytes.Buffer
	session.Stdin = strings.NewReader(script)
	session.Stdout = &stdout
	session.Stderr = &stderr

	done := make(chan error, 1)
	go func() {
		done <- session.Run("sh -s")
	}()

	select {
	case <-ctx.Done():
		client.Close()
		return nil, ctx.Err()
	case err := <-done:
		if err != nil {
			var exitErr *ssh.ExitError
			if errors.As(err, &exitErr) {
				return nil, fmt.Errorf("remote exit status %d: %s", exitErr.ExitStatus(), strings.TrimSpace(stderr.String()))
			}
			return nil, fmt.Errorf("remote session: %w", err)
		}
		return stdout.Bytes(), nil
	}
}

func (t *NativeTransport) clientConfig(username string) (*ssh.ClientConfig, func(), error) {
	noop := func() {}

	if t.KnownHostsFile == "" {
		return nil, noop, errors.New("known_hosts file is required for host key verification")
	}
	hostKeyCallback, err := knownhosts.New(t.KnownHostsFile)
	if err != nil {
		return nil, noop, fmt.Errorf("load known_hosts: %w", err)
	}

	var methods []ssh.AuthMethod
	closeAuth := noop

	if t.KeyFile != "" {
		key, err := os.ReadFile(t.KeyFile)
		if err != nil {
			return nil, noop, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, noop, fmt.Errorf("parse private key: %w", err)
		}
		methods = append(methods, ssh.PublicKeys(signer))
	}

	socket := t.AgentSocket
	if socket == "" {
		socket = os.Getenv("SSH_AUTH_SOCK")
	}
	if socket != "" {
		if agentConn, err := net.Dial("unix", socket); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(agentConn).Signers))
			closeAuth = func() { agentConn.Close() }
		}
	}

	if len(methods) == 0 {
		return nil, noop, errors.New("no ssh auth method: set a key file or run an ssh agent")
	}

	return &ssh.ClientConfig{
		User:            username,
		Auth:            methods,
		HostKeyCallback: hostKeyCallback,
		Timeout:         t.ConnectTimeout,
	}, closeAuth, nil
}

func splitTarget(target, fallbackUser string) (username, addr string) {
	username = fallbackUser
	hostport := target
	if i := strings.LastIndex(target, "@"); i >= 0 {
		username = target[:i]
		hostport = target[i+1:]
	}

	if _, _, err := net.SplitHostPort(hostport); err != nil {
		hostport = net.JoinHostPort(strings.Trim(hostport, "[]"), defaultSSHPort)
	}

	return username, hostport
}

func currentUsername() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return os.Getenv("USER")
}
