package native

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// RemoteConfig describes the SSH parameters for controlling an rtl_tcp
// daemon on a remote host.
type RemoteConfig struct {
	Host     string
	User     string
	Password string
	KeyPath  string
	Port     int
	// ListenPort is the port rtl_tcp should serve IQ data on.
	ListenPort int
	// DeviceNumber selects the dongle when several are attached.
	DeviceNumber int
}

// RemoteLauncher starts and stops rtl_tcp on a remote host over SSH so the
// RTLSDRTCP driver has an endpoint to connect to.
type RemoteLauncher struct {
	mu     sync.Mutex
	cfg    RemoteConfig
	client *ssh.Client
}

// NewRemoteLauncher validates configuration and prepares a launcher.
func NewRemoteLauncher(cfg RemoteConfig) (*RemoteLauncher, error) {
	if cfg.Host == "" {
		return nil, fmt.Errorf("ssh host is required")
	}
	if cfg.User == "" {
		cfg.User = "root"
	}
	if cfg.Port == 0 {
		cfg.Port = 22
	}
	if cfg.ListenPort == 0 {
		cfg.ListenPort = rtlDefaultPort
	}
	return &RemoteLauncher{cfg: cfg}, nil
}

// Start launches rtl_tcp in the background on the remote host.
func (l *RemoteLauncher) Start(ctx context.Context) error {
	client, err := l.dial(ctx)
	if err != nil {
		return err
	}

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("create ssh session: %w", err)
	}
	defer session.Close()

	cmd := fmt.Sprintf("nohup rtl_tcp -a 0.0.0.0 -p %d -d %d >/dev/null 2>&1 &",
		l.cfg.ListenPort, l.cfg.DeviceNumber)
	if err := session.Run(cmd); err != nil {
		return fmt.Errorf("launch rtl_tcp via ssh: %w", err)
	}
	return nil
}

// Stop terminates the remote rtl_tcp process.
func (l *RemoteLauncher) Stop(ctx context.Context) error {
	client, err := l.dial(ctx)
	if err != nil {
		return err
	}

	session, err := client.NewSession()
	if err != nil {
		return fmt.Errorf("create ssh session: %w", err)
	}
	defer session.Close()

	if err := session.Run("pkill -f rtl_tcp"); err != nil {
		// pkill exits nonzero when nothing matched, which is fine here.
		if !strings.Contains(err.Error(), "exited with status 1") {
			return fmt.Errorf("stop rtl_tcp via ssh: %w", err)
		}
	}
	return nil
}

// Close shuts the SSH connection down.
func (l *RemoteLauncher) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.client == nil {
		return nil
	}
	err := l.client.Close()
	l.client = nil
	return err
}

func (l *RemoteLauncher) dial(ctx context.Context) (*ssh.Client, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.client != nil {
		return l.client, nil
	}

	auth := []ssh.AuthMethod{}
	if l.cfg.Password != "" {
		auth = append(auth, ssh.Password(l.cfg.Password))
	}
	if l.cfg.KeyPath != "" {
		key, err := os.ReadFile(l.cfg.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if len(auth) == 0 {
		return nil, fmt.Errorf("no ssh password or key configured")
	}

	config := &ssh.ClientConfig{
		User:            l.cfg.User,
		Auth:            auth,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         5 * time.Second,
	}

	addr := fmt.Sprintf("%s:%d", l.cfg.Host, l.cfg.Port)
	dialer := net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial ssh: %w", err)
	}

	clientConn, chans, reqs, err := ssh.NewClientConn(conn, addr, config)
	if err != nil {
		return nil, fmt.Errorf("create ssh client: %w", err)
	}

	l.client = ssh.NewClient(clientConn, chans, reqs)
	return l.client, nil
}
