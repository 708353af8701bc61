// pkg/session/session.go

// Package session implements the read-ahead transport on top of SFTP.
package session

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"AveSFTP/pkg/readahead"
	"AveSFTP/pkg/utils"
	"AveSFTP/pkg/version"

	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/agent"
	"golang.org/x/crypto/ssh/knownhosts"
)

var logger = utils.GetLogger("avesftp")

// Config for SSH connections.
type Config struct {
	Addr       string // host[:port]
	User       string
	Password   string // env AFS_SSH_PASSWORD
	KeyPath    string // private key, env AFS_SSH_PASSPHRASE when it is encrypted
	KnownHosts string // empty accepts any host key
	Timeout    time.Duration
	MaxPacket  int
}

// Session is an SFTP client shared by all the readers of one host.
type Session struct {
	addr   string
	conn   *ssh.Client
	client *sftp.Client
}

var _ readahead.Session = &Session{}

func authMethods(conf *Config) ([]ssh.AuthMethod, error) {
	var methods []ssh.AuthMethod
	if sock := os.Getenv("SSH_AUTH_SOCK"); sock != "" {
		if c, err := net.Dial("unix", sock); err == nil {
			methods = append(methods, ssh.PublicKeysCallback(agent.NewClient(c).Signers))
		} else {
			logger.Debugf("connect ssh agent %s: %s", sock, err)
		}
	}

	keys := []string{conf.KeyPath}
	if conf.KeyPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			keys = []string{filepath.Join(home, ".ssh", "id_ed25519"), filepath.Join(home, ".ssh", "id_rsa")}
		}
	}
	var signers []ssh.Signer
	for _, p := range keys {
		if p == "" || (conf.KeyPath == "" && !utils.Exists(p)) {
			continue
		}
		pem, err := os.ReadFile(p)
		if err != nil {
			return nil, errors.Wrapf(err, "load private key")
		}
		signer, err := ssh.ParsePrivateKey(pem)
		var missing *ssh.PassphraseMissingError
		if errors.As(err, &missing) {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(pem, []byte(os.Getenv("AFS_SSH_PASSPHRASE")))
		}
		if err != nil {
			return nil, fmt.Errorf("parse private key %s: %s", p, err)
		}
		signers = append(signers, signer)
	}
	if len(signers) > 0 {
		methods = append(methods, ssh.PublicKeys(signers...))
	}

	password := conf.Password
	if password == "" {
		password = os.Getenv("AFS_SSH_PASSWORD")
	}
	if password != "" {
		methods = append(methods, ssh.Password(password))
	}
	if len(methods) == 0 {
		return nil, errors.New("no ssh authentication method available")
	}
	return methods, nil
}

func hostKeyCallback(path string) (ssh.HostKeyCallback, error) {
	if path == "" {
		logger.Warnf("host key of the server is not verified")
		return ssh.InsecureIgnoreHostKey(), nil
	}
	return knownhosts.New(path)
}

// Dial opens an SFTP session on conf.Addr.
func Dial(conf *Config) (*Session, error) {
	methods, err := authMethods(conf)
	if err != nil {
		return nil, err
	}
	hostKey, err := hostKeyCallback(conf.KnownHosts)
	if err != nil {
		return nil, fmt.Errorf("known hosts %s: %s", conf.KnownHosts, err)
	}
	user := conf.User
	if user == "" {
		user = os.Getenv("USER")
	}
	addr := conf.Addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		addr = net.JoinHostPort(addr, "22")
	}
	conn, err := ssh.Dial("tcp", addr, &ssh.ClientConfig{
		User:            user,
		Auth:            methods,
		HostKeyCallback: hostKey,
		Timeout:         conf.Timeout,
		ClientVersion:   version.UserAgent(),
	})
	if err != nil {
		return nil, fmt.Errorf("ssh %s@%s: %s", user, addr, err)
	}
	var opts []sftp.ClientOption
	if conf.MaxPacket > 0 {
		opts = append(opts, sftp.MaxPacket(conf.MaxPacket))
	}
	client, err := sftp.NewClient(conn, opts...)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("sftp %s: %s", addr, err)
	}
	logger.Debugf("connected to %s as %s", addr, user)
	s := NewSession(client, addr)
	s.conn = conn
	return s, nil
}

// NewSession wraps an established SFTP client.
func NewSession(client *sftp.Client, addr string) *Session {
	return &Session{addr: addr, client: client}
}

func (s *Session) String() string {
	return "sftp://" + s.addr
}

// Open opens a remote file for reading.
func (s *Session) Open(path string) (*sftp.File, error) {
	f, err := s.client.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s%s", s, path)
	}
	return f, nil
}

func (s *Session) file(h readahead.Handle) (*sftp.File, error) {
	f, ok := h.(*sftp.File)
	if !ok {
		return nil, errors.Errorf("%s is not opened by %s", h.Name(), s)
	}
	return f, nil
}

func (s *Session) Fstat(h readahead.Handle) (int64, error) {
	f, err := s.file(h)
	if err != nil {
		return 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", f.Name())
	}
	return fi.Size(), nil
}

func (s *Session) BeginRead(h readahead.Handle, off int64, length int, done func([]byte, error)) {
	f, err := s.file(h)
	if err != nil {
		done(nil, err)
		return
	}
	go func() {
		done(readAt(f, off, length))
	}()
}

func (s *Session) ReadAt(h readahead.Handle, off int64, length int) ([]byte, error) {
	f, err := s.file(h)
	if err != nil {
		return nil, err
	}
	return readAt(f, off, length)
}

func readAt(f *sftp.File, off int64, length int) ([]byte, error) {
	buf := make([]byte, length)
	n, err := f.ReadAt(buf, off)
	if err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "read %s at %d", f.Name(), off)
	}
	return buf[:n], nil
}

// Close closes the SFTP client and the connection it was dialed on.
func (s *Session) Close() error {
	err := s.client.Close()
	if s.conn != nil {
		if e := s.conn.Close(); err == nil {
			err = e
		}
	}
	return err
}
