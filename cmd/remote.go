// cmd/remote.go

package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"AveSFTP/pkg/readahead"
	"AveSFTP/pkg/session"
	"AveSFTP/pkg/utils"

	"github.com/urfave/cli/v2"
)

type remotePath struct {
	user string
	host string
	path string
}

// parseRemote parses [user@]host:path
func parseRemote(s string) (*remotePath, error) {
	i := strings.Index(s, ":")
	if i <= 0 {
		return nil, fmt.Errorf("invalid remote path %q, it should be [user@]host:path", s)
	}
	r := &remotePath{host: s[:i], path: s[i+1:]}
	if j := strings.LastIndex(r.host, "@"); j >= 0 {
		r.user, r.host = r.host[:j], r.host[j+1:]
	}
	if r.host == "" {
		return nil, fmt.Errorf("invalid remote path %q: empty host", s)
	}
	if r.path == "" {
		r.path = "."
	}
	return r, nil
}

func sshFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "port",
			Value: 22,
			Usage: "port of the SSH server",
		},
		&cli.StringFlag{
			Name:  "user",
			Usage: "login name when it's not given in the remote path (default $USER)",
		},
		&cli.StringFlag{
			Name:    "identity",
			Aliases: []string{"i"},
			Usage:   "private key file (env AFS_SSH_PASSPHRASE), password in env AFS_SSH_PASSWORD",
		},
		&cli.StringFlag{
			Name:  "known-hosts",
			Usage: "known hosts file (default ~/.ssh/known_hosts)",
		},
		&cli.BoolFlag{
			Name:  "insecure",
			Usage: "do not verify the host key of the server",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Value: 30 * time.Second,
			Usage: "timeout of the SSH handshake",
		},
		&cli.IntFlag{
			Name:  "max-packet",
			Value: 32768,
			Usage: "max size of SFTP packets in bytes",
		},
	}
}

func readAheadFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "chunk-size",
			Value: readahead.DefaultChunkSize >> 10,
			Usage: "size of each read-ahead request in KiB",
		},
		&cli.IntFlag{
			Name:  "max-pending",
			Value: readahead.DefaultMaxPendingReads,
			Usage: "number of read-ahead requests in flight or buffered",
		},
	}
}

func readAheadConfig(c *cli.Context) *readahead.Config {
	return &readahead.Config{
		ChunkSize:       c.Int("chunk-size") << 10,
		MaxPendingReads: c.Int("max-pending"),
	}
}

func knownHosts(c *cli.Context) string {
	if c.Bool("insecure") {
		return ""
	}
	if p := c.String("known-hosts"); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		logger.Fatalf("no known hosts file: %s", err)
	}
	p := filepath.Join(home, ".ssh", "known_hosts")
	if !utils.Exists(p) {
		logger.Fatalf("%s does not exist, use --known-hosts or --insecure", p)
	}
	return p
}

func dial(c *cli.Context, r *remotePath) *session.Session {
	user := r.user
	if user == "" {
		user = c.String("user")
	}
	s, err := session.Dial(&session.Config{
		Addr:       net.JoinHostPort(r.host, strconv.Itoa(c.Int("port"))),
		User:       user,
		KeyPath:    c.String("identity"),
		KnownHosts: knownHosts(c),
		Timeout:    c.Duration("timeout"),
		MaxPacket:  c.Int("max-packet"),
	})
	if err != nil {
		logger.Fatalf("connect %s: %s", r.host, err)
	}
	return s
}
