// cmd/get.go

package main

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime"

	"AveSFTP/pkg/meta"
	"AveSFTP/pkg/transfer"

	"github.com/urfave/cli/v2"
)

func getFlags() *cli.Command {
	var defaultLogDir = "/var/log"
	if runtime.GOOS == "darwin" || os.Getuid() != 0 {
		if homeDir, err := os.UserHomeDir(); err == nil {
			defaultLogDir = filepath.Join(homeDir, ".avesftp")
		}
	}
	flags := []cli.Flag{
		&cli.IntFlag{
			Name:    "workers",
			Aliases: []string{"p"},
			Value:   4,
			Usage:   "number of files downloaded concurrently",
		},
		&cli.StringFlag{
			Name:  "compress",
			Value: "none",
			Usage: "compress the local files (lz4, zstd, none)",
		},
		&cli.Int64Flag{
			Name:  "bwlimit",
			Usage: "bandwidth limit for download in Mbps (0 means unlimited)",
		},
		&cli.StringFlag{
			Name:  "meta",
			Value: "mem://",
			Usage: "where the transfers are recorded (e.g. redis://localhost/1)",
		},
		&cli.BoolFlag{
			Name:    "force",
			Aliases: []string{"f"},
			Usage:   "overwrite existing local files",
		},
		&cli.BoolFlag{
			Name:    "d",
			Aliases: []string{"background"},
			Usage:   "run in background",
		},
		&cli.StringFlag{
			Name:  "log",
			Value: filepath.Join(defaultLogDir, "avesftp.log"),
			Usage: "path of log file when running in background",
		},
	}
	flags = append(flags, sshFlags()...)
	flags = append(flags, readAheadFlags()...)
	return &cli.Command{
		Name:      "get",
		Usage:     "download remote files",
		ArgsUsage: "[user@]HOST:PATH ... DEST",
		Action:    get,
		Flags:     flags,
	}
}

var extensions = map[string]string{"lz4": ".lz4", "zstd": ".zst"}

// localPath chooses where remote is written: inside dest when it is a
// directory, or dest itself.
func localPath(remote, dest string, many bool, compression string) string {
	if st, err := os.Stat(dest); many || (err == nil && st.IsDir()) {
		return filepath.Join(dest, path.Base(remote)+extensions[compression])
	}
	return dest
}

func get(c *cli.Context) error {
	if c.Args().Len() < 2 {
		return fmt.Errorf("remote path and destination are required")
	}
	args := c.Args().Slice()
	dest := args[len(args)-1]
	var host *remotePath
	var paths []string
	for _, a := range args[:len(args)-1] {
		r, err := parseRemote(a)
		if err != nil {
			return err
		}
		if host != nil && (r.host != host.host || r.user != host.user) {
			return fmt.Errorf("all the remote paths should be on %s", host.host)
		}
		host = r
		paths = append(paths, r.path)
	}
	if len(paths) > 1 {
		if err := os.MkdirAll(dest, 0755); err != nil {
			return err
		}
	}
	var jobs []transfer.Job
	for _, p := range paths {
		jobs = append(jobs, transfer.Job{Remote: p, Local: localPath(p, dest, len(paths) > 1, c.String("compress"))})
	}

	background := c.Bool("background")
	if background {
		if err := makeDaemon(c, jobs); err != nil {
			logger.Fatalf("make daemon: %s", err)
		}
	}

	reg, err := meta.NewClient(c.String("meta"), &meta.Config{Retries: 10})
	if err != nil {
		logger.Fatalf("%s", err)
	}
	defer reg.Close()
	s := dial(c, host)
	defer s.Close()

	ra := readAheadConfig(c)
	return transfer.Download(s, reg, jobs, &transfer.Options{
		ChunkSize:       ra.ChunkSize,
		MaxPendingReads: ra.MaxPendingReads,
		Workers:         c.Int("workers"),
		Compression:     c.String("compress"),
		BwLimit:         c.Int64("bwlimit") * 1e6 / 8,
		Force:           c.Bool("force"),
		Quiet:           background || c.Bool("quiet"),
	})
}
