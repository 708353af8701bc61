// cmd/stat.go

package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

type remoteStat struct {
	Path   string
	Size   int64
	Chunks int64
}

func statFlags() *cli.Command {
	return &cli.Command{
		Name:      "stat",
		Usage:     "show the size of remote files and the chunks to read them",
		ArgsUsage: "[user@]HOST:PATH ...",
		Action:    stat,
		Flags:     append(sshFlags(), readAheadFlags()...),
	}
}

func stat(c *cli.Context) error {
	if c.Args().Len() < 1 {
		return fmt.Errorf("remote path is needed")
	}
	chunk := int64(readAheadConfig(c).ChunkSize)
	if chunk <= 0 {
		return fmt.Errorf("invalid chunk size: %d", chunk)
	}
	var stats []remoteStat
	for _, a := range c.Args().Slice() {
		r, err := parseRemote(a)
		if err != nil {
			return err
		}
		s := dial(c, r)
		f, err := s.Open(r.path)
		if err != nil {
			_ = s.Close()
			return err
		}
		size, err := s.Fstat(f)
		_ = f.Close()
		_ = s.Close()
		if err != nil {
			return err
		}
		stats = append(stats, remoteStat{a, size, (size + chunk - 1) / chunk})
	}
	printJson(stats)
	return nil
}
