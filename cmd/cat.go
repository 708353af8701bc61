// cmd/cat.go

package main

import (
	"fmt"
	"io"
	"os"

	"AveSFTP/pkg/readahead"

	"github.com/urfave/cli/v2"
)

func catFlags() *cli.Command {
	return &cli.Command{
		Name:      "cat",
		Usage:     "write a remote file to stdout",
		ArgsUsage: "[user@]HOST:PATH",
		Action:    cat,
		Flags:     append(sshFlags(), readAheadFlags()...),
	}
}

func cat(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return fmt.Errorf("one remote path is needed")
	}
	r, err := parseRemote(c.Args().First())
	if err != nil {
		return err
	}
	s := dial(c, r)
	defer s.Close()

	f, err := s.Open(r.path)
	if err != nil {
		return err
	}
	defer f.Close()
	ra, err := readahead.New(f, s, readAheadConfig(c))
	if err != nil {
		return err
	}
	stream := readahead.NewStream(ra)
	defer stream.Close()

	_, err = io.Copy(os.Stdout, stream)
	return err
}
