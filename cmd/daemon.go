// cmd/daemon.go

package main

import (
	"os"
	"path/filepath"

	"AveSFTP/pkg/transfer"
	"AveSFTP/pkg/utils"

	"github.com/juicedata/godaemon"
	"github.com/urfave/cli/v2"
)

func makeDaemon(c *cli.Context, jobs []transfer.Job) error {
	logfile := c.String("log")
	var attrs godaemon.DaemonAttr
	attrs.OnExit = func(stage int) error {
		if stage == 0 {
			logger.Infof("downloading %d files in background, log is written into %s", len(jobs), logfile)
		}
		return nil
	}

	// the current dir will be changed to root in daemon,
	// so all the local paths have to be absolute.
	if godaemon.Stage() == 0 {
		for i, a := range os.Args {
			if a == c.Args().Get(c.Args().Len()-1) {
				if abs, err := filepath.Abs(a); err == nil {
					os.Args[i] = abs
				} else {
					logger.Warnf("abs of %s: %s", a, err)
				}
			}
		}
		if err := os.MkdirAll(filepath.Dir(logfile), 0755); err != nil {
			logger.Warnf("create %s: %s", filepath.Dir(logfile), err)
		}
		var err error
		attrs.Stdout, err = os.OpenFile(logfile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			logger.Errorf("open log file %s: %s", logfile, err)
		}
	}
	_, _, err := godaemon.MakeDaemon(&attrs)
	if err == nil {
		err = utils.SetOutFile(logfile)
	}
	return err
}
