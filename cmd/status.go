// cmd/status.go

package main

import (
	"encoding/json"
	"fmt"

	"AveSFTP/pkg/meta"

	"github.com/urfave/cli/v2"
)

func printJson(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		logger.Fatalf("json: %s", err)
	}
	fmt.Println(string(output))
}

func status(ctx *cli.Context) error {
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("META-URL is needed")
	}
	m, err := meta.NewClient(ctx.Args().Get(0), &meta.Config{Retries: 10})
	if err != nil {
		logger.Fatalf("%s", err)
	}
	defer m.Close()

	if id := ctx.String("id"); id != "" {
		t, err := m.Get(id)
		if err != nil {
			logger.Fatalf("get transfer %s: %s", id, err)
		}
		printJson(t)
		return nil
	}

	ts, err := m.List()
	if err != nil {
		logger.Fatalf("list transfers: %s", err)
	}
	if state := ctx.String("state"); state != "" {
		var selected []*meta.Transfer
		for _, t := range ts {
			if t.State == state {
				selected = append(selected, t)
			}
		}
		ts = selected
	}
	printJson(ts)
	return nil
}

func statusFlags() *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show the transfers recorded in META-URL",
		ArgsUsage: "META-URL",
		Action:    status,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "id",
				Usage: "show only the transfer with this id",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "show only transfers in this state (running, done, failed)",
			},
		},
	}
}
