// pkg/utils/utils.go

package utils

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// NewProgress creates a progress container which stays silent when quiet is set
// or stdout is not a terminal.
func NewProgress(quiet bool) *mpb.Progress {
	if !quiet && isatty.IsTerminal(os.Stdout.Fd()) {
		return mpb.New(mpb.WithWidth(64))
	}
	return mpb.New(mpb.WithWidth(64), mpb.WithOutput(nil))
}

// NewByteBar adds a bar counting bytes, the title will appear at the head of it.
func NewByteBar(progress *mpb.Progress, title string, total int64) *mpb.Bar {
	return progress.AddBar(total,
		mpb.PrependDecorators(
			decor.Name(title, decor.WCSyncWidth),
			decor.CountersKibiByte("% .2f / % .2f"),
		),
		mpb.AppendDecorators(
			decor.OnComplete(decor.Percentage(decor.WC{W: 5}), "done"),
		),
	)
}
