package main

import (
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
)

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newProgress returns a bar on interactive writers and nil otherwise.
func newProgress(w io.Writer, total int, description string) *progressbar.ProgressBar {
	if total <= 0 || !isTerminal(w) {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

type palette struct {
	ok   *color.Color
	fail *color.Color
	warn *color.Color
	dim  *color.Color
}

func newPalette(w io.Writer) palette {
	p := palette{
		ok:   color.New(color.FgGreen, color.Bold),
		fail: color.New(color.FgRed, color.Bold),
		warn: color.New(color.FgYellow),
		dim:  color.New(color.Faint),
	}
	if !isTerminal(w) {
		for _, c := range []*color.Color{p.ok, p.fail, p.warn, p.dim} {
			c.DisableColor()
		}
	}
	return p
}

func (p palette) status(ok bool, text string) string {
	if ok {
		return p.ok.Sprint(text)
	}
	return p.fail.Sprint(text)
}
