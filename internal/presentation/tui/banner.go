package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct{ text, color string }{
	{"     _               _     _ _           _   ", "#818cf8"},
	{"  __| |_   _ _______| |__ (_) |__   ___ | |_ ", "#a78bfa"},
	{" / _` | | | |_  / _ \\ '_ \\| | '_ \\ / _ \\| __|", "#c084fc"},
	{"| (_| | |_| |/ /  __/ | | | | |_) | (_) | |_ ", "#e879f9"},
	{" \\__,_|\\__,_/___\\___|_| |_|_|_.__/ \\___/ \\__|", "#f472b6"},
}

// PrintBanner writes the duzhibot ASCII banner to w, colored when w is a terminal.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	p := out.ColorProfile()

	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w)
}
