package tui

import (
	"fmt"
	"io"

	"github.com/aretw0/blueprint/pkg/domain"
	"github.com/muesli/termenv"
)

// PrintBanner writes the server banner.
func PrintBanner(w io.Writer, version string) {
	out := termenv.NewOutput(w)
	lines := []struct {
		text, color string
	}{
		{" _    _                       _     _   ", "#818cf8"},
		{"| |__| |_  _ ___ _ __ _ _ _ _(_)_ _| |_ ", "#a78bfa"},
		{"| '_ \\ | || / -_) '_ \\ '_| | ' \\  _|", "#c084fc"},
		{"|_.__/_|\\_,_\\___| .__/_| |_|_||_\\__|", "#e879f9"},
		{"                |_|                     ", "#f472b6"},
	}
	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w, out.String("  "+version).Faint())
	fmt.Fprintln(w)
}

// StatusLabel colours a sync status for terminal output.
func StatusLabel(w io.Writer, status domain.SyncStatus) string {
	out := termenv.NewOutput(w)
	var color string
	switch status {
	case domain.SyncIdle:
		color = "#22c55e"
	case domain.SyncSaving:
		color = "#eab308"
	case domain.SyncConflict:
		color = "#f97316"
	case domain.SyncError:
		color = "#ef4444"
	default:
		return string(status)
	}
	return out.String(string(status)).Foreground(out.Color(color)).Bold().String()
}

// BlueprintStatusLabel colours a publication status.
func BlueprintStatusLabel(w io.Writer, status domain.BlueprintStatus) string {
	out := termenv.NewOutput(w)
	switch status {
	case domain.StatusPublished:
		return out.String(string(status)).Foreground(out.Color("#22c55e")).String()
	case domain.StatusArchived:
		return out.String(string(status)).Faint().String()
	}
	return string(status)
}
