package main

import (
	"io"
	"os"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"tramita/internal/store"

	"github.com/mattn/go-isatty"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

var titleCaser = cases.Title(language.Und)

// displayName renders snake_case role and workspace identifiers for humans.
func displayName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	return titleCaser.String(strings.ReplaceAll(value, "_", " "))
}

func statusColor(status store.DocumentStatus) string {
	switch status {
	case store.StatusApproved, store.StatusPublished:
		return ansiGreen
	case store.StatusRejected:
		return ansiRed
	case store.StatusPendingReview, store.StatusUnderReview, store.StatusPendingApproval:
		return ansiYellow
	case store.StatusArchived:
		return ansiBlue
	default:
		return ""
	}
}

func renderStatus(status store.DocumentStatus, colorize bool) string {
	label := displayName(string(status))
	if !colorize {
		return label
	}
	color := statusColor(status)
	if color == "" {
		return label
	}
	return color + label + ansiReset
}

func renderReadBadge(read bool, colorize bool) string {
	if read {
		if colorize {
			return ansiGreen + "read" + ansiReset
		}
		return "read"
	}
	if colorize {
		return ansiYellow + "unread" + ansiReset
	}
	return "unread"
}

func renderPriority(priority store.Priority, colorize bool) string {
	label := string(priority)
	if !colorize {
		return label
	}
	switch priority {
	case store.PriorityUrgent:
		return ansiRed + label + ansiReset
	case store.PriorityHigh:
		return ansiYellow + label + ansiReset
	default:
		return label
	}
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func truncate(value string, limit int) string {
	if limit <= 3 || len(value) <= limit {
		return value
	}
	return value[:limit-3] + "..."
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
