package memory

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/bnema/askdb/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

type RenderOptions struct {
	Now time.Time
	TTL time.Duration
}

const lifetimeBarWidth = 20

// RenderSummaries lists cached results with the share of their lifetime left.
func RenderSummaries(summaries []domain.RecordSummary, opts RenderOptions) (string, error) {
	return run(func(s styles) string {
		return summariesView(summaries, opts, s)
	})
}

func RenderBackups(backups []domain.BackupRecord, opts RenderOptions) (string, error) {
	return run(func(s styles) string {
		return backupsView(backups, opts, s)
	})
}

func summariesView(summaries []domain.RecordSummary, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Cached results"),
		s.header.Render(fmt.Sprintf("entries: %d", len(summaries))),
	}

	if len(summaries) == 0 {
		lines = append(lines, s.empty.Render("No cached results."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, summary := range summaries {
		lines = append(lines, s.section.Render(summaryBlock(summary, opts, s)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func summaryBlock(summary domain.RecordSummary, opts RenderOptions, s styles) string {
	title := lipgloss.JoinHorizontal(lipgloss.Top, s.id.Render(summary.ID), " ", s.kind.Render("["+summary.Kind+"]"))
	parts := []string{title}

	if description := strings.TrimSpace(summary.Description); description != "" {
		parts = append(parts, s.detail.Render(description))
	}
	parts = append(parts, s.detail.Render(fmt.Sprintf("items: %d, created %s", summary.ItemCount, formatAge(summary.CreatedAt, opts.Now))))

	if opts.TTL > 0 && !opts.Now.IsZero() {
		expiresAt := summary.CreatedAt.Add(opts.TTL)
		left := 100 * expiresAt.Sub(opts.Now).Seconds() / opts.TTL.Seconds()
		percentStyle := lipgloss.NewStyle().Foreground(interpolateColor(left, 0, 100))
		parts = append(parts, lipgloss.JoinHorizontal(
			lipgloss.Top,
			renderLifetimeBar(left, lifetimeBarWidth, s),
			" ",
			percentStyle.Render(formatExpiry(expiresAt, opts.Now)),
		))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func backupsView(backups []domain.BackupRecord, opts RenderOptions, s styles) string {
	lines := []string{
		s.title.Render("Backups"),
		s.header.Render(fmt.Sprintf("snapshots: %d", len(backups))),
	}

	if len(backups) == 0 {
		lines = append(lines, s.empty.Render("No backups yet."))
		return lipgloss.JoinVertical(lipgloss.Left, lines...)
	}

	for _, backup := range backups {
		origin := s.manual.Render("manual")
		if backup.IsAuto {
			origin = s.auto.Render("auto")
		}
		line := lipgloss.JoinHorizontal(
			lipgloss.Top,
			s.id.Render(backup.ID),
			" ",
			origin,
			" ",
			s.detail.Render(formatAge(backup.CreatedAt, opts.Now)),
		)
		if comment := strings.TrimSpace(backup.Comment); comment != "" {
			line = lipgloss.JoinVertical(lipgloss.Left, line, s.detail.Render("  "+comment))
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderLifetimeBar(leftPercent float64, width int, s styles) string {
	if width <= 0 {
		return ""
	}

	left := clampPercent(leftPercent)
	filled := int(math.Round(float64(width) * left / 100))
	if filled > width {
		filled = width
	}

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		s.barBracket.Render("["),
		s.barFill.Render(strings.Repeat("=", filled)),
		s.barEmpty.Render(strings.Repeat("-", width-filled)),
		s.barBracket.Render("]"),
	)
}

func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}

func formatAge(at, now time.Time) string {
	if at.IsZero() {
		return "at an unknown time"
	}
	if now.IsZero() {
		return at.UTC().Format("2006-01-02 15:04")
	}

	elapsed := now.Sub(at)
	switch {
	case elapsed < time.Minute:
		return "just now"
	case elapsed < time.Hour:
		return plural(int(elapsed.Minutes()), "minute") + " ago"
	case elapsed < 24*time.Hour:
		return plural(int(elapsed.Hours()), "hour") + " ago"
	default:
		return plural(int(elapsed.Hours()/24), "day") + " ago"
	}
}

func formatExpiry(expiresAt, now time.Time) string {
	if !expiresAt.After(now) {
		return "expired"
	}

	remaining := expiresAt.Sub(now)
	if remaining < time.Hour {
		minutes := int(math.Ceil(remaining.Minutes()))
		return "expires in " + plural(minutes, "minute")
	}
	hours := int(math.Ceil(remaining.Hours()))
	return fmt.Sprintf("expires in %s (%s)", plural(hours, "hour"), expiresAt.UTC().Format("15:04"))
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func interpolateColor(value, min, max float64) lipgloss.Color {
	if max == min {
		return lipgloss.Color("255")
	}

	normalized := (value - min) / (max - min)
	if normalized < 0 {
		normalized = 0
	}
	if normalized > 1 {
		normalized = 1
	}

	// ANSI 256 greyscale ramp from 240 (faded) to 255 (bright).
	return lipgloss.Color(fmt.Sprintf("%d", int(240+15*normalized)))
}
