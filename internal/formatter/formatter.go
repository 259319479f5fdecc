// package formatter renders catalog data for the CLI: styled tables for
// terminals and CSV for export.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Impirs/Orbitune/internal/models"
	"github.com/Impirs/Orbitune/internal/shared"
)

var (
	titleStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true).MarginBottom(1)
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#626262")).Italic(true)
)

// PlaylistTable renders canonical playlists as an aligned terminal table.
func PlaylistTable(playlists []*models.Playlist) string {
	if len(playlists) == 0 {
		return dimStyle.Render("No playlists synced yet.") + "\n"
	}

	var buf strings.Builder
	buf.WriteString(titleStyle.Render("Playlists"))
	buf.WriteString("\n")
	buf.WriteString(headerStyle.Render(fmt.Sprintf("%-38s %-10s %-40s %6s", "ID", "PLATFORM", "TITLE", "TRACKS")))
	buf.WriteString("\n")

	for _, p := range playlists {
		buf.WriteString(fmt.Sprintf("%-38s %-10s %-40s %6d\n", p.ID, p.SourcePlatform, truncate(p.Title, 40), p.TrackCount))
	}
	return buf.String()
}

// TrackTable renders a playlist's tracks in stored order.
func TrackTable(title string, tracks []models.PlaylistTrackView) string {
	var buf strings.Builder
	buf.WriteString(titleStyle.Render(title))
	buf.WriteString("\n")

	if len(tracks) == 0 {
		buf.WriteString(dimStyle.Render("No tracks.") + "\n")
		return buf.String()
	}

	buf.WriteString(headerStyle.Render(fmt.Sprintf("%4s  %-40s %-30s %8s", "#", "TITLE", "ARTIST", "LENGTH")))
	buf.WriteString("\n")
	for _, t := range tracks {
		buf.WriteString(fmt.Sprintf("%4d  %-40s %-30s %8s\n",
			t.OrderIndex+1, truncate(t.Title, 40), truncate(t.Artist, 30), shared.FormatDuration(t.DurationSeconds)))
	}
	return buf.String()
}

// AccountTable renders connected accounts. Tokens are never printed.
func AccountTable(accounts []*models.ConnectedAccount) string {
	if len(accounts) == 0 {
		return dimStyle.Render("No connected accounts.") + "\n"
	}

	var buf strings.Builder
	buf.WriteString(titleStyle.Render("Connected accounts"))
	buf.WriteString("\n")
	buf.WriteString(headerStyle.Render(fmt.Sprintf("%-10s %-24s %-20s", "PLATFORM", "EXTERNAL USER", "CONNECTED")))
	buf.WriteString("\n")

	for _, a := range accounts {
		buf.WriteString(fmt.Sprintf("%-10s %-24s %-20s\n",
			a.Platform, a.ExternalUserID, a.CreatedAt.Format("2006-01-02 15:04")))
	}
	return buf.String()
}

// StatsText renders a platform account summary.
func StatsText(platform string, stats *models.PlatformStats) string {
	var buf strings.Builder
	buf.WriteString(titleStyle.Render(platform))
	buf.WriteString("\n")
	buf.WriteString(fmt.Sprintf("User:      %s (%s)\n", stats.DisplayName, stats.ExternalUserID))
	buf.WriteString(fmt.Sprintf("Songs:     %d\n", stats.Songs))
	buf.WriteString(fmt.Sprintf("Playlists: %d\n", stats.Playlists))
	if stats.Subscription != "" {
		buf.WriteString(fmt.Sprintf("Plan:      %s\n", stats.Subscription))
	}
	return buf.String()
}

// FavoritesText renders a favorites summary line.
func FavoritesText(fp *models.FavoritesPointer) string {
	return fmt.Sprintf("%s: %s (%d tracks, updated %s)\n",
		fp.Platform, fp.Title, fp.TrackCount, fp.UpdatedAt.Format("2006-01-02 15:04"))
}

// TracksToCSV converts a playlist's tracks to CSV with columns:
// Position, Title, Artist, Album, DurationSeconds
func TracksToCSV(tracks []models.PlaylistTrackView) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Position", "Title", "Artist", "Album", "DurationSeconds"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range tracks {
		duration := ""
		if track.DurationSeconds != nil {
			duration = strconv.Itoa(*track.DurationSeconds)
		}
		record := []string{
			strconv.Itoa(track.OrderIndex),
			track.Title,
			track.Artist,
			track.Album,
			duration,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// truncate shortens s to max characters. Counts runes, not bytes, so
// multibyte titles are never cut mid-character.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
