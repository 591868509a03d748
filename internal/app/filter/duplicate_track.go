package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/shinonome/internal/domain/track"
)

// DuplicateTrackFilter rejects tracks already listed in the room, the one playing included.
// Detects:
// - Same URL
// - Same song re-uploaded as a remaster / official video / lyric video by the same uploader
// Excludes:
// - Covers (same title, different uploader)
type DuplicateTrackFilter struct{}

// Name returns the filter name.
func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

// Description returns the filter description.
func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already in the queue (including remasters and alternate uploads by the same channel)"
}

// ReturnCodes returns possible return codes.
func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

// ValidateConfig validates the filter configuration.
func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	// No configuration needed
	return nil
}

// Check checks if the track is a duplicate.
func (f *DuplicateTrackFilter) Check(ctx context.Context, req Request) Result {
	for _, p := range req.Pending {
		if p.Track.URL != "" && p.Track.URL == req.Track.URL {
			return Reject("duplicate_track")
		}
		if p.Track.Source == req.Track.Source && p.Track.ID != "" && p.Track.ID == req.Track.ID {
			return Reject("duplicate_track")
		}
		if f.isRemaster(p.Track, req.Track) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

// isRemaster checks if two tracks are the same song in a different version.
func (f *DuplicateTrackFilter) isRemaster(track1, track2 track.Track) bool {
	if normalizeTrackName(track1.Title) != normalizeTrackName(track2.Title) {
		return false
	}
	return isSameUploader(track1, track2)
}

// normalizeTrackName removes remaster information and version details.
func normalizeTrackName(name string) string {
	// Convert to lowercase
	normalized := strings.ToLower(name)

	// Remove common remaster patterns
	remasterPatterns := []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),      // "- 2011 Remaster"
		regexp.MustCompile(`\s*\(remaster(ed)?\s*\d{0,4}\)`),     // "(Remastered 2023)"
		regexp.MustCompile(`\s*\[remaster(ed)?\s*\d{0,4}\]`),     // "[Remastered]"
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`), // "- Remastered"
		regexp.MustCompile(`\s*\(.*?remaster.*?\)`),              // "(Any Remaster text)"
		regexp.MustCompile(`\s*\[.*?remaster.*?\]`),              // "[Any Remaster text]"
	}

	for _, pattern := range remasterPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	// Remove other common version indicators
	versionPatterns := []*regexp.Regexp{
		regexp.MustCompile(`\s*[\(\[]official.*?[\)\]]`), // "(Official Video)", "[Official Audio]"
		regexp.MustCompile(`\s*[\(\[](lyrics?|audio|hd|4k)[\)\]]`),
		regexp.MustCompile(`\s*\(.*?version\)`),        // "(Single Version)"
		regexp.MustCompile(`\s*\(.*?edit\)`),           // "(Radio Edit)"
		regexp.MustCompile(`\s*-?\s*live`),             // "- Live"
		regexp.MustCompile(`\s*\(live\)`),              // "(Live)"
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),     // "- Radio Edit"
		regexp.MustCompile(`\s*-?\s*single\s+version`), // "- Single Version"
	}

	for _, pattern := range versionPatterns {
		normalized = pattern.ReplaceAllString(normalized, "")
	}

	// Remove extra whitespace
	normalized = strings.TrimSpace(normalized)
	normalized = regexp.MustCompile(`\s+`).ReplaceAllString(normalized, " ")

	// Remove trailing dashes
	normalized = strings.TrimRight(normalized, " -")

	return normalized
}

// isSameUploader compares uploaders, ignoring case and the " - Topic" suffix of auto-generated channels.
func isSameUploader(track1, track2 track.Track) bool {
	u1 := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(track1.Uploader)), " - topic")
	u2 := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(track2.Uploader)), " - topic")
	if u1 == "" || u2 == "" {
		return false
	}
	return u1 == u2
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return &DuplicateTrackFilter{}
	})
}
