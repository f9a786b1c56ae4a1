package monitor

import (
	"github.com/genricoloni/spotline/internal/domain"
	"github.com/godbus/dbus/v5"
)

// ExtractTrack builds TrackMetadata from an MPRIS metadata map.
// Missing fields become domain.UnknownField. The second return value is false
// when neither title nor artist is present, meaning there is no track.
func ExtractTrack(metadata map[string]dbus.Variant) (domain.TrackMetadata, bool) {
	title := extractString(metadata, "xesam:title")
	artist := extractArtist(metadata, "xesam:artist")
	album := extractString(metadata, "xesam:album")

	if title == "" && artist == "" {
		return domain.TrackMetadata{}, false
	}

	return domain.TrackMetadata{
		Title:  orUnknown(title),
		Artist: orUnknown(artist),
		Album:  orUnknown(album),
	}, true
}

func orUnknown(s string) string {
	if s == "" {
		return domain.UnknownField
	}
	return s
}

func extractString(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}
	text, _ := variant.Value().(string)
	return text
}

// extractArtist returns the first artist; some non-compliant players send a plain string
func extractArtist(metadata map[string]dbus.Variant, key string) string {
	variant, exists := metadata[key]
	if !exists {
		return ""
	}

	switch artists := variant.Value().(type) {
	case []string:
		if len(artists) > 0 {
			return artists[0]
		}
	case string:
		return artists
	}
	return ""
}
