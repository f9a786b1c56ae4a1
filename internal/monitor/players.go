package monitor

import "regexp"

// desktopPlayers are accepted by exact bus name
var desktopPlayers = map[string]bool{
	"org.mpris.MediaPlayer2.spotify":       true,
	"org.mpris.MediaPlayer2.youtube-music": true,
}

// browserPlayers match per-instance names exported by browsers,
// e.g. org.mpris.MediaPlayer2.chromium.instance12345
var browserPlayers = []*regexp.Regexp{
	regexp.MustCompile(`^org\.mpris\.MediaPlayer2\.chromium\.instance\d+$`),
	regexp.MustCompile(`^org\.mpris\.MediaPlayer2\.chrome\.instance\d+$`),
	regexp.MustCompile(`^org\.mpris\.MediaPlayer2\.firefox\.instance\d+$`),
	regexp.MustCompile(`^org\.mpris\.MediaPlayer2\.brave\.instance\d+$`),
	regexp.MustCompile(`^org\.mpris\.MediaPlayer2\.edge\.instance\d+$`),
}

// IsSupportedPlayer reports whether a bus name belongs to a player we follow
func IsSupportedPlayer(busName string) bool {
	if desktopPlayers[busName] {
		return true
	}
	for _, pattern := range browserPlayers {
		if pattern.MatchString(busName) {
			return true
		}
	}
	return false
}
