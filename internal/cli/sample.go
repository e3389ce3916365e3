package cli

import (
	"strings"

	"songquiz-service/internal/domain"
)

// samplePlaylists backs the service when no database is configured.
func samplePlaylists() map[string][]domain.Track {
	return map[string][]domain.Track{
		"queen-greatest-hits": sampleTracks("Queen", "https://covers.example.com/queen-greatest-hits.jpg", []string{
			"Bohemian Rhapsody",
			"Another One Bites the Dust",
			"Killer Queen",
			"Fat Bottomed Girls",
			"Bicycle Race",
			"You're My Best Friend",
			"Don't Stop Me Now",
			"Save Me",
			"Crazy Little Thing Called Love",
			"Somebody to Love",
			"Now I'm Here",
			"Good Old-Fashioned Lover Boy",
			"Play the Game",
			"Flash",
			"Seven Seas of Rhye",
			"We Will Rock You",
			"We Are the Champions",
			"Under Pressure",
			"Radio Ga Ga",
			"I Want to Break Free",
			"A Kind of Magic",
			"Who Wants to Live Forever",
			"The Show Must Go On",
			"Innuendo",
		}),
	}
}

func sampleTracks(artist, cover string, names []string) []domain.Track {
	tracks := make([]domain.Track, 0, len(names))
	for _, name := range names {
		tracks = append(tracks, domain.Track{
			Name:       name,
			Artist:     artist,
			AlbumCover: cover,
			PreviewURL: "https://previews.example.com/" + slug(artist) + "/" + slug(name) + ".mp3",
		})
	}
	return tracks
}

func slug(s string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
