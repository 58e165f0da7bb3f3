package scanner

import (
	"path/filepath"
	"regexp"
	"strings"
)

// AudioExtensions lists the file types picked up by a scan.
var AudioExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".aac"}

type keywordSet struct {
	tag      string
	keywords []string
}

// Checked in order; output tags keep this order.
var moodKeywords = []keywordSet{
	{"happy", []string{"happy", "upbeat", "cheerful", "joy", "sunshine", "summer", "party", "dance"}},
	{"energetic", []string{"energetic", "energy", "workout", "gym", "running", "fast", "pump", "power"}},
	{"excited", []string{"excited", "excitement", "thrilled", "pumped", "hyped", "wild"}},
	{"calm", []string{"calm", "peaceful", "serene", "tranquil", "meditation", "zen", "chill", "relax"}},
	{"focused", []string{"focused", "concentration", "study", "work", "ambient", "instrumental", "classical"}},
	{"sad", []string{"sad", "melancholy", "blue", "depressed", "lonely", "tears", "cry", "heartbreak"}},
	{"melancholic", []string{"melancholic", "nostalgic", "bittersweet", "wistful", "reflective"}},
	{"anxious", []string{"anxious", "anxiety", "nervous", "worried", "tense", "stress", "overwhelmed"}},
}

var genreKeywords = []keywordSet{
	{"pop", []string{"pop", "mainstream", "radio"}},
	{"rock", []string{"rock", "alternative", "indie"}},
	{"electronic", []string{"electronic", "edm", "techno", "house", "trance", "ambient"}},
	{"classical", []string{"classical", "orchestral", "piano", "violin", "symphony"}},
	{"jazz", []string{"jazz", "blues", "soul", "funk"}},
	{"hiphop", []string{"hiphop", "rap", "urban"}},
	{"country", []string{"country", "folk", "acoustic"}},
	{"ambient", []string{"ambient", "atmospheric", "soundscape"}},
}

const (
	unknownArtist = "Unknown Artist"
	localAlbum    = "Local Collection"
)

// "A - B", "A_B", "A – B"
var filenamePatterns = []*regexp.Regexp{
	regexp.MustCompile(`^(.+?)\s*-\s*(.+)$`),
	regexp.MustCompile(`^(.+?)_(.+)$`),
	regexp.MustCompile(`^(.+?)\s*–\s*(.+)$`),
}

// IsAudioFile reports whether name has a supported audio extension.
func IsAudioFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}

// ParseFilename derives artist and title from a file name. When the name
// splits into two parts the longer one is taken as the title.
func ParseFilename(name string) (artist, title string) {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	for _, re := range filenamePatterns {
		m := re.FindStringSubmatch(base)
		if m == nil {
			continue
		}
		a, b := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if len([]rune(b)) > len([]rune(a)) {
			return a, b
		}
		return b, a
	}
	return unknownArtist, base
}

func matchKeywords(sets []keywordSet, text, fallback string) []string {
	text = strings.ToLower(text)
	var out []string
	for _, set := range sets {
		for _, kw := range set.keywords {
			if strings.Contains(text, kw) {
				out = append(out, set.tag)
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{fallback}
	}
	return out
}

// MoodTags scans the file name and title for mood keywords.
func MoodTags(filename, title string) []string {
	return matchKeywords(moodKeywords, filename+" "+title, "neutral")
}

// Genres scans the file name and title for genre keywords.
func Genres(filename, title string) []string {
	return matchKeywords(genreKeywords, filename+" "+title, "unknown")
}
