package naming

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"organ/internal/media"
	"organ/internal/textutil"
)

// Context is the flat substitution vocabulary available to templates.
type Context map[string]any

var (
	zeroPadRE    = regexp.MustCompile(`\{(\w+):0(\d+)d\}`)
	unresolvedRE = regexp.MustCompile(`\{\w+(?::[^{}]*)?\}`)
	whitespaceRE = regexp.MustCompile(`\s+`)
)

// BuildContext flattens a recognition result into template variables.
// Missing values become empty strings except year ("Unknown") and
// season/episode (1), matching the rendered-layout conventions.
func BuildContext(result *media.RecognitionResult, versionTag string) Context {
	info := result.Info
	file := result.File

	ext := file.Ext
	if ext == "" {
		idx := strings.LastIndex(file.Name, ".")
		if idx >= 0 {
			ext = file.Name[idx:]
		}
	}
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}

	version := ""
	if versionTag != "" {
		version = " " + versionTag
	}

	title := info.Title
	if title == "" {
		title = "Unknown"
	}
	originalTitle := info.OriginalTitle
	if originalTitle == "" {
		originalTitle = title
	}

	year := "Unknown"
	decade := "Unknown"
	if info.Year > 0 {
		year = strconv.Itoa(info.Year)
		decade = fmt.Sprintf("%ds", (info.Year/10)*10)
	}

	season := info.Season
	if season == 0 {
		season = 1
	}
	episode := info.Episode
	if episode == 0 {
		episode = 1
	}

	return Context{
		"title":          title,
		"original_title": originalTitle,
		"year":           year,
		"tmdb_id":        info.TMDBID,
		"quality":        info.Quality,
		"source":         info.Source,
		"codec":          info.Codec,
		"audio":          info.Audio,
		"release_group":  info.ReleaseGroup,
		"version":        version,
		"ext":            ext,
		"season":         season,
		"episode":        episode,
		"end_episode":    info.EndEpisode,
		"episode_title":  info.EpisodeTitle,
		"first_letter":   firstLetter(info.Title),
		"decade":         decade,
	}
}

// Render substitutes {key} and zero-padded {key:02d} variables. Variables
// absent from the context render as empty strings.
func Render(template string, ctx Context) string {
	out := zeroPadRE.ReplaceAllStringFunc(template, func(token string) string {
		parts := zeroPadRE.FindStringSubmatch(token)
		value, ok := ctx[parts[1]]
		if !ok {
			return token
		}
		width, _ := strconv.Atoi(parts[2])
		if n, ok := toInt(value); ok {
			return fmt.Sprintf("%0*d", width, n)
		}
		return stringify(value)
	})
	for key, value := range ctx {
		out = strings.ReplaceAll(out, "{"+key+"}", stringify(value))
	}
	return unresolvedRE.ReplaceAllString(out, "")
}

// CleanName makes a rendered name safe for every supported filesystem.
func CleanName(name string) string {
	name = whitespaceRE.ReplaceAllString(name, " ")
	return textutil.SanitizeFileName(name)
}

func firstLetter(title string) string {
	for _, r := range title {
		if r < 128 && unicode.IsLetter(r) {
			return strings.ToUpper(string(r))
		}
		break
	}
	return "#"
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return fmt.Sprint(v)
	}
}

func toInt(value any) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	default:
		return 0, false
	}
}
