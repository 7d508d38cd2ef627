// Package pattern extracts season/episode numbers, quality markers, and
// other metadata from media filenames using regular expressions. It is the
// fast, deterministic half of recognition; the LLM extractor supplies titles
// the patterns cannot see.
package pattern

import (
	"regexp"
	"strconv"
	"strings"

	"organ/internal/media"
)

// cjkNumerals maps CJK numeral runes to their values. Tens and hundreds are
// positional multipliers handled by parseCJKNumber.
var cjkNumerals = map[rune]int{
	'零': 0, '〇': 0, '一': 1, '壹': 1, '二': 2, '贰': 2, '两': 2,
	'三': 3, '叁': 3, '四': 4, '肆': 4, '五': 5, '伍': 5,
	'六': 6, '陆': 6, '七': 7, '柒': 7, '八': 8, '捌': 8,
	'九': 9, '玖': 9, '十': 10, '拾': 10,
	'百': 100, '佰': 100,
}

const cjkNumeralClass = `一二三四五六七八九十壹贰叁肆伍陆柒捌玖拾`

var seasonPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[Ss](?:eason\s*)?(\d+)`),
	regexp.MustCompile(`第([` + cjkNumeralClass + `\d]+)季`),
	regexp.MustCompile(`([` + cjkNumeralClass + `]+)季`),
}

// Ordered most-specific first. Only the first four participate in combined
// season+episode matching; E01 and standalone numbers are fallbacks.
var episodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[Ss](\d+)[Ee][Pp]?(\d+)`),
	regexp.MustCompile(`(?i)[Ss](\d+)\.?[Ee](\d+)`),
	regexp.MustCompile(`(\d+)[xX](\d+)`),
	regexp.MustCompile(`第([` + cjkNumeralClass + `\d]+)集`),
}

var multiEpisodePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[Ss](\d+)[Ee](\d+)-[Ee]?(\d+)`),
	regexp.MustCompile(`(?i)[Ee][Pp]?(\d+)-[Ee]?[Pp]?(\d+)`),
}

var episodeOnlyPattern = regexp.MustCompile(`[Ee][Pp]?(\d+)`)

var standaloneNumberPattern = regexp.MustCompile(`(?:^|[^\d])(\d{1,3})(?:[^\d]|$)`)

var yearPattern = regexp.MustCompile(`\b((?:19|20)\d{2})\b`)

var releaseGroupPatterns = []*regexp.Regexp{
	regexp.MustCompile(`-([A-Za-z0-9]+)(?:\.\w{2,4})?$`),
	regexp.MustCompile(`\[([A-Za-z0-9]+)\](?:\.\w{2,4})?$`),
}

type tagged struct {
	re    *regexp.Regexp
	value string
}

var qualityPatterns = []tagged{
	{regexp.MustCompile(`(?i)\b(2160[pi]?|4[Kk]|UHD)\b`), "2160p"},
	{regexp.MustCompile(`(?i)\b(1080[pi]?)\b`), "1080p"},
	{regexp.MustCompile(`(?i)\b(720[pi]?)\b`), "720p"},
	{regexp.MustCompile(`(?i)\b(480[pi]?)\b`), "480p"},
	{regexp.MustCompile(`(?i)\b(576[pi]?)\b`), "576p"},
}

var sourcePatterns = []tagged{
	{regexp.MustCompile(`(?i)\b(WEB-DL|WEBDL)\b`), "WEB-DL"},
	{regexp.MustCompile(`(?i)\b(WEBRip)\b`), "WEBRip"},
	{regexp.MustCompile(`(?i)\b(BluRay|Blu-Ray|BDRip|BRRip)\b`), "BluRay"},
	{regexp.MustCompile(`(?i)\b(HDTV)\b`), "HDTV"},
	{regexp.MustCompile(`(?i)\b(DVDRip|DVD)\b`), "DVDRip"},
	{regexp.MustCompile(`(?i)\b(Remux)\b`), "Remux"},
}

var codecPatterns = []tagged{
	{regexp.MustCompile(`(?i)\b(HEVC|[Hh]\.?265|[Xx]265)\b`), "HEVC"},
	{regexp.MustCompile(`(?i)\b(AVC|[Hh]\.?264|[Xx]264)\b`), "AVC"},
	{regexp.MustCompile(`(?i)\b(VP9)\b`), "VP9"},
	{regexp.MustCompile(`(?i)\b(AV1)\b`), "AV1"},
}

var audioPatterns = []tagged{
	{regexp.MustCompile(`(?i)\b(Atmos)\b`), "Atmos"},
	{regexp.MustCompile(`(?i)\b(TrueHD)\b`), "TrueHD"},
	{regexp.MustCompile(`(?i)\b(DTS-HD(?:\s*MA)?|DTSHD(?:MA)?)\b`), "DTS-HD MA"},
	{regexp.MustCompile(`(?i)\b(DTS)\b`), "DTS"},
	{regexp.MustCompile(`(?i)\b(DD[P+]?5\.1|DDP?5\.1)\b`), "DD+5.1"},
	{regexp.MustCompile(`(?i)\b(AAC)\b`), "AAC"},
	{regexp.MustCompile(`(?i)\b(FLAC)\b`), "FLAC"},
}

// Metadata stripped before season/episode matching so codec and resolution
// digits are not mistaken for episode numbers.
var removePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(?:1080|720|576|480|360|240|2160|1440|4320)[pi]?\b`),
	regexp.MustCompile(`(?i)\b(?:[HhXx]\.?26[45]|HEVC|AVC)\b`),
	regexp.MustCompile(`(?i)\b(?:WEB-DL|WEBRip|BluRay|HDTV|DVDRip|Remux)\b`),
	regexp.MustCompile(`(?i)\b(?:AAC|AC3|DTS|FLAC|TrueHD|Atmos)\b`),
	regexp.MustCompile(`(?i)\b\d+\.\d+\s*(?:GB|MB)\b`),
}

var searchCleanPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\[.*?\]`),
	regexp.MustCompile(`\(.*?\)`),
	regexp.MustCompile(`\{.*?\}`),
	regexp.MustCompile(`(?i)\b(?:1080|720|480|2160|4K|UHD)[pi]?\b`),
	regexp.MustCompile(`(?i)\b(?:BluRay|WEB-DL|WEBRip|HDTV|DVDRip|Remux)\b`),
	regexp.MustCompile(`(?i)\b(?:HEVC|[HhXx]\.?26[45]|AVC|VP9)\b`),
	regexp.MustCompile(`(?i)\b(?:AAC|AC3|DTS|FLAC|TrueHD|Atmos)[\d.]*\b`),
	regexp.MustCompile(`(?i)\b(?:DD[P+]?|EAC3)[\d.]*\b`),
	regexp.MustCompile(`(?i)[Ss]\d+[Ee]?\d+.*$`),
	regexp.MustCompile(`-[A-Za-z0-9]+$`),
}

var separatorPattern = regexp.MustCompile(`[._-]+`)

var whitespacePattern = regexp.MustCompile(`\s+`)

var cjkNumeralPattern = regexp.MustCompile(`[` + cjkNumeralClass + `]`)

// Extract pulls all recognizable metadata from a filename.
func Extract(filename string) media.ExtractedHints {
	hints := media.ExtractedHints{Filename: filename}

	for _, p := range qualityPatterns {
		if p.re.MatchString(filename) {
			hints.Quality = p.value
			break
		}
	}
	for _, p := range sourcePatterns {
		if p.re.MatchString(filename) {
			hints.Source = p.value
			break
		}
	}
	for _, p := range codecPatterns {
		if p.re.MatchString(filename) {
			hints.Codec = p.value
			break
		}
	}
	for _, p := range audioPatterns {
		if p.re.MatchString(filename) {
			hints.Audio = p.value
			break
		}
	}

	if m := yearPattern.FindStringSubmatch(filename); m != nil {
		hints.Year, _ = strconv.Atoi(m[1])
	}

	for _, re := range releaseGroupPatterns {
		if m := re.FindStringSubmatch(filename); m != nil {
			hints.ReleaseGroup = m[1]
			break
		}
	}

	season, episode, endEpisode := ExtractEpisodeInfo(filename)
	hints.Season = season
	hints.Episode = episode
	hints.EndEpisode = endEpisode

	return hints
}

// ExtractSeasonNumber extracts a season number from text, handling both
// S01/Season 1 forms and CJK forms such as 第三季. Returns fallback when no
// pattern matches.
func ExtractSeasonNumber(text string, fallback int) int {
	normalized := normalize(text)
	for _, re := range seasonPatterns {
		m := re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		matched := m[1]
		if cjkNumeralPattern.MatchString(matched) {
			return parseCJKNumber(matched)
		}
		if n, err := strconv.Atoi(matched); err == nil {
			return n
		}
	}
	return fallback
}

// ExtractEpisodeInfo extracts season, episode, and end-episode numbers from a
// filename. Zero values mean the component was not found. Multi-episode
// ranges are detected first so S01E01-E03 does not match as S01E01.
func ExtractEpisodeInfo(filename string) (season, episode, endEpisode int) {
	normalized := normalize(filename)

	for _, re := range multiEpisodePatterns {
		m := re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		if len(m) == 4 {
			return atoi(m[1]), atoi(m[2]), atoi(m[3])
		}
		// E01-E02 form carries no season; assume the first.
		return 1, atoi(m[1]), atoi(m[2])
	}

	for _, re := range episodePatterns {
		m := re.FindStringSubmatch(normalized)
		if m == nil {
			continue
		}
		if len(m) == 3 {
			return atoi(m[1]), atoi(m[2]), 0
		}
		matched := m[1]
		if cjkNumeralPattern.MatchString(matched) {
			return 0, parseCJKNumber(matched), 0
		}
		return 0, atoi(matched), 0
	}

	if m := episodeOnlyPattern.FindStringSubmatch(normalized); m != nil {
		return 0, atoi(m[1]), 0
	}

	// Standalone number fallback, excluding year-like values.
	nameNoExt := normalized
	if idx := strings.LastIndex(nameNoExt, "."); idx >= 0 {
		nameNoExt = nameNoExt[:idx]
	}
	if m := standaloneNumberPattern.FindStringSubmatch(nameNoExt); m != nil {
		if n := atoi(m[1]); n >= 1 && n <= 300 {
			return 0, n, 0
		}
	}

	return 0, 0, 0
}

// CleanForSearch strips quality, codec, and release metadata from a filename
// so the remainder can serve as a catalog search query.
func CleanForSearch(filename string) string {
	name := filename
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		ext := name[idx+1:]
		if len(ext) <= 4 && isAlpha(ext) {
			name = name[:idx]
		}
	}

	for _, re := range searchCleanPatterns {
		name = re.ReplaceAllString(name, " ")
	}

	name = separatorPattern.ReplaceAllString(name, " ")
	name = whitespacePattern.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}

func normalize(text string) string {
	normalized := text
	for _, re := range removePatterns {
		normalized = re.ReplaceAllString(normalized, " ")
	}
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(normalized, " "))
}

// parseCJKNumber parses a CJK numeral string positionally, so 三十二 is 32
// and 十五 is 15. Plain digit strings pass through unchanged.
func parseCJKNumber(text string) int {
	if text == "" {
		return 0
	}
	if n, err := strconv.Atoi(text); err == nil {
		return n
	}

	result := 0
	current := 0
	for _, r := range text {
		val, ok := cjkNumerals[r]
		if !ok {
			continue
		}
		switch val {
		case 10:
			if current == 0 {
				current = 1
			}
			result += current * 10
			current = 0
		case 100:
			if current == 0 {
				current = 1
			}
			result += current * 100
			current = 0
		default:
			current = val
		}
	}
	return result + current
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return true
}
