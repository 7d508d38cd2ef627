package textutil

import "strings"

// fileNameReplacer maps filesystem-unsafe characters to their full-width
// equivalents. Full-width forms keep the punctuation readable in library
// folder names where the ASCII originals would be rejected.
var fileNameReplacer = strings.NewReplacer(
	":", "：",
	"/", "／",
	"\\", "＼",
	"?", "？",
	"*", "＊",
	"<", "＜",
	">", "＞",
	"|", "｜",
	"\"", "＂",
)

// SanitizeFileName replaces filesystem-unsafe characters in a name with
// full-width equivalents and trims surrounding whitespace and dots.
func SanitizeFileName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	return strings.Trim(fileNameReplacer.Replace(name), " .")
}
