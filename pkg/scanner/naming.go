package scanner

import (
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

var bookExtensions = map[string]bool{
	".epub": true,
	".mobi": true,
	".pdf":  true,
	".txt":  true,
	".docx": true,
	".doc":  true,
	".rtf":  true,
	".html": true,
}

var archivePattern = regexp.MustCompile(`(?i)\.(zip|cbz|rar|cbr)$`)

// bracketedPattern matches release-group tags and similar noise wrapped in
// brackets, parens, or angle brackets.
var bracketedPattern = regexp.MustCompile(`[\[\(<].*?[\]\)>]`)

var (
	volumePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)v(?:ol(?:ume)?)?\.?\s*(\d+)`),
		regexp.MustCompile(`(?i)\(v(\d+)\)`),
	}
	chapterPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)ch(?:apter)?\.?\s*(\d+\.?\d*)`),
		regexp.MustCompile(`(?i)c(\d+\.?\d*)`),
	}
	fallbackStrip  = regexp.MustCompile(`[\[\(].*?[\]\)]`)
	fallbackNumber = regexp.MustCompile(`\d+`)
)

func IsValidBook(name string) bool {
	return bookExtensions[strings.ToLower(filepath.Ext(name))]
}

func isArchive(name string) bool {
	return archivePattern.MatchString(name)
}

// CleanName turns a filename into a search query by stripping bracketed
// tags and the extension.
func CleanName(name string) string {
	name = bracketedPattern.ReplaceAllString(name, "")
	name = strings.TrimSuffix(name, filepath.Ext(name))
	return strings.TrimSpace(name)
}

// ParseVolumeChapter extracts volume and chapter numbers from a manga
// filename. When no explicit marker matches, the first bare integer left
// after stripping bracketed tags is treated as a chapter number.
func ParseVolumeChapter(name string) (volume *int, chapter *float64) {
	base := filepath.Base(name)

	for _, p := range volumePatterns {
		if m := p.FindStringSubmatch(base); m != nil {
			if v, err := strconv.Atoi(m[1]); err == nil {
				volume = &v
				break
			}
		}
	}
	for _, p := range chapterPatterns {
		if m := p.FindStringSubmatch(base); m != nil {
			if c, err := strconv.ParseFloat(m[1], 64); err == nil {
				chapter = &c
				break
			}
		}
	}

	if volume == nil && chapter == nil {
		stripped := fallbackStrip.ReplaceAllString(base, "")
		if m := fallbackNumber.FindString(stripped); m != "" {
			if n, err := strconv.Atoi(m); err == nil {
				c := float64(n)
				chapter = &c
			}
		}
	}
	return volume, chapter
}
