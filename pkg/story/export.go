package story

import (
	"strings"
	"time"
	"unicode"
)

const (
	untitledName  = "untitled-story"
	untitledTitle = "Untitled Story"

	exportTimeLayout = "20060102-150405"
)

// ExportName returns the file name of a story export:
//
//	<title>_<language>_<YYYYMMDD-HHMMSS>.txt
//
// with title and language slugged. An empty title becomes "untitled-story".
func ExportName(title, language string, at time.Time) string {
	t := slug(title)
	if t == "" {
		t = untitledName
	}
	l := slug(language)
	if l == "" {
		l = slug(DefaultLanguage)
	}
	return t + "_" + l + "_" + at.Format(exportTimeLayout) + ".txt"
}

// ExportContent returns the text of a story export.
func ExportContent(title, paragraph string) string {
	if strings.TrimSpace(title) == "" {
		title = untitledTitle
	}
	return title + "\n\n" + paragraph
}

// slug lowercases s and joins its runs of letters and digits with '-'.
func slug(s string) string {
	var sb strings.Builder
	dash := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if dash && sb.Len() > 0 {
				sb.WriteByte('-')
			}
			sb.WriteRune(r)
			dash = false
			continue
		}
		dash = true
	}
	return sb.String()
}
