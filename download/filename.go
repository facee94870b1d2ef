package download

import (
	"mime"
	"net/url"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// MaxFilenameLength caps sanitized names, in runes.
const MaxFilenameLength = 200

const defaultName = "attachment"

var (
	illegalChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f\x7f]`)
	whitespace   = regexp.MustCompile(`\s+`)
	// Loose fallback for headers mime.ParseMediaType rejects, typically raw
	// GBK bytes inside filename="...".
	dispositionName = regexp.MustCompile(`(?i)filename\*?\s*=\s*(?:[\w-]+'[\w-]*')?("[^"]*"|[^;]*)`)
)

// Sanitize makes name safe as a single path element. Applying it twice
// gives the same result as applying it once.
func Sanitize(name string) string {
	// Whitespace runs, tabs and newlines included, become one underscore
	// before control characters are stripped.
	name = strings.Trim(name, ". \t\r\n\f\v")
	name = whitespace.ReplaceAllString(name, "_")
	name = illegalChars.ReplaceAllString(name, "")
	name = strings.Trim(name, ". ")

	if utf8.RuneCountInString(name) > MaxFilenameLength {
		ext := filepath.Ext(name)
		extLen := utf8.RuneCountInString(ext)
		if extLen >= MaxFilenameLength/2 {
			ext, extLen = "", 0
		}
		stem := []rune(strings.TrimSuffix(name, ext))
		name = string(stem[:MaxFilenameLength-extLen]) + ext
		name = strings.Trim(name, ". ")
	}
	if name == "" {
		return defaultName
	}
	return name
}

// FilenameFromDisposition extracts the file name a Content-Disposition
// header suggests. filename* wins over filename. Percent-encoding is
// undone and GBK bytes are decoded.
func FilenameFromDisposition(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return decodeName(name)
		}
	}

	matches := dispositionName.FindAllStringSubmatch(header, -1)
	var best string
	for _, m := range matches {
		v := strings.Trim(strings.TrimSpace(m[1]), `"'`)
		if v == "" {
			continue
		}
		best = v
		if strings.Contains(strings.ToLower(m[0]), "filename*") {
			break
		}
	}
	if best == "" {
		return ""
	}
	return decodeName(best)
}

func decodeName(v string) string {
	if unescaped, err := url.PathUnescape(v); err == nil {
		v = unescaped
	}
	if !utf8.ValidString(v) {
		if decoded, err := simplifiedchinese.GBK.NewDecoder().String(v); err == nil {
			v = decoded
		}
	}
	return strings.TrimSpace(v)
}

// urlBasename returns the decoded last path element of rawURL when it looks
// like a file name.
func urlBasename(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	base := path.Base(u.Path)
	if base == "." || base == "/" || !strings.Contains(base, ".") {
		return ""
	}
	return base
}
