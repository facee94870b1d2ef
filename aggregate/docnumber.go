package aggregate

import (
	"regexp"
	"strings"
)

// docNumberPattern matches issuing numbers such as 沪经信规〔2024〕3号.
var docNumberPattern = regexp.MustCompile(`\p{Han}{1,12}[〔\[［(（]\d{4}[〕\]］)）]\s*第?\d+号`)

// DocNumber returns the first issuing number found in text, or "".
func DocNumber(text string) string {
	return strings.Join(strings.Fields(docNumberPattern.FindString(text)), "")
}
