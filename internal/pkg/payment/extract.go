package payment

import "regexp"

// Transfer descriptions come back mangled: banks uppercase them, strip
// diacritics and glue their own reference numbers around the code. A run of
// exactly CodeLength digits bounded by non-digits is the extraction rule
// the codes were sized for.
var codePattern = regexp.MustCompile(`(?:^|[^0-9])([0-9]{10})(?:[^0-9]|$)`)

// ExtractCode pulls the first 10-digit payment code out of free-text
// transfer content. Returns ErrCodeMissing when no candidate is present.
func ExtractCode(content string) (string, error) {
	m := codePattern.FindStringSubmatch(content)
	if m == nil {
		return "", ErrCodeMissing
	}
	return m[1], nil
}
