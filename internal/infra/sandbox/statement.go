package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

var readStatement = regexp.MustCompile(`(?i)^(SELECT|WITH|VALUES)\b`)

// singleStatement returns query reduced to exactly one read statement,
// without trailing semicolons. Semicolons inside string literals, quoted
// identifiers and comments do not split statements.
func singleStatement(query string) (string, error) {
	var (
		stmt     string
		first    = -1 // offset of the first token outside comments
		end      = -1 // offset of the first top-level semicolon
		inQuote  byte
		n        = len(query)
		trailing bool
	)

	for i := 0; i < n; i++ {
		c := query[i]
		if inQuote != 0 {
			if c == inQuote {
				// doubled quote is an escaped quote
				if i+1 < n && query[i+1] == inQuote && inQuote != ']' {
					i++
					continue
				}
				inQuote = 0
			}
			continue
		}

		switch {
		case c == '-' && i+1 < n && query[i+1] == '-':
			nl := strings.IndexByte(query[i:], '\n')
			if nl < 0 {
				i = n
			} else {
				i += nl
			}
			continue
		case c == '/' && i+1 < n && query[i+1] == '*':
			closing := strings.Index(query[i+2:], "*/")
			if closing < 0 {
				i = n
			} else {
				i += closing + 3
			}
			continue
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			continue
		}

		if end >= 0 {
			if c == ';' {
				continue
			}
			trailing = true
			break
		}
		if first < 0 && c != ';' {
			first = i
		}

		switch c {
		case '\'', '"', '`':
			inQuote = c
		case '[':
			inQuote = ']'
		case ';':
			end = i
		}
	}

	if inQuote != 0 {
		return "", fmt.Errorf("unterminated quoted text")
	}
	if trailing {
		return "", fmt.Errorf("only one statement may be executed")
	}
	if first < 0 {
		return "", fmt.Errorf("empty query")
	}
	if end < 0 {
		end = n
	}
	stmt = strings.TrimSpace(query[first:end])
	if !readStatement.MatchString(stmt) {
		return "", fmt.Errorf("only SELECT, WITH or VALUES statements may be executed")
	}
	return stmt, nil
}
