package query

import "strings"

// topLevel marks every byte of s that sits outside quotes, backticks and
// parentheses. Quote and parenthesis bytes themselves are never top-level.
func topLevel(s string) []bool {
	mask := make([]bool, len(s))
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == '\\' && quote != '`' && i+1 < len(s) {
				i++
				continue
			}
			if c == quote {
				quote = 0
			}
			continue
		}
		switch c {
		case '\'', '"', '`':
			quote = c
			continue
		case '(':
			depth++
			continue
		case ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		mask[i] = depth == 0
	}
	return mask
}

// quotedMask marks every byte of s inside a quoted string or backtick
// identifier. Closing quotes are marked, opening ones only for strings, so a
// backticked name can still start a match.
func quotedMask(s string) []bool {
	mask := make([]bool, len(s))
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote == 0 {
			if c == '\'' || c == '"' || c == '`' {
				quote = c
				mask[i] = c != '`'
			}
			continue
		}
		mask[i] = true
		if c == '\\' && quote != '`' && i+1 < len(s) {
			i++
			mask[i] = true
			continue
		}
		if c == quote {
			quote = 0
		}
	}
	return mask
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '@' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

// keywordAt reports whether the whole word kw starts at s[i] on the top level.
func keywordAt(s string, mask []bool, i int, kw string) bool {
	end := i + len(kw)
	if end > len(s) || !strings.EqualFold(s[i:end], kw) {
		return false
	}
	for j := i; j < end; j++ {
		if !mask[j] {
			return false
		}
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	if end < len(s) && isIdentByte(s[end]) {
		return false
	}
	return true
}

// indexKeyword returns the offset of the first top-level occurrence of the
// keyword kw in s, or -1.
func indexKeyword(s, kw string) int {
	mask := topLevel(s)
	for i := 0; i+len(kw) <= len(s); i++ {
		if keywordAt(s, mask, i, kw) {
			return i
		}
	}
	return -1
}

// lastIndexKeyword is indexKeyword searching from the end.
func lastIndexKeyword(s, kw string) int {
	mask := topLevel(s)
	for i := len(s) - len(kw); i >= 0; i-- {
		if keywordAt(s, mask, i, kw) {
			return i
		}
	}
	return -1
}

// splitTopLevel splits s on sep occurrences outside quotes and parentheses.
// Parts are trimmed and empty parts dropped.
func splitTopLevel(s string, sep byte) []string {
	mask := topLevel(s)
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == sep && mask[i] {
			if p := strings.TrimSpace(s[start:i]); p != "" {
				parts = append(parts, p)
			}
			start = i + 1
		}
	}
	if p := strings.TrimSpace(s[start:]); p != "" {
		parts = append(parts, p)
	}
	return parts
}

func lower(s string) string {
	return strings.ToLower(s)
}

func stripBackticks(s string) string {
	return strings.ReplaceAll(s, "`", "")
}

func unquoteIdentifier(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '`' || first == '\'' || first == '"') && first == last {
			return s[1 : len(s)-1]
		}
	}
	return stripBackticks(s)
}

// IndexKeyword returns the offset of the first occurrence of the keyword kw
// in s that is outside quotes and parentheses, or -1.
func IndexKeyword(s, kw string) int {
	return indexKeyword(s, kw)
}
