package classify

import (
	"encoding/json"
	"errors"
	"strings"
)

var errNoObject = errors.New("no balanced JSON object in text")

// ExtractJSONObject returns the first balanced {...} span in text that parses
// as a JSON object. Model replies often wrap their answer in prose; requiring
// the whole body to be pure JSON would reject otherwise usable output.
// Braces inside string literals (and escaped quotes) are not counted.
func ExtractJSONObject(text string, out any) error {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		if end := balancedEnd(text, start); end > start {
			candidate := text[start : end+1]
			if json.Unmarshal([]byte(candidate), out) == nil {
				return nil
			}
		}
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start = start + 1 + next
	}
	return errNoObject
}

// balancedEnd returns the index of the brace closing the object opened at
// start, or -1 if the text ends first.
func balancedEnd(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		ch := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
