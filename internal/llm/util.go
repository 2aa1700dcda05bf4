package llm

import "strings"

// CleanJSONBlock recovers the JSON payload from a model response. Responses
// arrive wrapped in markdown fences, prefixed with conversational preamble,
// or followed by trailing chatter; the first balanced object or array wins.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	text = stripCodeFence(text)

	objStart := strings.Index(text, "{")
	arrStart := strings.Index(text, "[")
	switch {
	case objStart < 0 && arrStart < 0:
		return text
	case objStart >= 0 && (arrStart < 0 || objStart < arrStart):
		if payload := extractJSONObject(text[objStart:]); payload != "" {
			return payload
		}
	default:
		if payload := extractJSONArray(text[arrStart:]); payload != "" {
			return payload
		}
	}
	return text
}

// stripCodeFence removes a leading ``` or ```json fence and its closing
// fence, including a bare language identifier on the first line.
func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if idx := strings.Index(text, "\n"); idx >= 0 {
		firstLine := strings.TrimSpace(text[:idx])
		if firstLine == "" || (len(firstLine) < 20 && !strings.ContainsAny(firstLine, " {[")) {
			text = text[idx+1:]
		}
	}
	if idx := strings.LastIndex(text, "```"); idx >= 0 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

// extractJSONObject returns the balanced object at the start of s, or ""
// when s does not begin with one. Braces inside string literals are ignored.
func extractJSONObject(s string) string {
	return extractBalanced(s, '{', '}')
}

// extractJSONArray returns the balanced array at the start of s, or ""
// when s does not begin with one.
func extractJSONArray(s string) string {
	return extractBalanced(s, '[', ']')
}

func extractBalanced(s string, open, close byte) string {
	if len(s) == 0 || s[0] != open {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[:i+1]
			}
		}
	}
	return ""
}
