package mentions

import "regexp"

// FileMention is one @-reference found in a prompt. Start/End index the raw
// token (including the @ and any quotes) so callers can splice replacements.
type FileMention struct {
	Raw   string
	Query string
	Start int
	End   int
}

// Quoted form first so @"a b.txt" is not split at the space.
var mentionRe = regexp.MustCompile(`@(?:"([^"]+)"|([^\s@]+))`)

// Parse extracts file mentions from text. An @ immediately preceded by a
// word character is part of an email address, not a mention; a token touching
// another @ on either side is skipped too.
func Parse(text string) []FileMention {
	matches := mentionRe.FindAllStringSubmatchIndex(text, -1)
	if matches == nil {
		return nil
	}

	mentions := make([]FileMention, 0, len(matches))
	for _, m := range matches {
		start, end := m[0], m[1]
		if start > 0 && (isWordByte(text[start-1]) || text[start-1] == '@') {
			continue
		}
		if end < len(text) && text[end] == '@' {
			continue
		}

		var query string
		if m[2] >= 0 {
			query = text[m[2]:m[3]]
		} else {
			query = text[m[4]:m[5]]
		}
		if query == "" {
			continue
		}

		mentions = append(mentions, FileMention{
			Raw:   text[start:end],
			Query: query,
			Start: start,
			End:   end,
		})
	}
	if len(mentions) == 0 {
		return nil
	}
	return mentions
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' ||
		b >= 'A' && b <= 'Z' ||
		b >= '0' && b <= '9' ||
		b == '_' || b == '.' || b == '-'
}
