package whatsapp

import "strings"

// MaxTextRunes is the chunk size for outbound text. The API limit is 4096;
// the margin leaves room for multi-byte counting differences.
const MaxTextRunes = 3900

// SplitText breaks text into chunks of at most limit runes. A chunk ends at
// the last newline in the window, else the last space, else exactly at limit.
// The separator itself is dropped and empty chunks are skipped. Empty text
// yields no chunks.
func SplitText(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxTextRunes
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > limit {
		window := runes[:limit]
		cut := lastIndex(window, '\n')
		if cut < 0 {
			cut = lastIndex(window, ' ')
		}
		if cut < 0 {
			chunks = append(chunks, string(window))
			runes = runes[limit:]
			continue
		}
		// A separator at the start of the window yields no chunk.
		if cut > 0 {
			chunks = append(chunks, string(runes[:cut]))
		}
		runes = runes[cut+1:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}

// normalizeRecipient strips the formatting people paste into allow-lists.
func normalizeRecipient(to string) string {
	return strings.TrimPrefix(strings.TrimSpace(to), "+")
}
