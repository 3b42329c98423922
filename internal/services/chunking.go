package services

import "strings"

// ChunkText splits raw text into chunks of at most capacity words each.
// Chunks are cut on word boundaries but keep the original whitespace, so
// concatenating the returned chunks reconstructs the input exactly. Chunks
// never overlap. capacity must be positive; non-positive values yield the
// whole text as a single chunk.
func ChunkText(text string, capacity int) []string {
	if text == "" {
		return nil
	}
	if capacity <= 0 {
		return []string{text}
	}

	var chunks []string
	var sb strings.Builder
	words := 0
	inWord := false

	flush := func() {
		if sb.Len() > 0 {
			chunks = append(chunks, sb.String())
			sb.Reset()
			words = 0
		}
	}

	for _, r := range text {
		isSpace := r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '\f' || r == '\v'
		if !isSpace && !inWord {
			// a new word is starting
			if words == capacity {
				flush()
			}
			words++
		}
		inWord = !isSpace
		sb.WriteRune(r)
	}
	flush()

	return chunks
}
