package ingestion

import (
	"crypto/sha256"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Chunker splits document text into overlapping pieces. Splits prefer
// whitespace boundaries so words are not cut mid-way.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a Chunker with the given size and overlap in bytes.
// Non-positive or inconsistent values fall back to 1000/200.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = 1000
	}
	if overlap < 0 || overlap >= size {
		overlap = 200
		if overlap >= size {
			overlap = size / 5
		}
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split returns the chunk texts for a document, in order. Empty input yields
// no chunks. Consecutive chunks overlap by roughly the configured overlap.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			if piece := strings.TrimSpace(text[start:]); piece != "" {
				chunks = append(chunks, piece)
			}
			break
		}

		// Back up to the last whitespace inside the window so the cut does
		// not land in the middle of a word. Text without whitespace (CJK
		// prose) is cut on a rune boundary instead.
		if cut := strings.LastIndexAny(text[start:end], " \t\n\r"); cut > 0 {
			end = start + cut
		} else {
			end = runeStart(text, end)
			if end <= start {
				end = start + c.size
			}
		}
		if piece := strings.TrimSpace(text[start:end]); piece != "" {
			chunks = append(chunks, piece)
		}

		next := runeStart(text, end-c.overlap)
		if next <= start {
			next = end
		}
		start = next
	}
	return chunks
}

// runeStart backs i up to the nearest rune boundary at or before it.
func runeStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}

// DocumentID derives a stable identifier from the filename and content, so
// re-ingesting the same document produces the same id.
func DocumentID(filename, content string) string {
	sum := sha256.Sum256([]byte(filename + "\x00" + content))
	return fmt.Sprintf("%x", sum[:8])
}

// ChunkID derives a stable per-chunk identifier.
func ChunkID(documentID string, index int) string {
	return fmt.Sprintf("%s-%d", documentID, index)
}
