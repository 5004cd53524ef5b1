package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestChunker_ShortTextSingleChunk(t *testing.T) {
	c := NewChunker(1000, 200)
	chunks := c.Split("a short document")
	if len(chunks) != 1 || chunks[0] != "a short document" {
		t.Fatalf("chunks = %#v", chunks)
	}
}

func TestChunker_EmptyText(t *testing.T) {
	c := NewChunker(1000, 200)
	if got := c.Split("   \n  "); got != nil {
		t.Fatalf("whitespace-only input produced %d chunks", len(got))
	}
}

func TestChunker_RespectsSizeAndWordBoundaries(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("alpha bravo charlie delta echo ", 40)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	words := map[string]bool{"alpha": true, "bravo": true, "charlie": true, "delta": true, "echo": true}
	for i, chunk := range chunks {
		if len(chunk) > 100 {
			t.Errorf("chunk %d exceeds size: %d bytes", i, len(chunk))
		}
		for _, w := range strings.Fields(chunk) {
			if !words[w] {
				t.Errorf("chunk %d split a word: %q", i, w)
			}
		}
	}
}

func TestChunker_ConsecutiveChunksOverlap(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("one two three four five six seven eight nine ten ", 20)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1]
		if len(tail) > 20 {
			tail = tail[len(tail)-20:]
		}
		// at least one word from the previous chunk's tail should reappear
		overlap := false
		for _, w := range strings.Fields(tail) {
			if strings.Contains(chunks[i], w) {
				overlap = true
				break
			}
		}
		if !overlap {
			t.Errorf("chunks %d and %d share no overlap", i-1, i)
		}
	}
}

func TestChunker_MultibyteTextCutOnRuneBoundaries(t *testing.T) {
	c := NewChunker(1000, 200)
	// continuous CJK prose has no ASCII whitespace to cut on
	text := strings.Repeat("智能问答系统基于检索增强生成技术构建。", 60)

	chunks := c.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8: %.24q", i, chunk)
		}
		if len(chunk) > 1000 {
			t.Errorf("chunk %d exceeds size: %d bytes", i, len(chunk))
		}
	}
}

func TestChunker_MixedASCIIAndMultibyte(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("系统配置 configuration 检索参数 retrieval ", 30)

	for i, chunk := range c.Split(text) {
		if !utf8.ValidString(chunk) {
			t.Errorf("chunk %d is not valid UTF-8: %q", i, chunk)
		}
	}
}

func TestChunker_Deterministic(t *testing.T) {
	c := NewChunker(100, 20)
	text := strings.Repeat("repeatable input text here ", 30)
	a := c.Split(text)
	b := c.Split(text)
	if len(a) != len(b) {
		t.Fatalf("lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("chunk %d differs", i)
		}
	}
}

func TestDocumentID_StableAndDistinct(t *testing.T) {
	a := DocumentID("a.txt", "content")
	if a != DocumentID("a.txt", "content") {
		t.Error("same input must give the same id")
	}
	if a == DocumentID("b.txt", "content") {
		t.Error("different filenames must give different ids")
	}
	if a == DocumentID("a.txt", "other content") {
		t.Error("different content must give different ids")
	}
}

func TestChunkID_IncludesIndex(t *testing.T) {
	if ChunkID("doc", 0) == ChunkID("doc", 1) {
		t.Error("chunk ids must differ per index")
	}
}
