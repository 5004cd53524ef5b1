// Package memory maintains bounded conversational history. Windows are
// partitioned per session id and created lazily on first use; each window is
// serialised by its own mutex so concurrent queries for the same session
// cannot interleave or duplicate turns.
package memory

import (
	"fmt"
	"strings"
	"sync"
	"unicode/utf8"
)

// Turn is one (role, text) pair in a conversation.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Stats describes a window for diagnostics.
type Stats struct {
	TotalTurns     int    `json:"total_turns"`
	WindowSize     int    `json:"window_size"`
	RecentPreviews []Turn `json:"recent_turns"`
}

// Window holds the most recent turns of one session, capped at 2x the
// configured window size (a window of W exchanges keeps 2W turns). Oldest
// turns are evicted first.
type Window struct {
	mu            sync.Mutex
	turns         []Turn
	size          int // exchanges
	previewLength int
}

// NewWindow creates a Window keeping `size` exchanges (2*size turns).
func NewWindow(size, previewLength int) *Window {
	if size <= 0 {
		size = 5
	}
	if previewLength <= 0 {
		previewLength = 100
	}
	return &Window{
		size:          size,
		previewLength: previewLength,
	}
}

// Append adds one turn and evicts from the front until the 2W bound holds.
func (w *Window) Append(role, content string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appendLocked(role, content)
}

// AppendExchange adds a user turn and the assistant's reply atomically:
// either both turns land in the window or neither does. This is the only
// append path the agent uses, so a cancelled query can never leave a
// half-recorded exchange behind.
func (w *Window) AppendExchange(question, answer string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.appendLocked("user", question)
	w.appendLocked("assistant", answer)
}

func (w *Window) appendLocked(role, content string) {
	w.turns = append(w.turns, Turn{Role: role, Content: content})
	for len(w.turns) > 2*w.size {
		w.turns = w.turns[1:]
	}
}

// Render returns a transcript of the most recent maxTurns turns, one line
// per turn with a role label, or a sentinel when the window is empty.
func (w *Window) Render(maxTurns int) string {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.turns) == 0 {
		return "No previous conversation."
	}
	if maxTurns <= 0 {
		maxTurns = 6
	}

	start := len(w.turns) - maxTurns
	if start < 0 {
		start = 0
	}

	lines := make([]string, 0, len(w.turns)-start)
	for _, turn := range w.turns[start:] {
		label := "User"
		if turn.Role == "assistant" {
			label = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", label, turn.Content))
	}
	return strings.Join(lines, "\n")
}

// Clear empties the window. Irreversible.
func (w *Window) Clear() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.turns = nil
}

// Len returns the current number of turns.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.turns)
}

// Turns returns a copy of the current turns, oldest first.
func (w *Window) Turns() []Turn {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Turn, len(w.turns))
	copy(out, w.turns)
	return out
}

// Stats reports the turn count, the configured window size, and previews of
// the most recent turns truncated to the configured preview length.
func (w *Window) Stats() Stats {
	w.mu.Lock()
	defer w.mu.Unlock()

	const recentCount = 4
	start := len(w.turns) - recentCount
	if start < 0 {
		start = 0
	}

	previews := make([]Turn, 0, len(w.turns)-start)
	for _, turn := range w.turns[start:] {
		content := turn.Content
		if len(content) > w.previewLength {
			cut := w.previewLength
			// keep the cut on a rune boundary
			for cut > 0 && !utf8.RuneStart(content[cut]) {
				cut--
			}
			content = content[:cut] + "..."
		}
		previews = append(previews, Turn{Role: turn.Role, Content: content})
	}

	return Stats{
		TotalTurns:     len(w.turns),
		WindowSize:     w.size,
		RecentPreviews: previews,
	}
}
