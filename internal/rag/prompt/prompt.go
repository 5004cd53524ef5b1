// Package prompt assembles the text handed to the answer generator: the
// retrieved-context block, the conversation transcript slot, and the fixed
// QA instruction template.
package prompt

import (
	"fmt"
	"strings"

	"docqa/internal/rag"
)

// delimiter separates rendered chunks in the context block.
const delimiter = "---"

// BuildContext serialises scored chunks into one prompt-ready block. Input
// order is preserved (it is the ranking order), chunk text is never
// truncated, and similarities are rendered to 3 decimals. The function is
// pure; rendering the same input twice yields identical output.
func BuildContext(chunks []rag.ScoredChunk) string {
	parts := make([]string, 0, len(chunks))
	for i, sc := range chunks {
		parts = append(parts, fmt.Sprintf(
			"Fragment %d:\nContent: %s\nSource: %s\nSimilarity: %.3f\n%s",
			i+1, sc.Chunk.Content, sc.Chunk.Source, sc.Similarity, delimiter,
		))
	}
	return strings.Join(parts, "\n")
}

// template is the fixed QA prompt. The three slots mirror the retrieval
// pipeline: retrieved context, recent conversation, current question.
const template = `You are a document question-answering assistant.
Answer the user's question based on the retrieved document fragments below.

Retrieved fragments:
%s

Conversation history:
%s

Question: %s

Requirements:
1. Ground the answer in the retrieved fragments and keep it accurate.
2. If the fragments do not contain the relevant information, say so explicitly.
3. Keep the answer concise and well structured.
4. Do not invent information that is not present in the fragments.

Answer:`

// Build fills the QA template with context, chat history, and the question.
func Build(context, chatHistory, question string) string {
	return fmt.Sprintf(template, context, chatHistory, question)
}
