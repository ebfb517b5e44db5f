package rag

import (
	"strconv"
	"strings"

	"github.com/kailas-cloud/ragworker/internal/domain"
)

// FallbackAnswer is what the model is told to say when the context lacks the answer.
const FallbackAnswer = "I don't know based on the provided knowledge."

const instruction = `You are an AI assistant.
Answer the question using ONLY the provided context.
If the answer is not present in the context, say:
"` + FallbackAnswer + `"`

// BuildPrompt renders the grounded prompt: instruction, numbered context chunks, question.
func BuildPrompt(question string, chunks []domain.ScoredChunk) string {
	var b strings.Builder
	b.WriteString(instruction)
	b.WriteString("\n\nContext:\n---------\n")
	for i, c := range chunks {
		b.WriteString("[")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString("] ")
		b.WriteString(c.Chunk.ChunkText)
		b.WriteString("\n\n")
	}
	b.WriteString("---------\n")
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nAnswer:\n")
	return b.String()
}
