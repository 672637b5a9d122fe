package llm

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// Generator produces text from a prompt, optionally grounded on a binary
// document. Every implementation routes its calls through the process gate.
type Generator interface {
	// Generate answers a plain text prompt
	Generate(ctx context.Context, prompt string) (string, error)

	// GenerateWithInline sends data inline with the prompt
	GenerateWithInline(ctx context.Context, data []byte, mimeType, prompt string) (string, error)

	// GenerateWithUpload uploads r first, then references the upload from the
	// prompt. The upload is removed afterwards.
	GenerateWithUpload(ctx context.Context, r io.Reader, mimeType, prompt string) (string, error)

	// Close releases the underlying client
	Close() error
}

// ExtractPDFPrompt asks for a verbatim transcription of a PDF
const ExtractPDFPrompt = "Extract all text content from this PDF document exactly as it appears. " +
	"Keep the reading order and line breaks. Do not summarize or add commentary. Return plain text only."

const extractSystemInstruction = "You are a precise document text extractor. Return only the text found in the document."

// BuildAnswerPrompt grounds question on the numbered context passages
func BuildAnswerPrompt(question string, passages []string) string {
	if len(passages) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("Answer the question using only the context below. ")
	b.WriteString("If the context does not contain the answer, say so.\n\n")
	for i, p := range passages {
		fmt.Fprintf(&b, "Context %d:\n%s\n\n", i+1, p)
	}
	fmt.Fprintf(&b, "Question: %s", question)
	return b.String()
}
