package scanning

import (
	"strings"
)

// transcriptionPrompt is the shared prompt used by all LLM providers. The
// receipt parser needs the text line for line, not a summary.
const transcriptionPrompt = `You are reading a photographed shop receipt. Transcribe every line of printed text exactly as it appears, from top to bottom.

Rules:
- Output one receipt line per line of output, in the original order
- Keep prices exactly as printed, including the decimal comma (e.g. "2,49 B")
- Keep the column header "EUR" on its own line if the receipt has one
- Do not translate, correct, summarize, or reformat anything
- Do not add commentary before or after the text
- Do not use markdown code blocks`

// cleanTranscript strips the wrapping LLMs like to add around a transcription
func cleanTranscript(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.TrimSpace(text)

	// Remove markdown code blocks if present
	if strings.HasPrefix(text, "```") {
		if nl := strings.Index(text, "\n"); nl != -1 {
			text = text[nl+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
