// Package transcript normalizes recognized text before it is injected.
package transcript

import "strings"

// Options controls post-processing of a successful transcription.
type Options struct {
	AddPunctuation   bool
	PreserveNewlines bool
}

var (
	punctuationStripper = strings.NewReplacer(".", "", ",", "", "!", "", "?", "", ";", "", ":", "")
	lineBreakFlattener  = strings.NewReplacer("\r\n", " ", "\n", " ", "\r", " ")
)

// Format trims text, then strips punctuation and flattens line breaks as
// opts direct. Stripping is character-level, not tokenized.
func Format(text string, opts Options) string {
	out := strings.TrimSpace(text)
	if !opts.AddPunctuation {
		out = punctuationStripper.Replace(out)
	}
	if !opts.PreserveNewlines {
		out = collapseSpaces(lineBreakFlattener.Replace(out))
	}
	return out
}

func collapseSpaces(s string) string {
	for strings.Contains(s, "  ") {
		s = strings.ReplaceAll(s, "  ", " ")
	}
	return s
}
