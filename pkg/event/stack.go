package event

import (
	"errors"
	"fmt"
	"strings"
)

// RenderCause renders err and its wrapped chain, followed by stack if given.
//
//	*errors.errorString: connection refused
//	Caused by: *net.OpError: dial tcp 10.0.0.1:5432
func RenderCause(err error, stack string) string {
	var b strings.Builder
	for depth := 0; err != nil; depth++ {
		if depth > 0 {
			b.WriteString("\nCaused by: ")
		}
		fmt.Fprintf(&b, "%T: %s", err, err.Error())
		err = errors.Unwrap(err)
	}
	if stack = strings.TrimRight(stack, "\n"); stack != "" {
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(stack)
	}
	return b.String()
}

// FormatStack keeps the first maxLines lines of text and collapses the rest
// into a "... N more lines truncated" trailer. A non-positive maxLines keeps
// only the trailer.
func FormatStack(text string, maxLines int) string {
	text = strings.TrimRight(text, "\n")
	if text == "" {
		return ""
	}
	lines := strings.Split(text, "\n")
	if maxLines > 0 && len(lines) <= maxLines {
		return text
	}

	show := max(0, min(maxLines, len(lines)))
	var b strings.Builder
	for i := 0; i < show; i++ {
		b.WriteString(lines[i])
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "... %d more lines truncated", len(lines)-show)
	return b.String()
}

// Truncate bounds s to maxChars runes, appending "... (truncated)" when cut.
// A non-positive maxChars disables the bound.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	r := []rune(s)
	if len(r) <= maxChars {
		return s
	}
	return string(r[:maxChars]) + "... (truncated)"
}

// ShortName returns the part of a dotted or slashed source name after the last separator.
func ShortName(name string) string {
	if i := strings.LastIndexAny(name, "./"); i >= 0 {
		return name[i+1:]
	}
	return name
}
