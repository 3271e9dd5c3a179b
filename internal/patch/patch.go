// Package patch applies and reverts line-ranged edit suggestions against a
// document. The heuristic inserts only lines that are net-new relative to the
// suggestion's original block, so accepted edits never clobber surrounding
// content, and reverting removes exactly what was inserted.
package patch

import (
	"errors"
	"strings"
)

// Change is a proposed replacement span against a document.
// Line numbers are 1-indexed and inclusive. StartCol/EndCol narrow the edit
// to a single line when both are present and StartLine == EndLine.
type Change struct {
	OriginalCode string
	NewCode      string
	StartLine    int
	EndLine      int
	StartCol     *int
	EndCol       *int
}

var (
	ErrEmptyOriginal = errors.New("originalCode must not be empty")
	ErrEmptyNew      = errors.New("newCode must not be empty")
	ErrBadLineRange  = errors.New("startLine must be >= 1 and <= endLine")
)

// Validate rejects malformed changes before they reach the document.
func Validate(ch Change) error {
	if strings.TrimSpace(ch.OriginalCode) == "" {
		return ErrEmptyOriginal
	}
	if strings.TrimSpace(ch.NewCode) == "" {
		return ErrEmptyNew
	}
	if ch.StartLine < 1 || ch.EndLine < ch.StartLine {
		return ErrBadLineRange
	}
	return nil
}

// Apply inserts the change's net-new lines into doc and returns the result.
// Lines already present (by trimmed content) in the original block are treated
// as unchanged context and preserved in place. When the target range no longer
// matches the document, the routine degrades to best-effort insertion rather
// than failing.
func Apply(doc string, ch Change) string {
	docLines := splitLines(doc)
	oldLines := splitLines(ch.OriginalCode)
	newLines := splitLines(ch.NewCode)

	oldSet := trimmedSet(oldLines)
	trulyNew := make([]string, 0, len(newLines))
	for _, line := range newLines {
		if _, exists := oldSet[strings.TrimSpace(line)]; !exists {
			trulyNew = append(trulyNew, line)
		}
	}

	start := clamp(ch.StartLine-1, 0, len(docLines))
	end := clamp(ch.EndLine, start, len(docLines))

	if ch.StartCol != nil && ch.EndCol != nil && ch.StartLine == ch.EndLine {
		return joinLines(applySingleLine(docLines, oldLines, newLines, trulyNew, start))
	}

	span := docLines[start:end]
	kept := make([]string, 0, len(span))
	for _, line := range span {
		if _, exists := oldSet[strings.TrimSpace(line)]; exists {
			kept = append(kept, line)
		}
	}
	combined := append(kept, trulyNew...)

	result := make([]string, 0, len(docLines)-len(span)+len(combined))
	result = append(result, docLines[:start]...)
	result = append(result, combined...)
	result = append(result, docLines[end:]...)
	return joinLines(result)
}

// Revert removes the lines a previously applied change inserted. The slice
// starting at the change's start line and spanning the new block's length is
// filtered down to the lines present in the original block. Reverting an
// already-reverted document is a no-op.
func Revert(doc string, ch Change) string {
	docLines := splitLines(doc)
	oldSet := trimmedSet(splitLines(ch.OriginalCode))
	newLines := splitLines(ch.NewCode)

	start := clamp(ch.StartLine-1, 0, len(docLines))
	end := clamp(start+len(newLines), start, len(docLines))

	kept := make([]string, 0, end-start)
	for _, line := range docLines[start:end] {
		if _, exists := oldSet[strings.TrimSpace(line)]; exists {
			kept = append(kept, line)
		}
	}

	result := make([]string, 0, len(docLines)-(end-start)+len(kept))
	result = append(result, docLines[:start]...)
	result = append(result, kept...)
	result = append(result, docLines[end:]...)
	return joinLines(result)
}

func applySingleLine(docLines, oldLines, newLines, trulyNew []string, start int) []string {
	if start < len(docLines) && len(oldLines) > 0 &&
		strings.TrimSpace(docLines[start]) == strings.TrimSpace(oldLines[0]) {
		result := make([]string, 0, len(docLines)-1+len(newLines))
		result = append(result, docLines[:start]...)
		result = append(result, newLines...)
		result = append(result, docLines[start+1:]...)
		return result
	}

	// Target line changed since the suggestion was produced: fall back to
	// inserting the net-new lines right after it.
	insertAt := clamp(start+1, 0, len(docLines))
	result := make([]string, 0, len(docLines)+len(trulyNew))
	result = append(result, docLines[:insertAt]...)
	result = append(result, trulyNew...)
	result = append(result, docLines[insertAt:]...)
	return result
}

func trimmedSet(lines []string) map[string]struct{} {
	set := make(map[string]struct{}, len(lines))
	for _, line := range lines {
		set[strings.TrimSpace(line)] = struct{}{}
	}
	return set
}

func splitLines(s string) []string {
	return strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
}

func joinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
