package patch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int {
	return &v
}

func TestApplyAppendsOnlyNetNewLines(t *testing.T) {
	doc := "<p>A</p>\n<p>B</p>"
	ch := Change{
		OriginalCode: "<p>B</p>",
		NewCode:      "<p>B</p>\n<p>C</p>",
		StartLine:    2,
		EndLine:      2,
	}

	result := Apply(doc, ch)
	assert.Equal(t, "<p>A</p>\n<p>B</p>\n<p>C</p>", result)
}

func TestApplyThenRevertRoundTrip(t *testing.T) {
	doc := strings.Join([]string{
		"<html>",
		"<body>",
		"<p>Hello</p>",
		"</body>",
		"</html>",
	}, "\n")
	ch := Change{
		OriginalCode: "<p>Hello</p>",
		NewCode:      "<p>Hello</p>\n<p>World</p>",
		StartLine:    3,
		EndLine:      3,
	}

	applied := Apply(doc, ch)
	require.Contains(t, applied, "<p>World</p>")

	reverted := Revert(applied, ch)
	assert.Equal(t, doc, reverted)
}

func TestRevertIsIdempotent(t *testing.T) {
	doc := "<p>A</p>\n<p>B</p>"
	ch := Change{
		OriginalCode: "<p>B</p>",
		NewCode:      "<p>B</p>\n<p>C</p>",
		StartLine:    2,
		EndLine:      2,
	}

	applied := Apply(doc, ch)
	once := Revert(applied, ch)
	twice := Revert(once, ch)
	assert.Equal(t, doc, once)
	assert.Equal(t, once, twice)
}

func TestApplyLeavesLinesOutsideSpanUntouched(t *testing.T) {
	doc := strings.Join([]string{
		"<header>top</header>",
		"<p>old</p>",
		"<footer>bottom</footer>",
	}, "\n")
	ch := Change{
		OriginalCode: "<p>old</p>",
		NewCode:      "<p>old</p>\n<p>extra</p>",
		StartLine:    2,
		EndLine:      2,
	}

	result := Apply(doc, ch)
	lines := strings.Split(result, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "<header>top</header>", lines[0])
	assert.Equal(t, "<footer>bottom</footer>", lines[3])
}

func TestApplySingleLineColumnReplacement(t *testing.T) {
	doc := "<h1>Title</h1>\n<p>Body</p>"
	ch := Change{
		OriginalCode: "<h1>Title</h1>",
		NewCode:      "<h1>Welcome</h1>",
		StartLine:    1,
		EndLine:      1,
		StartCol:     intPtr(1),
		EndCol:       intPtr(14),
	}

	result := Apply(doc, ch)
	assert.Equal(t, "<h1>Welcome</h1>\n<p>Body</p>", result)
}

func TestApplySingleLineStaleFallsBackToInsertion(t *testing.T) {
	doc := "<h1>Changed</h1>\n<p>Body</p>"
	ch := Change{
		OriginalCode: "<h1>Title</h1>",
		NewCode:      "<h1>Welcome</h1>",
		StartLine:    1,
		EndLine:      1,
		StartCol:     intPtr(1),
		EndCol:       intPtr(14),
	}

	result := Apply(doc, ch)
	lines := strings.Split(result, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "<h1>Changed</h1>", lines[0])
	assert.Equal(t, "<h1>Welcome</h1>", lines[1])
	assert.Equal(t, "<p>Body</p>", lines[2])
}

func TestApplyPreservesIndentedContextLines(t *testing.T) {
	doc := "<table>\n  <tr>one</tr>\n</table>"
	ch := Change{
		OriginalCode: "<tr>one</tr>",
		NewCode:      "<tr>one</tr>\n<tr>two</tr>",
		StartLine:    2,
		EndLine:      2,
	}

	result := Apply(doc, ch)
	lines := strings.Split(result, "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "  <tr>one</tr>", lines[1], "existing indentation survives")
	assert.Equal(t, "<tr>two</tr>", lines[2])
}

// Duplicate lines inside the target span are each kept; net-new content lands
// after them. Pins the current behavior of the membership heuristic.
func TestApplyDuplicateLinesInSpan(t *testing.T) {
	doc := "<td>X</td>\n<td>X</td>"
	ch := Change{
		OriginalCode: "<td>X</td>",
		NewCode:      "<td>X</td>\n<td>Y</td>",
		StartLine:    1,
		EndLine:      2,
	}

	result := Apply(doc, ch)
	assert.Equal(t, "<td>X</td>\n<td>X</td>\n<td>Y</td>", result)
}

func TestApplyRangeBeyondDocumentClamps(t *testing.T) {
	doc := "<p>A</p>"
	ch := Change{
		OriginalCode: "<p>Z</p>",
		NewCode:      "<p>Z</p>\n<p>New</p>",
		StartLine:    5,
		EndLine:      9,
	}

	result := Apply(doc, ch)
	assert.Equal(t, "<p>A</p>\n<p>New</p>", result)
}

func TestValidate(t *testing.T) {
	valid := Change{OriginalCode: "<p>A</p>", NewCode: "<p>B</p>", StartLine: 1, EndLine: 1}
	require.NoError(t, Validate(valid))

	cases := []struct {
		name string
		ch   Change
		want error
	}{
		{"empty original", Change{NewCode: "x", StartLine: 1, EndLine: 1}, ErrEmptyOriginal},
		{"empty new", Change{OriginalCode: "x", StartLine: 1, EndLine: 1}, ErrEmptyNew},
		{"zero start line", Change{OriginalCode: "x", NewCode: "y", StartLine: 0, EndLine: 1}, ErrBadLineRange},
		{"inverted range", Change{OriginalCode: "x", NewCode: "y", StartLine: 3, EndLine: 2}, ErrBadLineRange},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, Validate(tc.ch), tc.want)
		})
	}
}
