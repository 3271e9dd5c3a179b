package qa

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emailgen-labs/emailgen-api/internal/models"
)

func findingsByRule(findings []models.QAFinding) map[string][]models.QAFinding {
	byRule := make(map[string][]models.QAFinding)
	for _, f := range findings {
		byRule[f.Rule] = append(byRule[f.Rule], f)
	}
	return byRule
}

func TestCheckerCleanDocumentPasses(t *testing.T) {
	html := strings.Join([]string{
		`<div class="preheader">Spring sale inside</div>`,
		`<table width="600"><tr><td>`,
		`<img src="https://cdn.example.com/hero.png" alt="Hero">`,
		`<a href="https://example.com/unsubscribe">Unsubscribe</a>`,
		`</td></tr></table>`,
	}, "\n")

	checker := NewChecker(512)
	findings := checker.Check(html)
	assert.True(t, Passed(findings))
}

func TestCheckerMissingAlt(t *testing.T) {
	checker := NewChecker(0)
	findings := checker.Check(`<img src="https://cdn.example.com/x.png">` + "\nunsubscribe preheader")
	byRule := findingsByRule(findings)
	require.Len(t, byRule[RuleMissingAlt], 1)
	assert.Equal(t, 1, byRule[RuleMissingAlt][0].Line)
	assert.Equal(t, models.QASeverityWarning, byRule[RuleMissingAlt][0].Severity)
}

func TestCheckerBlockingRules(t *testing.T) {
	html := `<a href="http://example.com/promo">promo</a>`
	checker := NewChecker(0)
	findings := checker.Check(html)
	byRule := findingsByRule(findings)

	require.Len(t, byRule[RuleInsecureURL], 1)
	require.Len(t, byRule[RuleNoUnsubscribe], 1)
	assert.False(t, Passed(findings))
}

func TestCheckerWideLayout(t *testing.T) {
	checker := NewChecker(0)
	findings := checker.Check(`<table width="720"></table>` + "\nunsubscribe preheader")
	byRule := findingsByRule(findings)
	require.Len(t, byRule[RuleWideLayout], 1)
	assert.Contains(t, byRule[RuleWideLayout][0].Message, "720")
}

func TestCheckerEmptyHref(t *testing.T) {
	checker := NewChecker(0)
	findings := checker.Check(`<a href="">click</a>` + "\nunsubscribe preheader")
	byRule := findingsByRule(findings)
	require.Len(t, byRule[RuleEmptyHref], 1)
}

func TestCheckerDocumentTooLarge(t *testing.T) {
	big := strings.Repeat("<p>unsubscribe preheader</p>\n", 100)
	checker := NewChecker(1)
	findings := checker.Check(big)
	byRule := findingsByRule(findings)
	require.Len(t, byRule[RuleDocumentTooBig], 1)
	assert.False(t, Passed(findings))
}
