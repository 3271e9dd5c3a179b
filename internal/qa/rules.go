// Package qa runs pattern-based checks against HTML email markup.
// The rules are deliberately simple line scans; they flag the common ways an
// email breaks in real clients rather than attempting full HTML parsing.
package qa

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/emailgen-labs/emailgen-api/internal/models"
)

// Rule names, stable identifiers used in persisted findings and reports.
const (
	RuleMissingAlt      = "img-missing-alt"
	RuleNoUnsubscribe   = "missing-unsubscribe"
	RuleWideLayout      = "layout-wider-than-600"
	RuleInsecureURL     = "insecure-asset-url"
	RuleEmptyHref       = "empty-href"
	RuleMissingPreheadr = "missing-preheader"
	RuleDocumentTooBig  = "document-too-large"
)

var (
	imgTagRe      = regexp.MustCompile(`(?i)<img\b[^>]*>`)
	altAttrRe     = regexp.MustCompile(`(?i)\balt\s*=`)
	unsubscribeRe = regexp.MustCompile(`(?i)unsubscribe`)
	widthAttrRe   = regexp.MustCompile(`(?i)\bwidth\s*=\s*["']?(\d+)`)
	insecureRe    = regexp.MustCompile(`(?i)\b(?:src|href)\s*=\s*["']http://`)
	emptyHrefRe   = regexp.MustCompile(`(?i)\bhref\s*=\s*["']\s*["']`)
	preheaderRe   = regexp.MustCompile(`(?i)preheader|preview-text`)
)

// Checker evaluates the rule set over a document.
type Checker struct {
	maxDocumentKB int
}

// NewChecker builds a checker. maxDocumentKB <= 0 disables the size rule.
func NewChecker(maxDocumentKB int) *Checker {
	return &Checker{maxDocumentKB: maxDocumentKB}
}

// Check runs every rule and returns the findings in document order.
func (c *Checker) Check(html string) []models.QAFinding {
	findings := make([]models.QAFinding, 0)
	lines := strings.Split(html, "\n")

	for i, line := range lines {
		lineNo := i + 1
		for _, img := range imgTagRe.FindAllString(line, -1) {
			if !altAttrRe.MatchString(img) {
				findings = append(findings, models.QAFinding{
					Rule:     RuleMissingAlt,
					Severity: models.QASeverityWarning,
					Message:  "image tag without alt text",
					Line:     lineNo,
				})
			}
		}
		for _, match := range widthAttrRe.FindAllStringSubmatch(line, -1) {
			if width, err := strconv.Atoi(match[1]); err == nil && width > 600 {
				findings = append(findings, models.QAFinding{
					Rule:     RuleWideLayout,
					Severity: models.QASeverityWarning,
					Message:  fmt.Sprintf("element width %d exceeds 600px", width),
					Line:     lineNo,
				})
			}
		}
		if insecureRe.MatchString(line) {
			findings = append(findings, models.QAFinding{
				Rule:     RuleInsecureURL,
				Severity: models.QASeverityBlocking,
				Message:  "asset or link served over http",
				Line:     lineNo,
			})
		}
		if emptyHrefRe.MatchString(line) {
			findings = append(findings, models.QAFinding{
				Rule:     RuleEmptyHref,
				Severity: models.QASeverityWarning,
				Message:  "anchor with empty href",
				Line:     lineNo,
			})
		}
	}

	if !unsubscribeRe.MatchString(html) {
		findings = append(findings, models.QAFinding{
			Rule:     RuleNoUnsubscribe,
			Severity: models.QASeverityBlocking,
			Message:  "no unsubscribe link found",
		})
	}
	if !preheaderRe.MatchString(html) {
		findings = append(findings, models.QAFinding{
			Rule:     RuleMissingPreheadr,
			Severity: models.QASeverityInfo,
			Message:  "no preheader text found",
		})
	}
	if c.maxDocumentKB > 0 && len(html) > c.maxDocumentKB*1024 {
		findings = append(findings, models.QAFinding{
			Rule:     RuleDocumentTooBig,
			Severity: models.QASeverityBlocking,
			Message:  fmt.Sprintf("document exceeds %d KB; clients may clip it", c.maxDocumentKB),
		})
	}

	return findings
}

// Passed reports whether a finding set contains no blocking findings.
func Passed(findings []models.QAFinding) bool {
	for _, f := range findings {
		if f.Severity == models.QASeverityBlocking {
			return false
		}
	}
	return true
}
