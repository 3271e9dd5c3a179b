// Command qa_check runs the email QA rule set against a local HTML file.
// Useful for checking templates before uploading them through the API.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/emailgen-labs/emailgen-api/internal/models"
	"github.com/emailgen-labs/emailgen-api/internal/qa"
)

func main() {
	var (
		inputPath string
		asJSON    bool
		maxKB     int
	)

	flag.StringVar(&inputPath, "input", "", "Path to HTML file (defaults to stdin)")
	flag.BoolVar(&asJSON, "json", false, "Emit findings as JSON")
	flag.IntVar(&maxKB, "max-kb", 0, "Document size limit in KB (0 uses the default)")
	flag.Parse()

	content, err := readInput(inputPath)
	if err != nil {
		log.Fatalf("failed to read input: %v", err)
	}

	checker := qa.NewChecker(maxKB)
	findings := checker.Check(string(content))

	if asJSON {
		out := struct {
			Passed   bool               `json:"passed"`
			Findings []models.QAFinding `json:"findings"`
		}{Passed: qa.Passed(findings), Findings: findings}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatalf("failed to encode findings: %v", err)
		}
	} else {
		if len(findings) == 0 {
			fmt.Println("no findings")
		}
		for _, f := range findings {
			if f.Line > 0 {
				fmt.Printf("%-8s %-24s line %-4d %s\n", f.Severity, f.Rule, f.Line, f.Message)
			} else {
				fmt.Printf("%-8s %-24s          %s\n", f.Severity, f.Rule, f.Message)
			}
		}
	}

	if !qa.Passed(findings) {
		os.Exit(1)
	}
}

func readInput(path string) ([]byte, error) {
	if path == "" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
