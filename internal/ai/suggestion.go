package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Suggestion is the provider's proposed edit, decoded strictly. The model
// output is untrusted; malformed payloads are rejected rather than passed
// through best-effort.
type Suggestion struct {
	Description  string `json:"description"`
	OriginalCode string `json:"originalCode"`
	NewCode      string `json:"newCode"`
	StartLine    int    `json:"startLine"`
	EndLine      int    `json:"endLine"`
	StartCol     *int   `json:"startCol"`
	EndCol       *int   `json:"endCol"`
}

// ErrMalformedSuggestion is returned when the model payload fails validation.
var ErrMalformedSuggestion = errors.New("malformed suggestion payload")

// ParseSuggestion decodes and validates a raw suggestion payload.
func ParseSuggestion(raw []byte) (*Suggestion, error) {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.DisallowUnknownFields()

	var s Suggestion
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSuggestion, err)
	}
	if strings.TrimSpace(s.OriginalCode) == "" {
		return nil, fmt.Errorf("%w: originalCode is empty", ErrMalformedSuggestion)
	}
	if strings.TrimSpace(s.NewCode) == "" {
		return nil, fmt.Errorf("%w: newCode is empty", ErrMalformedSuggestion)
	}
	if s.StartLine < 1 {
		return nil, fmt.Errorf("%w: startLine must be >= 1", ErrMalformedSuggestion)
	}
	if s.EndLine < s.StartLine {
		return nil, fmt.Errorf("%w: endLine precedes startLine", ErrMalformedSuggestion)
	}
	if (s.StartCol == nil) != (s.EndCol == nil) {
		return nil, fmt.Errorf("%w: startCol and endCol must be provided together", ErrMalformedSuggestion)
	}
	return &s, nil
}
