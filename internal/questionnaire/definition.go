package questionnaire

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/zeebo/blake3"
)

// Definition is an immutable questionnaire: items, answer scale, reversal
// rules and scoring bands. Definitions returned by this package are shared
// and must not be modified.
type Definition struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Duration    string   `json:"duration"`
	Purpose     string   `json:"purpose"`
	Questions   []string `json:"questions"`
	Scale       []Option `json:"scale"`
	Reversed    []int    `json:"reversed"` // 1-indexed item positions
	Bands       []Band   `json:"bands"`
	MaxTotal    int      `json:"max_total"`

	// Keywords select this questionnaire from free text
	Keywords []string `json:"keywords"`
	// Phrases are free-text synonyms per scale value, used to interpret answers
	Phrases map[int][]string `json:"phrases"`
	// OneBased accepts ScaleMax+1 as a numeric answer from users counting
	// from 1, mapped to ScaleMax
	OneBased bool `json:"one_based"`
}

var ordinalPrefix = regexp.MustCompile(`^\s*\d+\s*[).]\s*`)

// StripOrdinal removes a leading "N) " or "N. " marker from question text
func StripOrdinal(text string) string {
	return ordinalPrefix.ReplaceAllString(text, "")
}

// ScaleMin returns the lowest answer value
func (d *Definition) ScaleMin() int {
	if len(d.Scale) == 0 {
		return 0
	}
	return d.Scale[0].Value
}

// ScaleMax returns the highest answer value
func (d *Definition) ScaleMax() int {
	if len(d.Scale) == 0 {
		return 0
	}
	return d.Scale[len(d.Scale)-1].Value
}

// InScale reports whether value is a valid answer
func (d *Definition) InScale(value int) bool {
	return value >= d.ScaleMin() && value <= d.ScaleMax()
}

// Label returns the scale label for value
func (d *Definition) Label(value int) string {
	for _, o := range d.Scale {
		if o.Value == value {
			return o.Label
		}
	}
	return ""
}

// IsReversed reports whether the 1-indexed item position is reverse-scored
func (d *Definition) IsReversed(position int) bool {
	for _, r := range d.Reversed {
		if r == position {
			return true
		}
	}
	return false
}

// Score computes the total and per-item scored values for raw answers.
// Reversed items contribute ScaleMax - value.
func (d *Definition) Score(answers []int) (int, []int) {
	scored := make([]int, len(answers))
	total := 0
	max := d.ScaleMax()
	for i, v := range answers {
		s := v
		if d.IsReversed(i + 1) {
			s = max - v
		}
		scored[i] = s
		total += s
	}
	return total, scored
}

// Band maps a total to its level. Totals outside every band clamp to the
// nearest one.
func (d *Definition) Band(total int) Level {
	if len(d.Bands) == 0 {
		return ""
	}
	for _, b := range d.Bands {
		if total >= b.Min && total <= b.Max {
			return b.Level
		}
	}
	if total < d.Bands[0].Min {
		return d.Bands[0].Level
	}
	return d.Bands[len(d.Bands)-1].Level
}

// Fingerprint returns the blake3 hash of the definition's JSON encoding.
// Map keys are sorted by encoding/json so the value is stable.
func (d *Definition) Fingerprint() (string, error) {
	canonical, err := json.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("canonicalize questionnaire: %w", err)
	}

	hasher := blake3.New()
	if _, err := hasher.Write(canonical); err != nil {
		return "", fmt.Errorf("hash questionnaire: %w", err)
	}

	return fmt.Sprintf("%x", hasher.Sum(nil)), nil
}
