// Package interpret turns a free-text reply into an answer value for a
// questionnaire scale.
//
// Resolution runs in two tiers. Resolve looks for an embedded number, then
// for a keyword phrase contained in the reply. When neither is found, Rank
// scores every scale value by fuzzy similarity and Ambiguous decides whether
// the top two candidates are too close to pick one automatically.
package interpret

import (
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
	"github.com/felixgeelhaar/stressguard/internal/textmatch"
)

const (
	// scoreFloor keeps every candidate above zero
	scoreFloor = 0.05
	// containedBoost is the minimum raw score of a value whose phrase occurs
	// literally in the reply
	containedBoost = 0.9

	ambiguousMinSecond = 0.30
	ambiguousMaxGap    = 0.12
	epsilon            = 1e-9
)

var (
	// the sign is kept so "-1" is an out-of-range number, not a 1
	numberPattern = regexp.MustCompile(`-?\d+`)
	bareNumber    = regexp.MustCompile(`^\s*-?\d+\s*$`)
)

// Candidate is one possible reading of a reply
type Candidate struct {
	Value int     `json:"value"`
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Interpretation is the combined outcome of Resolve and Rank
type Interpretation struct {
	Value int
	Label string
	// Resolved is set when a number or keyword matched directly
	Resolved   bool
	Ambiguous  bool
	Candidates []Candidate
}

// Interpret resolves text against d, falling back to ranking. When the result
// is ambiguous Value is meaningless and Candidates holds the ranked set.
func Interpret(d *questionnaire.Definition, text string) Interpretation {
	if v, ok := Resolve(d, text); ok {
		return Interpretation{Value: v, Label: d.Label(v), Resolved: true}
	}

	cands := Rank(d, text)
	in := Interpretation{Candidates: cands, Ambiguous: Ambiguous(cands)}
	if len(cands) > 0 && !in.Ambiguous {
		in.Value = cands[0].Value
		in.Label = cands[0].Label
	}
	return in
}

// Resolve maps text to a scale value by embedded number or keyword phrase
func Resolve(d *questionnaire.Definition, text string) (int, bool) {
	if v, ok := resolveNumber(d, text); ok {
		return v, true
	}
	return resolveKeyword(d, text)
}

func resolveNumber(d *questionnaire.Definition, text string) (int, bool) {
	for _, m := range numberPattern.FindAllString(text, -1) {
		n, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		if d.InScale(n) {
			return n, true
		}
		if d.OneBased && n == d.ScaleMax()+1 {
			return n - 1, true
		}
	}
	return 0, false
}

type phrase struct {
	folded string
	value  int
}

// phrases flattens d's synonym table, longest phrase first
func phrases(d *questionnaire.Definition) []phrase {
	var out []phrase
	for _, o := range d.Scale {
		for _, p := range d.Phrases[o.Value] {
			if f := textmatch.Fold(p); f != "" {
				out = append(out, phrase{folded: f, value: o.Value})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return len([]rune(out[i].folded)) > len([]rune(out[j].folded))
	})
	return out
}

func resolveKeyword(d *questionnaire.Definition, text string) (int, bool) {
	ft := textmatch.Fold(text)
	if ft == "" {
		return 0, false
	}
	for _, p := range phrases(d) {
		if strings.Contains(ft, p.folded) {
			return p.value, true
		}
	}
	return 0, false
}

// Rank scores every scale value against text. Scores are normalized to sum
// to 1 and sorted descending, ties broken by ascending value.
func Rank(d *questionnaire.Definition, text string) []Candidate {
	ft := textmatch.Fold(text)
	cands := make([]Candidate, 0, len(d.Scale))
	sum := 0.0

	for _, o := range d.Scale {
		best := 0.0
		contained := false
		options := append([]string{o.Label}, d.Phrases[o.Value]...)
		for _, p := range options {
			if s := textmatch.Similarity(text, p); s > best {
				best = s
			}
			if fp := textmatch.Fold(p); ft != "" && fp != "" && strings.Contains(ft, fp) {
				contained = true
			}
		}

		score := scoreFloor + best
		if contained {
			score = math.Max(score, containedBoost)
		}
		cands = append(cands, Candidate{Value: o.Value, Label: o.Label, Score: score})
		sum += score
	}

	for i := range cands {
		cands[i].Score /= sum
	}

	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].Score != cands[j].Score {
			return cands[i].Score > cands[j].Score
		}
		return cands[i].Value < cands[j].Value
	})
	return cands
}

// Ambiguous reports whether the two best candidates are too close to call:
// the runner-up reaches 0.30 and trails the leader by at most 0.12.
// cands must be sorted as returned by Rank.
func Ambiguous(cands []Candidate) bool {
	if len(cands) < 2 {
		return false
	}
	p1, p2 := cands[0].Score, cands[1].Score
	return p2 >= ambiguousMinSecond-epsilon && p1-p2 <= ambiguousMaxGap+epsilon
}

// IsBareNumber reports whether text is only an integer, optionally negative,
// around optional spaces
func IsBareNumber(text string) bool {
	return bareNumber.MatchString(text)
}
