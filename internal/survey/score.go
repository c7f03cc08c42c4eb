package survey

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"
)

var (
	ErrUnknownSurvey = errors.New("unknown survey")
	ErrIncomplete    = errors.New("survey is not complete")
	ErrInvalidAnswer = errors.New("invalid answer")
)

// Ranked is one category with its total, in ranking order.
type Ranked struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Outcome is the scored result of one completed survey.
type Outcome struct {
	Scores   map[string]int `json:"scores"`
	Ranking  []Ranked       `json:"ranking"`
	Dominant string         `json:"dominantStyle,omitempty"`
	Code     string         `json:"hollandCode,omitempty"`
}

// Score totals answers (question index to answer value) per category. Every
// question must be answered with a value from the answer scale.
func Score(def *Definition, answers map[int]int) (Outcome, error) {
	if len(answers) < len(def.Questions) {
		return Outcome{}, fmt.Errorf("%w: %d of %d questions answered", ErrIncomplete, len(answers), len(def.Questions))
	}

	scores := make(map[string]int, len(def.Categories))
	for _, c := range def.Categories {
		scores[c.Key] = 0
	}
	for idx, value := range answers {
		if idx < 0 || idx >= len(def.Questions) {
			return Outcome{}, fmt.Errorf("%w: no question %d", ErrInvalidAnswer, idx)
		}
		if !def.validAnswer(value) {
			return Outcome{}, fmt.Errorf("%w: %d is not on the scale for question %d", ErrInvalidAnswer, value, idx)
		}
		scores[def.Questions[idx].Category] += value
	}

	out := Outcome{Scores: scores, Ranking: Rank(def, scores)}
	switch def.Result {
	case resultDominant:
		out.Dominant = out.Ranking[0].Key
	case resultCode:
		out.Code = HollandCode(out.Ranking)
	}
	return out, nil
}

// Rank orders categories by score, highest first. Equal scores keep the
// definition's category order.
func Rank(def *Definition, scores map[string]int) []Ranked {
	ranked := make([]Ranked, len(def.Categories))
	for i, c := range def.Categories {
		ranked[i] = Ranked{Key: c.Key, Name: c.Name, Score: scores[c.Key]}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	return ranked
}

// HollandCode joins the initials of the first word of the top three names.
func HollandCode(ranking []Ranked) string {
	var b strings.Builder
	for i := 0; i < len(ranking) && i < 3; i++ {
		word, _, _ := strings.Cut(ranking[i].Name, " ")
		if r, _ := utf8.DecodeRuneInString(word); r != utf8.RuneError {
			b.WriteRune(r)
		}
	}
	return b.String()
}
