// Package grading scores mastery-test submissions. Equivalence
// decisions are delegated to an external judge per question; the
// aggregation afterwards is a pure reduction over the judged results.
package grading

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abhisek/pathwise/internal/assessment"
)

// Judge decides whether a student answer is mathematically equivalent
// to the expected answer (for example "x=2" against "2").
type Judge interface {
	Judge(ctx context.Context, studentAnswer, correctAnswer string) (bool, error)
}

// JudgeFunc adapts a plain function to the Judge interface.
type JudgeFunc func(ctx context.Context, studentAnswer, correctAnswer string) (bool, error)

func (f JudgeFunc) Judge(ctx context.Context, studentAnswer, correctAnswer string) (bool, error) {
	return f(ctx, studentAnswer, correctAnswer)
}

// Band classifies an aggregated percentage.
type Band string

const (
	BandWeak        Band = "weak"
	BandNeedsReview Band = "needs-review"
	BandStrong      Band = "strong"
)

// Band thresholds: strictly below WeakBandScore is weak, at or above
// StrongBandScore is strong, everything between needs review.
const (
	WeakBandScore   = 50
	StrongBandScore = 80
)

// BandFor classifies an integer percentage.
func BandFor(percentage int) Band {
	switch {
	case percentage < WeakBandScore:
		return BandWeak
	case percentage >= StrongBandScore:
		return BandStrong
	default:
		return BandNeedsReview
	}
}

// Options tune judge fan-out.
type Options struct {
	// MaxConcurrency caps parallel judge calls. Defaults to 4.
	MaxConcurrency int
	// JudgeTimeout bounds each individual judge call. Defaults to 15s.
	JudgeTimeout time.Duration
}

const (
	defaultMaxConcurrency = 4
	defaultJudgeTimeout   = 15 * time.Second
)

func (o Options) withDefaults() Options {
	if o.MaxConcurrency <= 0 {
		o.MaxConcurrency = defaultMaxConcurrency
	}
	if o.JudgeTimeout <= 0 {
		o.JudgeTimeout = defaultJudgeTimeout
	}
	return o
}

// GradedAnswer is the per-question audit record. JudgeError carries
// the judge failure message when the question was scored incorrect
// because the external check failed rather than because the answer
// was wrong.
type GradedAnswer struct {
	QuestionID string `json:"questionId"`
	SubtopicID string `json:"subtopicId"`
	Answer     string `json:"answer"`
	Correct    bool   `json:"correct"`
	JudgeError string `json:"judgeError,omitempty"`
}

// UnitBreakdown aggregates judged results for one knowledge unit.
type UnitBreakdown struct {
	UnitID     string `json:"knowledgeUnitId"`
	Total      int    `json:"total"`
	Correct    int    `json:"correct"`
	Percentage int    `json:"percentage"`
	Band       Band   `json:"band"`
}

// SubtopicCoverage aggregates judged results for one subtopic.
type SubtopicCoverage struct {
	SubtopicID string `json:"subtopicId"`
	Total      int    `json:"total"`
	Correct    int    `json:"correct"`
	Percentage int    `json:"percentage"`
	Band       Band   `json:"band"`
}

// MasteryResult is the full grading outcome. Given the same judge
// verdicts it is deterministic: breakdowns are sorted by ID and the
// answer list follows question order.
type MasteryResult struct {
	AttemptID     string             `json:"attemptId,omitempty"`
	OverallScore  int                `json:"overallScore"`
	Units         []UnitBreakdown    `json:"units"`
	WeakUnitIDs   []string           `json:"weakUnitIds"`
	StrongUnitIDs []string           `json:"strongUnitIds"`
	Subtopics     []SubtopicCoverage `json:"subtopics"`
	Answers       []GradedAnswer     `json:"answers"`
}

// Grade judges every submitted answer and reduces the verdicts into
// per-unit and per-subtopic breakdowns. Empty or missing answers are
// scored incorrect without invoking the judge. A judge error or
// timeout scores that question incorrect, records the failure on the
// graded answer and never aborts the rest of the grading.
func Grade(ctx context.Context, questions []assessment.Question, answers []assessment.AnswerSubmission, judge Judge, opts Options) (*MasteryResult, error) {
	if len(questions) == 0 {
		return nil, &assessment.InvalidInputError{Field: "questions", Reason: "no questions to grade"}
	}
	if judge == nil {
		return nil, &assessment.InvalidInputError{Field: "judge", Reason: "judge is required"}
	}
	opts = opts.withDefaults()

	byQuestion := make(map[string]string, len(answers))
	known := make(map[string]bool, len(questions))
	for _, q := range questions {
		known[q.ID] = true
	}
	for _, a := range answers {
		if !known[a.QuestionID] {
			return nil, &assessment.InvalidInputError{
				Field:  "answers",
				Reason: "answer for unknown question " + a.QuestionID,
			}
		}
		if _, dup := byQuestion[a.QuestionID]; dup {
			return nil, &assessment.InvalidInputError{
				Field:  "answers",
				Reason: "duplicate answer for question " + a.QuestionID,
			}
		}
		byQuestion[a.QuestionID] = a.Answer
	}

	graded := make([]GradedAnswer, len(questions))
	g := &errgroup.Group{}
	g.SetLimit(opts.MaxConcurrency)

	for i, q := range questions {
		answer := byQuestion[q.ID]
		graded[i] = GradedAnswer{QuestionID: q.ID, SubtopicID: q.SubtopicID, Answer: answer}

		if strings.TrimSpace(answer) == "" {
			continue
		}

		g.Go(func() error {
			jctx, cancel := context.WithTimeout(ctx, opts.JudgeTimeout)
			defer cancel()

			ok, err := judge.Judge(jctx, answer, q.CorrectAnswer)
			if err != nil {
				graded[i].JudgeError = err.Error()
				slog.Warn("equivalence judge failed, scoring incorrect",
					"question_id", q.ID, "error", err)
				return nil
			}
			graded[i].Correct = ok
			return nil
		})
	}
	// Judge failures are captured per question, so Wait never errors.
	_ = g.Wait()

	return reduce(questions, graded), nil
}

type tally struct {
	total   int
	correct int
}

// reduce is the pure aggregation step. Each question increments the
// tally of every unit it cites, deduplicated within the question.
func reduce(questions []assessment.Question, graded []GradedAnswer) *MasteryResult {
	units := make(map[string]*tally)
	subtopics := make(map[string]*tally)
	correctQuestions := 0

	for i, q := range questions {
		correct := graded[i].Correct
		if correct {
			correctQuestions++
		}
		for _, uid := range q.CitedUnits() {
			t := units[uid]
			if t == nil {
				t = &tally{}
				units[uid] = t
			}
			t.total++
			if correct {
				t.correct++
			}
		}
		st := subtopics[q.SubtopicID]
		if st == nil {
			st = &tally{}
			subtopics[q.SubtopicID] = st
		}
		st.total++
		if correct {
			st.correct++
		}
	}

	res := &MasteryResult{
		OverallScore: roundPercent(correctQuestions, len(questions)),
		Answers:      graded,
	}

	for _, uid := range sortedKeys(units) {
		t := units[uid]
		pct := roundPercent(t.correct, t.total)
		b := UnitBreakdown{UnitID: uid, Total: t.total, Correct: t.correct, Percentage: pct, Band: BandFor(pct)}
		res.Units = append(res.Units, b)
		switch b.Band {
		case BandWeak:
			res.WeakUnitIDs = append(res.WeakUnitIDs, uid)
		case BandStrong:
			res.StrongUnitIDs = append(res.StrongUnitIDs, uid)
		}
	}
	for _, sid := range sortedKeys(subtopics) {
		t := subtopics[sid]
		pct := roundPercent(t.correct, t.total)
		res.Subtopics = append(res.Subtopics, SubtopicCoverage{
			SubtopicID: sid, Total: t.total, Correct: t.correct, Percentage: pct, Band: BandFor(pct),
		})
	}
	return res
}

// roundPercent computes round-half-up(100*correct/total).
func roundPercent(correct, total int) int {
	if total <= 0 {
		return 0
	}
	return (200*correct + total) / (2 * total)
}

func sortedKeys(m map[string]*tally) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
