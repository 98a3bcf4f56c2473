// Package strategy tracks how many times a student has failed the
// same question family in a row and which teaching approach the next
// explanation should take. The state machine is explicit so it can be
// tested independently of any prompt text.
package strategy

import "sync"

// Stage is the teaching stage for a (student, question family) pair,
// advanced by consecutive incorrect attempts.
type Stage int

const (
	StageFirstAttempt Stage = iota
	StageSecondAttempt
	StageEscalated
)

func (s Stage) String() string {
	switch s {
	case StageFirstAttempt:
		return "first-attempt"
	case StageSecondAttempt:
		return "second-attempt"
	case StageEscalated:
		return "escalated"
	default:
		return "unknown"
	}
}

// ExplanationVariant names the teaching variant to use at this stage.
// The first retry restates the method with a worked example; once
// escalated the explanation switches to a different approach entirely.
func (s Stage) ExplanationVariant() string {
	switch s {
	case StageSecondAttempt:
		return "worked-example"
	case StageEscalated:
		return "alternative-method"
	default:
		return "standard"
	}
}

// next returns the stage after one more incorrect attempt. Escalated
// is terminal until a correct answer resets the pair.
func (s Stage) next() Stage {
	if s >= StageEscalated {
		return StageEscalated
	}
	return s + 1
}

type pairKey struct {
	studentID string
	family    string
}

// Tracker holds per-(student, question family) stages. Safe for
// concurrent use.
type Tracker struct {
	mu     sync.Mutex
	stages map[pairKey]Stage
}

func NewTracker() *Tracker {
	return &Tracker{stages: make(map[pairKey]Stage)}
}

// Stage returns the current stage for the pair. Unknown pairs are at
// the first attempt.
func (t *Tracker) Stage(studentID, questionFamily string) Stage {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stages[pairKey{studentID, questionFamily}]
}

// Record applies an attempt outcome and returns the stage the NEXT
// attempt will be taught at. A correct answer resets the pair to
// first attempt; an incorrect one advances it.
func (t *Tracker) Record(studentID, questionFamily string, correct bool) Stage {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pairKey{studentID, questionFamily}
	if correct {
		delete(t.stages, key)
		return StageFirstAttempt
	}
	next := t.stages[key].next()
	t.stages[key] = next
	return next
}

// Reset clears the pair regardless of its current stage.
func (t *Tracker) Reset(studentID, questionFamily string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.stages, pairKey{studentID, questionFamily})
}
