package scoring

import "fmt"

const (
	baseline = 50
	minScore = 0
	maxScore = 100
)

// Result is a clamped score and the audit trail of every rule that fired.
type Result struct {
	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
}

// rule contributes delta(in) points; a zero delta means the rule did not fire.
type rule[T any] struct {
	reason string
	delta  func(T) int
}

// when builds a rule with a fixed delta guarded by a predicate.
func when[T any](delta int, reason string, pred func(T) bool) rule[T] {
	return rule[T]{reason: reason, delta: func(in T) int {
		if pred(in) {
			return delta
		}
		return 0
	}}
}

// fold evaluates every rule in order, without short-circuit, and clamps the total.
func fold[T any](rules []rule[T], in T) Result {
	score := baseline
	reasons := []string{}
	for _, r := range rules {
		d := r.delta(in)
		if d == 0 {
			continue
		}
		score += d
		reasons = append(reasons, fmt.Sprintf("%+d %s", d, r.reason))
	}
	if score < minScore {
		score = minScore
	}
	if score > maxScore {
		score = maxScore
	}
	return Result{Score: score, Reasons: reasons}
}
