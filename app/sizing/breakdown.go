package sizing

import "fmt"

// Estimate is a proposed subtask as seen by the sizing rules.
type Estimate struct {
	Title       string
	StoryPoints int
}

// ValidateBreakdown checks proposed subtasks against the cap of the top-level
// size. It returns one message per offending estimate, in input order.
func ValidateBreakdown(size string, estimates []Estimate) []string {
	limit, capped := MaxStoryPointsForSize(size)
	var violations []string
	for _, e := range estimates {
		switch {
		case capped && e.StoryPoints >= limit:
			violations = append(violations, fmt.Sprintf(
				"Subtask '%s' has %d story points, but maximum allowed is %d", e.Title, e.StoryPoints, limit-1))
		case !IsFibonacci(e.StoryPoints):
			violations = append(violations, fmt.Sprintf(
				"Subtask '%s' has %d story points, which is not a Fibonacci value", e.Title, e.StoryPoints))
		}
	}
	return violations
}
