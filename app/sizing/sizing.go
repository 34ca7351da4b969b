// Package sizing holds the rules for T-shirt sizes on top-level tasks and
// Fibonacci story points on subtasks.
//
// Only top-level tasks may carry a size. Only subtasks may carry story points,
// and a subtask's points must stay below the cap derived from the size of its
// top-level ancestor.
package sizing

import (
	"strings"

	"taskboard/app/models"
)

// Size is a T-shirt size for a top-level task.
type Size string

const (
	XS Size = "xs"
	S  Size = "s"
	M  Size = "m"
	L  Size = "l"
	XL Size = "xl"
)

// Sizes lists every valid size from smallest to largest.
var Sizes = []Size{XS, S, M, L, XL}

// FibonacciPoints is the closed set of valid story point values.
var FibonacciPoints = []int{1, 2, 3, 5, 8, 13, 21, 34, 55, 89}

// maxPoints maps a size to its exclusive story point cap.
var maxPoints = map[Size]int{
	XS: 2,
	S:  3,
	M:  5,
	L:  8,
	XL: 13,
}

// ParseSize normalizes value and checks it against the size enum.
func ParseSize(value string) (Size, error) {
	sz := Size(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := maxPoints[sz]; !ok {
		return "", invalidf(ErrInvalidSize, "size", "%q is not one of xs, s, m, l, xl", value)
	}
	return sz, nil
}

// IsFibonacci reports whether n is an allowed story point value.
func IsFibonacci(n int) bool {
	for _, p := range FibonacciPoints {
		if p == n {
			return true
		}
	}
	return false
}

// MaxStoryPointsForSize returns the exclusive upper bound for subtask points
// under a top-level task of the given size. ok is false when size is empty or
// not a valid size. size is matched case-insensitively, ignoring spaces.
func MaxStoryPointsForSize(size string) (limit int, ok bool) {
	limit, ok = maxPoints[Size(strings.ToLower(strings.TrimSpace(size)))]
	return limit, ok
}

// AllowedPointsForSize returns the Fibonacci values strictly below the cap for
// size. An absent or invalid size has no cap, so every value is allowed.
func AllowedPointsForSize(size string) []int {
	limit, ok := MaxStoryPointsForSize(size)
	out := make([]int, 0, len(FibonacciPoints))
	for _, p := range FibonacciPoints {
		if ok && p >= limit {
			break
		}
		out = append(out, p)
	}
	return out
}

// SetSize assigns a size to a top-level task.
func SetSize(t *models.Task, value string) error {
	sz, err := ParseSize(value)
	if err != nil {
		return err
	}
	if !t.IsTopLevel() {
		return invalidf(ErrNotTopLevel, "size", "only top-level tasks can have a size")
	}
	v := string(sz)
	t.Size = &v
	return nil
}

// ClearSize removes the size from a task.
func ClearSize(t *models.Task) {
	t.Size = nil
}

// SetStoryPoints assigns story points to a subtask.
//
// The first assignment also records the initial estimate. Later assignments
// bump StoryPointsChangeCount only when the value actually changes.
func SetStoryPoints(t *models.Task, value int) error {
	if !IsFibonacci(value) {
		return invalidf(ErrNotFibonacci, "current_story_points", "%d is not in the Fibonacci sequence", value)
	}
	if t.IsTopLevel() {
		return invalidf(ErrTopLevelCannotHavePoints, "current_story_points", "top-level tasks use sizes, not story points")
	}
	if t.InitialStoryPoints == nil {
		initial := value
		t.InitialStoryPoints = &initial
	}
	if t.CurrentStoryPoints != nil && *t.CurrentStoryPoints != value {
		t.StoryPointsChangeCount++
	}
	current := value
	t.CurrentStoryPoints = &current
	return nil
}

// ClearStoryPoints removes the current estimate. The initial estimate and the
// change count are history and stay as they are.
func ClearStoryPoints(t *models.Task) {
	t.CurrentStoryPoints = nil
}

// CheckPointsCap fails when points meet or exceed the cap for size.
// An absent size imposes no cap.
func CheckPointsCap(size string, points int) error {
	limit, ok := MaxStoryPointsForSize(size)
	if !ok || points < limit {
		return nil
	}
	return invalidf(ErrExceedsCap, "current_story_points",
		"%d story points exceeds the maximum of %d for a %s task", points, limit-1, size)
}
