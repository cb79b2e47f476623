package alpine

import "strconv"

// Priority determines listener execution order for a single post.
// Lower values execute first. Listeners with equal priority execute in the
// order they were subscribed.
type Priority int

const (
	// PriorityHighest runs before every other named level.
	PriorityHighest Priority = -200

	// PriorityHigh runs before default listeners.
	PriorityHigh Priority = -100

	// PriorityDefault is used when no priority is given.
	PriorityDefault Priority = 0

	// PriorityLow runs after default listeners.
	PriorityLow Priority = 100

	// PriorityLowest runs after every other named level.
	PriorityLowest Priority = 200
)

// String returns the name of a named level, or the number otherwise.
func (p Priority) String() string {
	switch p {
	case PriorityHighest:
		return "highest"
	case PriorityHigh:
		return "high"
	case PriorityDefault:
		return "default"
	case PriorityLow:
		return "low"
	case PriorityLowest:
		return "lowest"
	default:
		return strconv.Itoa(int(p))
	}
}
