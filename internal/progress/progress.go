// Package progress computes and renders backlog completion.
package progress

// Percent returns the completion ratio as a whole number from 0 to
// 100, rounding down. A backlog with no items reports 0.
func Percent(done, total int) int {
	if total <= 0 {
		return 0
	}
	return done * 100 / total
}
