package trainer

// Linear interpolates from start to end over total steps; step is 1-based and the
// progress fraction is clamped to [0, 1].
func Linear(start, end float64, step, total int) float64 {
	if total <= 1 {
		return end
	}

	t := float64(step-1) / float64(total-1)
	t = min(1, max(0, t))

	return start + (end-start)*t
}
