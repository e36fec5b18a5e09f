package input

// Easing maps a time fraction in [0,1] to a progress fraction in [0,1].
type Easing func(t float64) float64

func Linear(t float64) float64 {
	return clamp01(t)
}

func EaseInQuad(t float64) float64 {
	t = clamp01(t)
	return t * t
}

func EaseOutQuad(t float64) float64 {
	t = clamp01(t)
	return t * (2 - t)
}

func EaseInOutQuad(t float64) float64 {
	t = clamp01(t)
	if t < 0.5 {
		return 2 * t * t
	}
	return -1 + (4-2*t)*t
}

func clamp01(t float64) float64 {
	if t < 0 {
		return 0
	}
	if t > 1 {
		return 1
	}
	return t
}
