package resource

import "math"

// BrightnessToPercentage converts an absolute 0..255 brightness to the
// vendor's 0..100 dim level.
func BrightnessToPercentage(b int) int {
	return clamp(int(math.Round(float64(b)*100/255)), 0, 100)
}

// BrightnessFromPercentage converts a 0..100 dim level to 0..255.
func BrightnessFromPercentage(p int) int {
	return clamp(int(math.Round(float64(p)*255/100)), 0, 255)
}

// InvertPosition maps between the vendor cover position (0 open, 100 closed)
// and the consumer convention (100 open, 0 closed). It is its own inverse.
func InvertPosition(x int) int {
	return 100 - clamp(x, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
