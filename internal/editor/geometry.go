package editor

// MinElementSize keeps resize handles usable.
const MinElementSize = 24

// Normalize restores the geometry invariants after a mutation:
// dense contiguous zIndex values in array order, minimum element size,
// and positions clamped inside the canvas.
func Normalize(s *State) {
	for i := range s.Elements {
		el := &s.Elements[i]
		el.ZIndex = i

		if el.Width < MinElementSize {
			el.Width = MinElementSize
		}
		if el.Height < MinElementSize {
			el.Height = MinElementSize
		}

		el.X = clamp(el.X, 0, s.Width-el.Width)
		el.Y = clamp(el.Y, 0, s.Height-el.Height)
	}
}

// clamp keeps v within [lo, hi]. When the canvas is smaller than the
// element hi goes negative; pin to lo.
func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
