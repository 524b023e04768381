package editor

import "testing"

func testState(n int) State {
	s := State{Width: 800, Height: 600, Name: "test"}
	for i := 0; i < n; i++ {
		s.Elements = append(s.Elements, Element{
			ID:     string(rune('a' + i)),
			Type:   ElementShape,
			X:      float64(i * 10),
			Y:      float64(i * 10),
			Width:  100,
			Height: 80,
			ZIndex: 99, // deliberately wrong, Normalize must fix
		})
	}
	return s
}

func TestNormalizeRenumbersZIndex(t *testing.T) {
	s := testState(5)
	Normalize(&s)
	for i, el := range s.Elements {
		if el.ZIndex != i {
			t.Fatalf("element %d: zIndex = %d, want %d", i, el.ZIndex, i)
		}
	}
}

func TestNormalizeClampsPosition(t *testing.T) {
	s := State{Width: 800, Height: 600}
	s.Elements = []Element{
		{ID: "a", X: -50, Y: -10, Width: 100, Height: 100},
		{ID: "b", X: 790, Y: 590, Width: 100, Height: 100},
	}
	Normalize(&s)

	if s.Elements[0].X != 0 || s.Elements[0].Y != 0 {
		t.Fatalf("negative position not clamped to origin: (%v, %v)", s.Elements[0].X, s.Elements[0].Y)
	}
	if got := s.Elements[1].X; got != 800-100 {
		t.Fatalf("x = %v, want %v", got, 800-100)
	}
	if got := s.Elements[1].Y; got != 600-100 {
		t.Fatalf("y = %v, want %v", got, 600-100)
	}
}

func TestNormalizeEnforcesMinimumSize(t *testing.T) {
	s := State{Width: 800, Height: 600}
	s.Elements = []Element{{ID: "a", Width: 3, Height: 0}}
	Normalize(&s)

	if s.Elements[0].Width != MinElementSize || s.Elements[0].Height != MinElementSize {
		t.Fatalf("size = %vx%v, want %dx%d",
			s.Elements[0].Width, s.Elements[0].Height, MinElementSize, MinElementSize)
	}
}

func TestNormalizeElementLargerThanCanvas(t *testing.T) {
	s := State{Width: 100, Height: 100}
	s.Elements = []Element{{ID: "a", X: 40, Y: 40, Width: 300, Height: 300}}
	Normalize(&s)

	// Canvas smaller than element: pin to origin instead of going negative.
	if s.Elements[0].X != 0 || s.Elements[0].Y != 0 {
		t.Fatalf("oversized element not pinned: (%v, %v)", s.Elements[0].X, s.Elements[0].Y)
	}
}
