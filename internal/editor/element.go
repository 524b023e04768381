package editor

// ElementType 요소 종류
type ElementType string

const (
	ElementText  ElementType = "text"
	ElementImage ElementType = "image"
	ElementShape ElementType = "shape"
)

// Element is one absolutely-positioned item on the canvas.
// ZIndex is dense and contiguous (0..n-1) in render order; Normalize
// renumbers after every structural change.
type Element struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Type     ElementType `json:"type"`
	X        float64     `json:"x"`
	Y        float64     `json:"y"`
	Width    float64     `json:"width"`
	Height   float64     `json:"height"`
	Rotation float64     `json:"rotation,omitempty"`
	Opacity  float64     `json:"opacity,omitempty"`
	ZIndex   int         `json:"zIndex"`
	Hidden   bool        `json:"hidden,omitempty"`

	// text
	Text       string  `json:"text,omitempty"`
	FontSize   float64 `json:"fontSize,omitempty"`
	FontFamily string  `json:"fontFamily,omitempty"`
	Color      string  `json:"color,omitempty"`

	// image
	Src string `json:"src,omitempty"`

	// shape
	Shape        string  `json:"shape,omitempty"` // rect, ellipse, line
	Fill         string  `json:"fill,omitempty"`
	Stroke       string  `json:"stroke,omitempty"`
	StrokeWidth  float64 `json:"strokeWidth,omitempty"`
	CornerRadius float64 `json:"cornerRadius,omitempty"`
}

// State is the working copy of one open design: everything the editor
// mutates locally and everything that travels inside a patch.
type State struct {
	Elements          []Element `json:"elements"`
	Width             float64   `json:"width"`
	Height            float64   `json:"height"`
	Name              string    `json:"name"`
	IsPublic          bool      `json:"isPublic"`
	SelectedElementID string    `json:"selectedElementId,omitempty"`
}

// Clone deep-copies the state so history snapshots cannot alias the live
// element slice.
func (s State) Clone() State {
	out := s
	out.Elements = make([]Element, len(s.Elements))
	copy(out.Elements, s.Elements)
	return out
}

func (s *State) findElement(id string) *Element {
	for i := range s.Elements {
		if s.Elements[i].ID == id {
			return &s.Elements[i]
		}
	}
	return nil
}
