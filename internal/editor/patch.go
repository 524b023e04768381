package editor

// Patch is a sparse partial update to working document state. Only the
// fields present travel over the wire; the relay never inspects them.
type Patch struct {
	Elements          *[]Element `json:"elements,omitempty"`
	SelectedElementID *string    `json:"selectedElementId,omitempty"`
	Width             *float64   `json:"width,omitempty"`
	Height            *float64   `json:"height,omitempty"`
	Name              *string    `json:"name,omitempty"`
	IsPublic          *bool      `json:"isPublic,omitempty"`
}

// Merge applies only the fields present in the patch onto the state.
// It is a partial merge, never a full overwrite.
func (s *State) Merge(p Patch) {
	if p.Elements != nil {
		s.Elements = make([]Element, len(*p.Elements))
		copy(s.Elements, *p.Elements)
	}
	if p.SelectedElementID != nil {
		s.SelectedElementID = *p.SelectedElementID
	}
	if p.Width != nil {
		s.Width = *p.Width
	}
	if p.Height != nil {
		s.Height = *p.Height
	}
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.IsPublic != nil {
		s.IsPublic = *p.IsPublic
	}
}

func elementsPatch(s *State) Patch {
	els := make([]Element, len(s.Elements))
	copy(els, s.Elements)
	return Patch{Elements: &els}
}
