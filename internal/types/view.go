package types

// State is the effective presentation of one Section or Input after
// evaluation.
type State struct {
	Hidden      bool           `json:"hidden"`
	Disabled    bool           `json:"disabled"`
	Hint        string         `json:"hint,omitempty"`
	Warning     string         `json:"warning,omitempty"`
	Error       string         `json:"error,omitempty"`
	CustomProps map[string]any `json:"customProps,omitempty"`
}

// FormView is the Resolved Form View: the spec tree annotated with the
// effective state of every node for one data snapshot. A FormView is
// regenerated wholesale on every evaluation and never patched in place.
type FormView struct {
	Title       string        `json:"title,omitempty"`
	Description string        `json:"description,omitempty"`
	Hint        string        `json:"hint,omitempty"`
	Warning     string        `json:"warning,omitempty"`
	Error       string        `json:"error,omitempty"`
	Sections    []SectionView `json:"sections"`
}

// SectionView is the resolved state of a Section and its inputs.
type SectionView struct {
	Name        string `json:"name,omitempty"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	State
	Inputs []InputView `json:"inputs"`
}

// InputView is the resolved state of an Input.
type InputView struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label"`
	State
}

// Section returns the first section view named name.
func (v *FormView) Section(name string) (*SectionView, bool) {
	for i := range v.Sections {
		if v.Sections[i].Name == name {
			return &v.Sections[i], true
		}
	}
	return nil, false
}

// Input returns the first input view named name, searching sections in
// declaration order.
func (v *FormView) Input(name string) (*InputView, bool) {
	for i := range v.Sections {
		for j := range v.Sections[i].Inputs {
			if v.Sections[i].Inputs[j].Name == name {
				return &v.Sections[i].Inputs[j], true
			}
		}
	}
	return nil, false
}

// HasErrors reports whether the form or any visible node carries an error
// message. Hidden nodes cannot block submission.
func (v *FormView) HasErrors() bool {
	if v.Error != "" {
		return true
	}
	for _, s := range v.Sections {
		if s.Hidden {
			continue
		}
		if s.Error != "" {
			return true
		}
		for _, in := range s.Inputs {
			if !in.Hidden && in.Error != "" {
				return true
			}
		}
	}
	return false
}
