package schemas

// InteractiveElement holds the candidate locator attributes of one element
// found on the page.
type InteractiveElement struct {
	Tag         string   `json:"tag" yaml:"tag"`
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Classes     []string `json:"classes,omitempty" yaml:"classes,omitempty"`
	TestID      string   `json:"testId,omitempty" yaml:"testId,omitempty"`
	// TestIDAttr names the attribute TestID was read from; empty means data-testid.
	TestIDAttr  string   `json:"testIdAttr,omitempty" yaml:"testIdAttr,omitempty"`
	AriaLabel   string   `json:"ariaLabel,omitempty" yaml:"ariaLabel,omitempty"`
	Role        string   `json:"role,omitempty" yaml:"role,omitempty"`
	Name        string   `json:"name,omitempty" yaml:"name,omitempty"`
	Type        string   `json:"type,omitempty" yaml:"type,omitempty"`
	Placeholder string   `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Text        string   `json:"text,omitempty" yaml:"text,omitempty"`
	// Index is the 1-based position of the element among its same-tag siblings.
	Index       int      `json:"index" yaml:"index"`
}

// Form summarises a form element and the names of its fields.
type Form struct {
	ID     string   `json:"id,omitempty" yaml:"id,omitempty"`
	Action string   `json:"action,omitempty" yaml:"action,omitempty"`
	Method string   `json:"method,omitempty" yaml:"method,omitempty"`
	Fields []string `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// PageObservation is a point-in-time snapshot of a page. It carries no
// timestamps so identical pages produce identical observations.
type PageObservation struct {
	Title      string               `json:"title" yaml:"title"`
	URL        string               `json:"url" yaml:"url"`
	Elements   []InteractiveElement `json:"elements" yaml:"elements"`
	Forms      []Form               `json:"forms,omitempty" yaml:"forms,omitempty"`
	Errors     []string             `json:"errors,omitempty" yaml:"errors,omitempty"`
	Screenshot string               `json:"screenshot,omitempty" yaml:"screenshot,omitempty"`
}

// Clone returns a deep copy of the observation.
func (o PageObservation) Clone() PageObservation {
	out := o
	if o.Elements != nil {
		out.Elements = make([]InteractiveElement, len(o.Elements))
		for i, el := range o.Elements {
			el.Classes = append([]string(nil), el.Classes...)
			out.Elements[i] = el
		}
	}
	if o.Forms != nil {
		out.Forms = make([]Form, len(o.Forms))
		for i, f := range o.Forms {
			f.Fields = append([]string(nil), f.Fields...)
			out.Forms[i] = f
		}
	}
	out.Errors = append([]string(nil), o.Errors...)
	return out
}
