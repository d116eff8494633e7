package types

// AddOn is a flat-priced customization surcharge, independent of quantity
// and design area.
type AddOn struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
}

// Design is a customer-supplied artwork attached to a customized line item.
// Dimensions drive the area-based material surcharge; a design without both
// dimensions contributes no surcharge.
type Design struct {
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name,omitempty"`
	PreviewB64 string   `json:"preview_b64,omitempty"`
	WidthIn    *float64 `json:"width_in,omitempty"`
	HeightIn   *float64 `json:"height_in,omitempty"`
}

// HasDimensions reports whether both width and height are present.
func (d Design) HasDimensions() bool {
	return d.WidthIn != nil && d.HeightIn != nil
}

// StyleSelections holds the optional single-choice styles plus the open-ended
// thread and upgrade lists.
type StyleSelections struct {
	Coverage *AddOn  `json:"coverage,omitempty"`
	Material *AddOn  `json:"material,omitempty"`
	Border   *AddOn  `json:"border,omitempty"`
	Backing  *AddOn  `json:"backing,omitempty"`
	Cutting  *AddOn  `json:"cutting,omitempty"`
	Threads  []AddOn `json:"threads,omitempty"`
	Upgrades []AddOn `json:"upgrades,omitempty"`
}

// FlatAddOns returns every selected flat surcharge in a stable order.
func (s StyleSelections) FlatAddOns() []AddOn {
	var out []AddOn
	for _, single := range []*AddOn{s.Coverage, s.Material, s.Border, s.Backing, s.Cutting} {
		if single != nil {
			out = append(out, *single)
		}
	}
	out = append(out, s.Threads...)
	out = append(out, s.Upgrades...)
	return out
}

// Customization bundles the design and style selections of a made-to-order
// line item. Both the multi-design shape and the legacy single-design shape
// are accepted on the wire; AllDesigns normalizes them.
type Customization struct {
	Designs []Design `json:"designs,omitempty"`
	// Design is the legacy single-design payload still sent by older
	// storefront builds.
	Design *Design `json:"design,omitempty"`

	Styles StyleSelections `json:"selected_styles"`

	Placement      string  `json:"placement,omitempty"`
	Size           string  `json:"size,omitempty"`
	Color          string  `json:"color,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	DesignPosition string  `json:"design_position,omitempty"`
	DesignScale    float64 `json:"design_scale,omitempty"`
	DesignRotation float64 `json:"design_rotation,omitempty"`
}

// AllDesigns returns the design list, folding the legacy single-design shape
// into the one-design case.
func (c *Customization) AllDesigns() []Design {
	if c == nil {
		return nil
	}
	if len(c.Designs) > 0 {
		return c.Designs
	}
	if c.Design != nil {
		return []Design{*c.Design}
	}
	return nil
}
