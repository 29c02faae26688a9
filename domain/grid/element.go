// Package grid holds the three-tier hierarchy of captured insights: Dots are
// atomic insights, Wheels group Dots into tactical goals, Chakras group
// Wheels (and optionally Dots directly) into long-term purposes.
package grid

import "time"

// ElementType identifies one of the three entity kinds on the map.
type ElementType string

const (
	ElementDot    ElementType = "dot"
	ElementWheel  ElementType = "wheel"
	ElementChakra ElementType = "chakra"
)

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	switch t {
	case ElementDot, ElementWheel, ElementChakra:
		return true
	}
	return false
}

// Footprint radii. Dots render as fixed-size points; wheels and chakras carry
// an explicit radius and fall back to these defaults when unset.
const (
	DotRadius           = 35.0
	DefaultWheelRadius  = 120.0
	DefaultChakraRadius = 420.0
)

// Dot is an atomic captured insight, the leaf entity. A Dot may belong to one
// Wheel or directly to one Chakra; the two links are mutually exclusive.
type Dot struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	OneWordSummary string    `json:"oneWordSummary"`
	Summary        string    `json:"summary"`
	Anchor         string    `json:"anchor"`
	Pulse          string    `json:"pulse"`
	SourceType     string    `json:"sourceType"`
	CaptureMode    string    `json:"captureMode"`
	WheelID        *string   `json:"wheelId"`
	ChakraID       *string   `json:"chakraId"`
	PositionX      *float64  `json:"positionX"`
	PositionY      *float64  `json:"positionY"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Mapped reports whether the dot carries any parent link.
func (d *Dot) Mapped() bool {
	return d.WheelID != nil || d.ChakraID != nil
}

// Footprint returns the dot's placed footprint, or false if it has no
// position yet.
func (d *Dot) Footprint() (Footprint, bool) {
	if d.PositionX == nil || d.PositionY == nil {
		return Footprint{}, false
	}
	return Footprint{X: *d.PositionX, Y: *d.PositionY, Radius: DotRadius}, true
}

// SetPosition places the dot at the given coordinates.
func (d *Dot) SetPosition(x, y float64) {
	d.PositionX = &x
	d.PositionY = &y
}

// Wheel is a mid-level grouping of Dots representing a tactical goal.
type Wheel struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Heading    string    `json:"heading"`
	Goals      string    `json:"goals"`
	Timeline   string    `json:"timeline"`
	Category   string    `json:"category,omitempty"`
	Color      string    `json:"color"`
	SourceType string    `json:"sourceType"`
	ChakraID   *string   `json:"chakraId"`
	PositionX  *float64  `json:"positionX"`
	PositionY  *float64  `json:"positionY"`
	Radius     float64   `json:"radius"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// Dots is hydrated on request by list operations, never persisted.
	Dots []*Dot `json:"dots,omitempty"`
}

// Mapped reports whether the wheel belongs to a chakra.
func (w *Wheel) Mapped() bool {
	return w.ChakraID != nil
}

// EffectiveRadius returns the stored radius or the default when unset.
func (w *Wheel) EffectiveRadius() float64 {
	if w.Radius > 0 {
		return w.Radius
	}
	return DefaultWheelRadius
}

// Footprint returns the wheel's placed footprint, or false if it has no
// position yet.
func (w *Wheel) Footprint() (Footprint, bool) {
	if w.PositionX == nil || w.PositionY == nil {
		return Footprint{}, false
	}
	return Footprint{X: *w.PositionX, Y: *w.PositionY, Radius: w.EffectiveRadius()}, true
}

// SetPosition places the wheel at the given coordinates.
func (w *Wheel) SetPosition(x, y float64) {
	w.PositionX = &x
	w.PositionY = &y
}

// Chakra is the root container representing a long-term purpose.
type Chakra struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	Heading    string    `json:"heading"`
	Purpose    string    `json:"purpose"`
	Timeline   string    `json:"timeline"`
	Color      string    `json:"color"`
	SourceType string    `json:"sourceType"`
	PositionX  *float64  `json:"positionX"`
	PositionY  *float64  `json:"positionY"`
	Radius     float64   `json:"radius"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`

	// Wheels and Dots are hydrated on request by list operations.
	Wheels []*Wheel `json:"wheels,omitempty"`
	Dots   []*Dot   `json:"dots,omitempty"`
}

// EffectiveRadius returns the stored radius or the default when unset.
func (c *Chakra) EffectiveRadius() float64 {
	if c.Radius > 0 {
		return c.Radius
	}
	return DefaultChakraRadius
}

// Footprint returns the chakra's placed footprint, or false if it has no
// position yet.
func (c *Chakra) Footprint() (Footprint, bool) {
	if c.PositionX == nil || c.PositionY == nil {
		return Footprint{}, false
	}
	return Footprint{X: *c.PositionX, Y: *c.PositionY, Radius: c.EffectiveRadius()}, true
}

// SetPosition places the chakra at the given coordinates.
func (c *Chakra) SetPosition(x, y float64) {
	c.PositionX = &x
	c.PositionY = &y
}
