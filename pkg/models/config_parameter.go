package models

import "time"

// ConfigParameter is one row of a temporally-versioned scalar parameter.
// Multiple rows per key form a timeline; exactly one row must be valid for
// any given key at any instant (valid_from <= t < valid_to, nil valid_to is
// open-ended).
type ConfigParameter struct {
	Key         string
	Value       string
	ValidFrom   time.Time
	ValidTo     *time.Time
	Description string
}

// Covers reports whether this row's validity window contains the instant.
func (p *ConfigParameter) Covers(asOf time.Time) bool {
	if asOf.Before(p.ValidFrom) {
		return false
	}
	return p.ValidTo == nil || asOf.Before(*p.ValidTo)
}

// Overlaps reports whether two windows for the same key intersect.
func (p *ConfigParameter) Overlaps(other *ConfigParameter) bool {
	// Open-ended windows extend to infinity.
	pEnds := p.ValidTo != nil
	oEnds := other.ValidTo != nil
	if !pEnds && !oEnds {
		return true
	}
	if !pEnds {
		return other.ValidTo.After(p.ValidFrom)
	}
	if !oEnds {
		return p.ValidTo.After(other.ValidFrom)
	}
	return p.ValidFrom.Before(*other.ValidTo) && other.ValidFrom.Before(*p.ValidTo)
}
