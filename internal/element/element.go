// Package element defines the elemental affinities shared by heroes and barriers.
package element

import (
	"fmt"
	"strings"
)

// Element is an elemental affinity.
type Element string

const (
	None  Element = ""
	Fire  Element = "fire"
	Water Element = "water"
	Air   Element = "air"
	Earth Element = "earth"
	Light Element = "light"
	Dark  Element = "dark"
)

// All returns every concrete element in a stable order.
func All() []Element {
	return []Element{Fire, Water, Air, Earth, Light, Dark}
}

// Parse converts a case-insensitive name to an Element.
// An empty string or "none" yields None.
func Parse(s string) (Element, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "" || name == "none" {
		return None, nil
	}
	for _, e := range All() {
		if string(e) == name {
			return e, nil
		}
	}
	return None, fmt.Errorf("unknown element %q", s)
}
