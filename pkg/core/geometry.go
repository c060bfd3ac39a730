package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Point is a pixel coordinate on a display surface
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Size is a width/height pair in pixels
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Bounds represents an element's rectangle as absolute edges, matching the
// "left,top,right,bottom" bounds attribute carried on hierarchy nodes.
type Bounds struct {
	Left   int `json:"left"`
	Top    int `json:"top"`
	Right  int `json:"right"`
	Bottom int `json:"bottom"`
}

// ParseBounds parses a comma-joined "L,T,R,B" attribute value.
func ParseBounds(s string) (Bounds, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return Bounds{}, fmt.Errorf("bounds %q: want 4 comma-separated integers", s)
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return Bounds{}, fmt.Errorf("bounds %q: %w", s, err)
		}
		vals[i] = v
	}
	return Bounds{Left: vals[0], Top: vals[1], Right: vals[2], Bottom: vals[3]}, nil
}

// Width returns the horizontal extent of the bounds
func (b Bounds) Width() int {
	return b.Right - b.Left
}

// Height returns the vertical extent of the bounds
func (b Bounds) Height() int {
	return b.Bottom - b.Top
}

// Size returns the bounds' width and height
func (b Bounds) Size() Size {
	return Size{Width: b.Width(), Height: b.Height()}
}

// Center returns the center point of the bounds
func (b Bounds) Center() Point {
	return Point{X: b.Left + b.Width()/2, Y: b.Top + b.Height()/2}
}

// Contains checks if a point is within the bounds
func (b Bounds) Contains(x, y int) bool {
	return x >= b.Left && x < b.Right && y >= b.Top && y < b.Bottom
}

// Empty reports whether the bounds enclose no area
func (b Bounds) Empty() bool {
	return b.Right <= b.Left || b.Bottom <= b.Top
}

// String renders the bounds in the same comma-joined form they are parsed from
func (b Bounds) String() string {
	return fmt.Sprintf("%d,%d,%d,%d", b.Left, b.Top, b.Right, b.Bottom)
}
