package model

import (
	"fmt"
	"image"
)

// Region is the rectangle of the camera frame covering one parking slot.
// X1,Y1 is the top-left corner and X2,Y2 the exclusive bottom-right corner.
type Region struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Valid reports whether the region has a positive area inside the first quadrant.
func (r Region) Valid() bool {
	return r.X1 >= 0 && r.Y1 >= 0 && r.X1 < r.X2 && r.Y1 < r.Y2
}

// Rect returns the region as an image.Rectangle.
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

// Area returns the pixel area, 0 for malformed regions.
func (r Region) Area() int {
	if !r.Valid() {
		return 0
	}
	return (r.X2 - r.X1) * (r.Y2 - r.Y1)
}

func (r Region) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

const (
	Free     = 0
	Occupied = 1
)

// Occupancy holds one 0/1 flag per configured region, in region order.
type Occupancy []int

// NewOccupancy returns an all-free vector for n slots.
func NewOccupancy(n int) Occupancy {
	return make(Occupancy, n)
}

// Clone returns an independent copy.
func (o Occupancy) Clone() Occupancy {
	if o == nil {
		return nil
	}
	c := make(Occupancy, len(o))
	copy(c, o)
	return c
}

// Equal reports whether both vectors hold the same flags in the same order.
func (o Occupancy) Equal(other Occupancy) bool {
	if len(o) != len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// FreeCount returns the number of unoccupied slots.
func (o Occupancy) FreeCount() int {
	n := 0
	for _, v := range o {
		if v == Free {
			n++
		}
	}
	return n
}
