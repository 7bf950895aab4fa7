package letters

import "math"

func dist(a, b Point) float64 {
	dx, dy, dz := a.X-b.X, a.Y-b.Y, a.Z-b.Z
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// angle returns the angle at b formed by a-b-c, in degrees. Degenerate
// segments count as straight.
func angle(a, b, c Point) float64 {
	v1 := Point{a.X - b.X, a.Y - b.Y, a.Z - b.Z}
	v2 := Point{c.X - b.X, c.Y - b.Y, c.Z - b.Z}
	n1 := math.Sqrt(v1.X*v1.X + v1.Y*v1.Y + v1.Z*v1.Z)
	n2 := math.Sqrt(v2.X*v2.X + v2.Y*v2.Y + v2.Z*v2.Z)
	if n1 < 1e-8 || n2 < 1e-8 {
		return 180
	}
	cos := (v1.X*v2.X + v1.Y*v2.Y + v1.Z*v2.Z) / (n1 * n2)
	cos = max(-1, min(1, cos))
	return math.Acos(cos) * 180 / math.Pi
}

// palmNormalZ is the z component of (indexMCP-wrist) x (pinkyMCP-wrist).
// It is positive when the palm of a right hand faces the camera.
func palmNormalZ(l Landmarks) float64 {
	w := l[Wrist]
	ix, iy := l[IndexMCP].X-w.X, l[IndexMCP].Y-w.Y
	px, py := l[PinkyMCP].X-w.X, l[PinkyMCP].Y-w.Y
	return ix*py - iy*px
}

func palmWidth(l Landmarks) float64 {
	return dist(l[IndexMCP], l[PinkyMCP])
}
