package preprocess

import (
	"image"
	"math"
)

// Point is a sub-pixel image coordinate
type Point struct {
	X, Y float64
}

// Quad is a four-cornered region of an image. Once Ordered, the corners run
// top-left, top-right, bottom-right, bottom-left.
type Quad [4]Point

func quadFromPoints(pts []image.Point) Quad {
	var q Quad
	for i := 0; i < 4 && i < len(pts); i++ {
		q[i] = Point{X: float64(pts[i].X), Y: float64(pts[i].Y)}
	}
	return q
}

func quadFromRect(r image.Rectangle) Quad {
	return Quad{
		{X: float64(r.Min.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Min.Y)},
		{X: float64(r.Max.X), Y: float64(r.Max.Y)},
		{X: float64(r.Min.X), Y: float64(r.Max.Y)},
	}
}

// Centroid returns the mean of the four corners
func (q Quad) Centroid() Point {
	var c Point
	for _, p := range q {
		c.X += p.X
		c.Y += p.Y
	}
	return Point{X: c.X / 4, Y: c.Y / 4}
}

// Expand pushes every corner away from the centroid by the given fraction
func (q Quad) Expand(fraction float64) Quad {
	c := q.Centroid()
	var out Quad
	for i, p := range q {
		out[i] = Point{
			X: c.X + (p.X-c.X)*(1+fraction),
			Y: c.Y + (p.Y-c.Y)*(1+fraction),
		}
	}
	return out
}

// Clip clamps every corner into a width x height image
func (q Quad) Clip(width, height int) Quad {
	var out Quad
	for i, p := range q {
		out[i] = Point{
			X: math.Min(math.Max(p.X, 0), float64(width-1)),
			Y: math.Min(math.Max(p.Y, 0), float64(height-1)),
		}
	}
	return out
}

// Ordered sorts the corners deterministically: top-left has the smallest
// x+y, bottom-right the largest; top-right has the smallest y-x, bottom-left
// the largest.
func (q Quad) Ordered() Quad {
	tl, br, tr, bl := 0, 0, 0, 0
	for i, p := range q {
		sum, diff := p.X+p.Y, p.Y-p.X
		if sum < q[tl].X+q[tl].Y {
			tl = i
		}
		if sum > q[br].X+q[br].Y {
			br = i
		}
		if diff < q[tr].Y-q[tr].X {
			tr = i
		}
		if diff > q[bl].Y-q[bl].X {
			bl = i
		}
	}
	return Quad{q[tl], q[tr], q[br], q[bl]}
}

// Size returns the output rectangle for a perspective warp of an ordered quad:
// the longer of each opposite side pair, so nothing is stretched past its
// true extent.
func (q Quad) Size() (width, height int) {
	top := distance(q[0], q[1])
	bottom := distance(q[3], q[2])
	left := distance(q[0], q[3])
	right := distance(q[1], q[2])
	return int(math.Round(math.Max(top, bottom))), int(math.Round(math.Max(left, right)))
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

// padRect grows r by pad on every side and clips it to bounds
func padRect(r image.Rectangle, pad int, bounds image.Rectangle) image.Rectangle {
	return image.Rect(r.Min.X-pad, r.Min.Y-pad, r.Max.X+pad, r.Max.Y+pad).Intersect(bounds)
}

// projectionVariance is the variance of the per-row ink counts of a binary
// mask laid out row-major. Text lines aligned with the rows give sharp peaks
// and therefore a high variance.
func projectionVariance(data []byte, rows, cols int) float64 {
	if rows == 0 || cols == 0 || len(data) < rows*cols {
		return 0
	}
	sums := make([]float64, rows)
	var mean float64
	for y := 0; y < rows; y++ {
		row := data[y*cols : (y+1)*cols]
		var n float64
		for _, v := range row {
			if v != 0 {
				n++
			}
		}
		sums[y] = n
		mean += n
	}
	mean /= float64(rows)

	var variance float64
	for _, s := range sums {
		variance += (s - mean) * (s - mean)
	}
	return variance / float64(rows)
}
