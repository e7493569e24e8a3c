package preprocess

import (
	"image"
	"math"

	"gocv.io/x/gocv"
)

const (
	// Minimum share of the photo the rotated rectangle must cover before we trust it
	minPaperAreaRatio = 0.08
	// Safety margin around the detected paper, relative to its centroid
	paperExpand = 0.10
	// Padding around the trimmed content, relative to its longer side
	trimPad = 0.02
)

// Rectify locates the receipt paper in a grayscale photo and warps it to a
// straight top-down rectangle. The returned Mat is always owned by the caller.
// When no paper boundary can be found, a copy of the input is returned with
// ok=false so later stages keep working on the unrectified image.
func Rectify(gray gocv.Mat) (gocv.Mat, bool) {
	if gray.Empty() {
		return gray.Clone(), false
	}
	mask := paperMask(gray)
	defer mask.Close()
	return rectifyWithMask(gray, mask)
}

// rectifyWithMask warps gray to the largest white region of mask
func rectifyWithMask(gray, mask gocv.Mat) (gocv.Mat, bool) {
	width, height := gray.Cols(), gray.Rows()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return gray.Clone(), false
	}

	paper := contours.At(largestContour(contours))
	quad := paperQuad(paper, width, height).
		Expand(paperExpand).
		Clip(width, height).
		Ordered()

	outW, outH := quad.Size()
	if outW < 1 || outH < 1 {
		return gray.Clone(), false
	}

	warped := warpQuad(gray, quad, outW, outH)
	defer warped.Close()
	if warped.Empty() {
		return gray.Clone(), false
	}

	return trimToContent(warped), true
}

// paperMask produces a binary mask where the paper is the bright class and
// the printed text has been merged into one connected region.
func paperMask(gray gocv.Mat) gocv.Mat {
	clahe := gocv.NewCLAHEWithParams(2.0, image.Pt(8, 8))
	defer clahe.Close()

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)
	gocv.GaussianBlur(enhanced, &enhanced, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	mask := otsuMask(enhanced)
	morph(&mask, gocv.MorphClose, 15)
	morph(&mask, gocv.MorphOpen, 5)
	return mask
}

// otsuMask thresholds with Otsu and inverts when the result is mostly dark,
// so the paper always ends up white.
func otsuMask(src gocv.Mat) gocv.Mat {
	mask := gocv.NewMat()
	gocv.Threshold(src, &mask, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	if mask.Mean().Val1 < 127 {
		gocv.BitwiseNot(mask, &mask)
	}
	return mask
}

func morph(m *gocv.Mat, op gocv.MorphType, size int) {
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(size, size))
	defer kernel.Close()
	gocv.MorphologyEx(*m, m, op, kernel)
}

func largestContour(contours gocv.PointsVector) int {
	best, bestArea := 0, -1.0
	for i := 0; i < contours.Size(); i++ {
		if area := gocv.ContourArea(contours.At(i)); area > bestArea {
			best, bestArea = i, area
		}
	}
	return best
}

// paperQuad returns the minimum-area rotated rectangle around the contour,
// or its axis-aligned bounding box when the rectangle is implausibly small
// (a shadow or a crumb rather than the receipt).
func paperQuad(contour gocv.PointVector, width, height int) Quad {
	rect := gocv.MinAreaRect(contour)
	area := float64(rect.Width) * float64(rect.Height)
	if area < minPaperAreaRatio*float64(width*height) || len(rect.Points) != 4 {
		return quadFromRect(gocv.BoundingRect(contour))
	}
	return quadFromPoints(rect.Points)
}

func warpQuad(gray gocv.Mat, q Quad, width, height int) gocv.Mat {
	src := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: float32(q[0].X), Y: float32(q[0].Y)},
		{X: float32(q[1].X), Y: float32(q[1].Y)},
		{X: float32(q[2].X), Y: float32(q[2].Y)},
		{X: float32(q[3].X), Y: float32(q[3].Y)},
	})
	defer src.Close()
	dst := gocv.NewPoint2fVectorFromPoints([]gocv.Point2f{
		{X: 0, Y: 0},
		{X: float32(width - 1), Y: 0},
		{X: float32(width - 1), Y: float32(height - 1)},
		{X: 0, Y: float32(height - 1)},
	})
	defer dst.Close()

	transform := gocv.GetPerspectiveTransform2f(src, dst)
	defer transform.Close()

	warped := gocv.NewMat()
	gocv.WarpPerspective(gray, &warped, transform, image.Pt(width, height))
	return warped
}

// trimToContent crops the warped image to the bounding box of its largest
// bright region plus a small pad. It never returns an empty image.
func trimToContent(warped gocv.Mat) gocv.Mat {
	mask := otsuMask(warped)
	defer mask.Close()

	contours := gocv.FindContours(mask, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()
	if contours.Size() == 0 {
		return warped.Clone()
	}

	box := gocv.BoundingRect(contours.At(largestContour(contours)))
	pad := int(math.Round(trimPad * float64(max(box.Dx(), box.Dy()))))
	box = padRect(box, pad, image.Rect(0, 0, warped.Cols(), warped.Rows()))
	if box.Empty() {
		return warped.Clone()
	}

	region := warped.Region(box)
	defer region.Close()
	return region.Clone()
}
