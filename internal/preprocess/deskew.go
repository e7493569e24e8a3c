package preprocess

import (
	"image"
	"image/color"
	"math"

	"gocv.io/x/gocv"
)

const (
	skewRange = 4.0
	skewStep  = 0.2
	// Angles below this are treated as noise and never rotated
	skewFloor = 0.3
)

var (
	black = color.RGBA{0, 0, 0, 0}
	white = color.RGBA{255, 255, 255, 0}
)

// Deskew removes a small residual rotation left over after rectification.
// An image whose best angle is within the noise floor comes back as an
// identical copy.
func Deskew(gray gocv.Mat) gocv.Mat {
	if gray.Empty() {
		return gray.Clone()
	}
	angle := EstimateSkew(gray)
	if math.Abs(angle) < skewFloor {
		return gray.Clone()
	}
	return rotateBound(gray, angle, white)
}

// EstimateSkew sweeps candidate angles and returns the one whose rotated ink
// mask has the highest row-projection variance. Ties keep the first angle.
func EstimateSkew(gray gocv.Mat) float64 {
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.Threshold(gray, &mask, 0, 255, gocv.ThresholdBinaryInv|gocv.ThresholdOtsu)
	morph(&mask, gocv.MorphOpen, 3)

	best, bestScore := 0.0, -1.0
	for _, angle := range skewAngles() {
		rotated := rotateBound(mask, angle, black)
		score := projectionVariance(rotated.ToBytes(), rotated.Rows(), rotated.Cols())
		rotated.Close()
		if score > bestScore {
			best, bestScore = angle, score
		}
	}
	return best
}

// skewAngles lists -4.0, -3.8, ... 3.8
func skewAngles() []float64 {
	n := int(math.Round(2 * skewRange / skewStep))
	angles := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		angles = append(angles, math.Round((-skewRange+float64(i)*skewStep)*10)/10)
	}
	return angles
}

// rotateBound rotates around the center and grows the canvas so no corner
// is clipped. Uncovered pixels are filled with fill.
func rotateBound(src gocv.Mat, angle float64, fill color.RGBA) gocv.Mat {
	w, h := src.Cols(), src.Rows()
	center := image.Pt(w/2, h/2)

	m := gocv.GetRotationMatrix2D(center, angle, 1.0)
	defer m.Close()

	cos := math.Abs(m.GetDoubleAt(0, 0))
	sin := math.Abs(m.GetDoubleAt(0, 1))
	newW := int(float64(h)*sin + float64(w)*cos)
	newH := int(float64(h)*cos + float64(w)*sin)

	m.SetDoubleAt(0, 2, m.GetDoubleAt(0, 2)+float64(newW)/2-float64(center.X))
	m.SetDoubleAt(1, 2, m.GetDoubleAt(1, 2)+float64(newH)/2-float64(center.Y))

	dst := gocv.NewMat()
	gocv.WarpAffineWithParams(src, &dst, m, image.Pt(newW, newH),
		gocv.InterpolationLinear, gocv.BorderConstant, fill)
	return dst
}
