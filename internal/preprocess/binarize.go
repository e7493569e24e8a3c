package preprocess

import (
	"image"

	"gocv.io/x/gocv"
)

const (
	adaptiveBlockSize = 25
	adaptiveOffset    = 15
)

// BinarizeForOCR boosts local contrast and applies an adaptive Gaussian
// threshold tuned for thermal receipt print.
func BinarizeForOCR(gray gocv.Mat) gocv.Mat {
	if gray.Empty() {
		return gray.Clone()
	}

	clahe := gocv.NewCLAHEWithParams(3.0, image.Pt(8, 8))
	defer clahe.Close()

	enhanced := gocv.NewMat()
	defer enhanced.Close()
	clahe.Apply(gray, &enhanced)

	out := gocv.NewMat()
	gocv.AdaptiveThreshold(enhanced, &out, 255, gocv.AdaptiveThresholdGaussian,
		gocv.ThresholdBinary, adaptiveBlockSize, adaptiveOffset)
	return out
}
