package detection

import (
	"image"

	"gocv.io/x/gocv"

	"parkingserver/internal/model"
)

const (
	// LuminanceCutoff is the default binarization threshold on a 0-255 scale.
	LuminanceCutoff = 100
	// FilledThreshold is the default fill ratio above which a slot is occupied.
	FilledThreshold = 0.4
)

// Classifier maps a frame to an occupancy vector for a fixed list of regions.
type Classifier struct {
	Regions         []model.Region
	Cutoff          float32
	FilledThreshold float64
}

// NewClassifier creates a classifier with the default luminance cutoff.
func NewClassifier(regions []model.Region, filledThreshold float64) *Classifier {
	return &Classifier{
		Regions:         regions,
		Cutoff:          LuminanceCutoff,
		FilledThreshold: filledThreshold,
	}
}

// Classify evaluates regions against frame with the default luminance cutoff.
func Classify(frame gocv.Mat, regions []model.Region, threshold float64) model.Occupancy {
	return NewClassifier(regions, threshold).Classify(frame)
}

// Classify returns one flag per region, in region order. It never fails:
// regions that fall outside the frame or have no area are reported free.
func (c *Classifier) Classify(frame gocv.Mat) model.Occupancy {
	occ := model.NewOccupancy(len(c.Regions))
	if frame.Empty() {
		return occ
	}

	mask, err := c.binarize(frame)
	if err != nil {
		return occ
	}
	defer mask.Close()

	bounds := image.Rect(0, 0, mask.Cols(), mask.Rows())
	for i, region := range c.Regions {
		if c.filledRatio(mask, bounds, region) > c.FilledThreshold {
			occ[i] = model.Occupied
		}
	}
	return occ
}

// binarize converts frame to a single channel and thresholds it.
func (c *Classifier) binarize(frame gocv.Mat) (gocv.Mat, error) {
	gray := frame
	if code, ok := grayConversion(frame.Channels()); ok {
		gray = gocv.NewMat()
		defer gray.Close()
		if err := gocv.CvtColor(frame, &gray, code); err != nil {
			return gocv.Mat{}, err
		}
	}

	mask := gocv.NewMat()
	gocv.Threshold(gray, &mask, c.Cutoff, 255, gocv.ThresholdBinary)
	return mask, nil
}

func grayConversion(channels int) (gocv.ColorConversionCode, bool) {
	switch channels {
	case 3:
		return gocv.ColorBGRToGray, true
	case 4:
		return gocv.ColorBGRAToGray, true
	default:
		return 0, false
	}
}

// filledRatio is the fraction of mask pixels set inside region, clipped to bounds.
func (c *Classifier) filledRatio(mask gocv.Mat, bounds image.Rectangle, region model.Region) float64 {
	if !region.Valid() {
		return 0
	}
	rect := region.Rect().Intersect(bounds)
	area := rect.Dx() * rect.Dy()
	if area == 0 {
		return 0
	}

	roi := mask.Region(rect)
	defer roi.Close()

	return float64(gocv.CountNonZero(roi)) / float64(area)
}
