package detection

import (
	"fmt"
	"image"
	"image/color"

	"gocv.io/x/gocv"

	"parkingserver/internal/model"
)

var (
	occupiedColor = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	freeColor     = color.RGBA{R: 0, G: 255, B: 0, A: 0}
)

// Annotate draws every region on a copy of frame, red when occupied and green
// when free, and returns the result as JPEG bytes.
func Annotate(frame gocv.Mat, regions []model.Region, occ model.Occupancy) ([]byte, error) {
	if frame.Empty() {
		return nil, fmt.Errorf("frame is empty")
	}

	vis := frame.Clone()
	defer vis.Close()

	for i, region := range regions {
		c := freeColor
		if i < len(occ) && occ[i] == model.Occupied {
			c = occupiedColor
		}

		if err := gocv.Rectangle(&vis, region.Rect(), c, 2); err != nil {
			return nil, fmt.Errorf("failed to draw slot %d: %w", i+1, err)
		}

		pt := image.Pt(region.X1+4, region.Y1+18)
		if err := gocv.PutText(&vis, fmt.Sprintf("%d", i+1), pt, gocv.FontHersheySimplex, 0.6, c, 2); err != nil {
			return nil, fmt.Errorf("failed to label slot %d: %w", i+1, err)
		}
	}

	buf, err := gocv.IMEncode(".jpg", vis)
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
