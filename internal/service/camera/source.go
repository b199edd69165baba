package camera

import (
	"errors"
	"sync"

	"gocv.io/x/gocv"
)

var errNotOpen = errors.New("device not open")
var errNoFrame = errors.New("no frame")

// FrameSource yields frames from a camera. Read does not retry; retry policy
// belongs to the caller. The caller owns and must Close every returned Mat.
type FrameSource interface {
	Open() error
	Read() (gocv.Mat, error)
	Close() error
}

// Device is a FrameSource backed by a local capture device.
type Device struct {
	index  int
	mu     sync.Mutex
	webcam *gocv.VideoCapture
}

// NewDevice creates a source for the given device index. Nothing is opened yet.
func NewDevice(index int) *Device {
	return &Device{index: index}
}

// Index returns the configured device index.
func (d *Device) Index() int {
	return d.index
}

// Open acquires the capture device. Opening an already open device is a no-op.
func (d *Device) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.webcam != nil {
		return nil
	}

	webcam, err := gocv.OpenVideoCapture(d.index)
	if err != nil {
		return &Error{Op: "open", Device: d.index, Err: err}
	}
	if !webcam.IsOpened() {
		webcam.Close()
		return &Error{Op: "open", Device: d.index}
	}

	d.webcam = webcam
	return nil
}

// Read grabs the next frame.
func (d *Device) Read() (gocv.Mat, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.webcam == nil {
		return gocv.Mat{}, &Error{Op: "read", Device: d.index, Err: errNotOpen}
	}

	img := gocv.NewMat()
	if ok := d.webcam.Read(&img); !ok || img.Empty() {
		img.Close()
		return gocv.Mat{}, &Error{Op: "read", Device: d.index, Err: errNoFrame}
	}
	return img, nil
}

// Close releases the device. Closing a closed device is a no-op.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.webcam == nil {
		return nil
	}
	err := d.webcam.Close()
	d.webcam = nil
	return err
}
