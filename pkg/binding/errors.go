package binding

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-mvcam/pkg/camera"
)

// ErrDegenerateFrame is reported when the driver succeeds but returns a
// frame with non-positive dimensions or too little data for them.
var ErrDegenerateFrame = errors.New("binding: frame has no pixels")

func errDegenerateFrame(f camera.Frame) error {
	return fmt.Errorf("%w: %dx%d with %d bytes", ErrDegenerateFrame, f.Width, f.Height, len(f.Data))
}
