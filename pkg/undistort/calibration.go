package undistort

import (
	"bytes"
	"fmt"
	"os"

	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"
)

// Keys read from an OpenCV FileStorage calibration file.
const (
	KeyCameraMatrix = "camera_matrix"
	KeyDistortion   = "distortion_coefficients"
)

// Calibration holds the pinhole intrinsics and lens distortion of one camera.
type Calibration struct {
	// CameraMatrix is the 3x3 intrinsic matrix [fx 0 cx; 0 fy cy; 0 0 1].
	CameraMatrix *mat.Dense

	// Distortion holds k1 k2 p1 p2 [k3 [k4 k5 k6 [s1 s2 s3 s4 [tx ty]]]].
	Distortion *mat.VecDense
}

// openCVMatrix is the body of a !!opencv-matrix node.
type openCVMatrix struct {
	Rows int       `yaml:"rows"`
	Cols int       `yaml:"cols"`
	Dt   string    `yaml:"dt"`
	Data []float64 `yaml:"data"`
}

type calibrationFile struct {
	CameraMatrix *openCVMatrix `yaml:"camera_matrix"`
	Distortion   *openCVMatrix `yaml:"distortion_coefficients"`
}

// LoadCalibration reads a calibration file written by cv::FileStorage.
func LoadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration: %w", err)
	}
	return ParseCalibration(data)
}

// ParseCalibration decodes OpenCV FileStorage YAML.
func ParseCalibration(data []byte) (*Calibration, error) {
	var f calibrationFile
	if err := yaml.Unmarshal(normalizeOpenCVYAML(data), &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCalibration, err)
	}
	if f.CameraMatrix == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedCalibration, KeyCameraMatrix)
	}
	if f.Distortion == nil {
		return nil, fmt.Errorf("%w: missing %s", ErrMalformedCalibration, KeyDistortion)
	}

	if err := f.CameraMatrix.check(KeyCameraMatrix); err != nil {
		return nil, err
	}
	if err := f.Distortion.check(KeyDistortion); err != nil {
		return nil, err
	}

	// Distortion may be stored as a row or a column; both flatten the same.
	c := &Calibration{
		CameraMatrix: mat.NewDense(f.CameraMatrix.Rows, f.CameraMatrix.Cols, f.CameraMatrix.Data),
		Distortion:   mat.NewVecDense(len(f.Distortion.Data), f.Distortion.Data),
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// normalizeOpenCVYAML strips the "%YAML:1.0" directive and the
// !!opencv-matrix tags, neither of which a YAML 1.2 parser accepts.
func normalizeOpenCVYAML(data []byte) []byte {
	var out bytes.Buffer
	for _, line := range bytes.Split(data, []byte("\n")) {
		if bytes.HasPrefix(bytes.TrimSpace(line), []byte("%")) {
			continue
		}
		out.Write(bytes.ReplaceAll(line, []byte("!!opencv-matrix"), nil))
		out.WriteByte('\n')
	}
	return out.Bytes()
}

func (m *openCVMatrix) check(key string) error {
	if m.Rows <= 0 || m.Cols <= 0 {
		return fmt.Errorf("%w: %s has shape %dx%d", ErrMalformedCalibration, key, m.Rows, m.Cols)
	}
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("%w: %s has %d values, want %d", ErrMalformedCalibration, key, len(m.Data), m.Rows*m.Cols)
	}
	return nil
}

// Empty reports whether either matrix is missing.
func (c *Calibration) Empty() bool {
	return c == nil || c.CameraMatrix == nil || c.Distortion == nil || c.Distortion.Len() == 0
}

// Validate checks the matrix shapes and that the intrinsics are invertible.
func (c *Calibration) Validate() error {
	if c.Empty() {
		return ErrCalibrationUnavailable
	}

	if r, cols := c.CameraMatrix.Dims(); r != 3 || cols != 3 {
		return fmt.Errorf("%w: camera matrix is %dx%d, want 3x3", ErrMalformedCalibration, r, cols)
	}
	fx, fy, _, _ := c.Intrinsics()
	if fx <= 0 || fy <= 0 {
		return fmt.Errorf("%w: focal length must be positive (fx=%g fy=%g)", ErrMalformedCalibration, fx, fy)
	}
	if mat.Det(c.CameraMatrix) == 0 {
		return fmt.Errorf("%w: camera matrix is singular", ErrMalformedCalibration)
	}

	switch n := c.Distortion.Len(); n {
	case 4, 5, 8, 12, 14:
	default:
		return fmt.Errorf("%w: %d distortion coefficients, want 4, 5, 8, 12 or 14", ErrMalformedCalibration, n)
	}
	return nil
}

// Intrinsics returns the focal lengths and principal point in pixels.
func (c *Calibration) Intrinsics() (fx, fy, cx, cy float64) {
	k := c.CameraMatrix
	return k.At(0, 0), k.At(1, 1), k.At(0, 2), k.At(1, 2)
}

// mats converts the calibration to CV_64F Mats. The caller closes both.
func (c *Calibration) mats() (k, d gocv.Mat) {
	rows, cols := c.CameraMatrix.Dims()
	k = gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV64F)
	for r := 0; r < rows; r++ {
		for col := 0; col < cols; col++ {
			k.SetDoubleAt(r, col, c.CameraMatrix.At(r, col))
		}
	}

	n := c.Distortion.Len()
	d = gocv.NewMatWithSize(1, n, gocv.MatTypeCV64F)
	for i := 0; i < n; i++ {
		d.SetDoubleAt(0, i, c.Distortion.AtVec(i))
	}
	return k, d
}
