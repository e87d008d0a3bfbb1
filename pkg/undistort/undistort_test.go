package undistort

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/mat"

	"github.com/teslashibe/go-mvcam/pkg/camera"
)

func identityCalibration(cx, cy float64) *Calibration {
	return &Calibration{
		CameraMatrix: mat.NewDense(3, 3, []float64{
			100, 0, cx,
			0, 100, cy,
			0, 0, 1,
		}),
		Distortion: mat.NewVecDense(5, make([]float64, 5)),
	}
}

func gradient(rows, cols int) gocv.Mat {
	m := gocv.NewMatWithSize(rows, cols, gocv.MatTypeCV8UC3)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			m.SetUCharAt(r, c*3, uint8(c))
			m.SetUCharAt(r, c*3+1, uint8(r))
			m.SetUCharAt(r, c*3+2, 7)
		}
	}
	return m
}

func TestNew_MissingFileIsUnavailable(t *testing.T) {
	u := New(filepath.Join(t.TempDir(), "missing.yml"), nil)
	defer u.Close()

	assert.False(t, u.Available())
	assert.Nil(t, u.Calibration())

	src := gradient(10, 10)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	err := u.Undistort(src, &dst)
	assert.ErrorIs(t, err, ErrCalibrationUnavailable)
	assert.True(t, dst.Empty(), "dst untouched")
}

func TestNew_LoadsFile(t *testing.T) {
	u := New(filepath.Join("testdata", "calibration_parameters.yml"), nil)
	defer u.Close()

	require.True(t, u.Available())
	fx, _, _, _ := u.Calibration().Intrinsics()
	assert.InDelta(t, 2355.107, fx, 1e-3)
}

func TestNewFromCalibration_RejectsInvalid(t *testing.T) {
	calib := identityCalibration(50, 25)
	calib.CameraMatrix.Set(0, 0, 0)

	u := NewFromCalibration(calib, nil)
	defer u.Close()
	assert.False(t, u.Available())
}

func TestUndistort_ZeroDistortionIsIdentity(t *testing.T) {
	u := NewFromCalibration(identityCalibration(50, 25), nil)
	defer u.Close()
	require.True(t, u.Available())

	src := gradient(50, 100)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	require.NoError(t, u.Undistort(src, &dst))
	assert.Equal(t, src.Rows(), dst.Rows())
	assert.Equal(t, src.Cols(), dst.Cols())
	assert.Equal(t, src.Type(), dst.Type())

	for _, p := range [][2]int{{25, 50}, {10, 20}, {40, 90}} {
		assert.Equal(t, src.GetVecbAt(p[0], p[1]), dst.GetVecbAt(p[0], p[1]), "pixel %v", p)
	}
}

func TestUndistort_EmptySource(t *testing.T) {
	u := NewFromCalibration(identityCalibration(50, 25), nil)
	defer u.Close()

	src := gocv.NewMat()
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	assert.ErrorIs(t, u.Undistort(src, &dst), ErrEmptyImage)
}

func TestUndistort_AfterClose(t *testing.T) {
	u := NewFromCalibration(identityCalibration(50, 25), nil)
	require.NoError(t, u.Close())
	require.NoError(t, u.Close())

	src := gradient(10, 10)
	defer src.Close()
	dst := gocv.NewMat()
	defer dst.Close()

	assert.ErrorIs(t, u.Undistort(src, &dst), ErrCalibrationUnavailable)
}

func TestMarkCenter(t *testing.T) {
	const rows, cols = 50, 100
	src := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), rows, cols, gocv.MatTypeCV8UC3)
	defer src.Close()

	out := MarkCenter(src)
	defer out.Close()

	require.Equal(t, rows, out.Rows())
	require.Equal(t, cols, out.Cols())

	red := gocv.Vecb{0, 0, 255}
	black := gocv.Vecb{0, 0, 0}

	// Centre is (50, 25): horizontal arm x 30..70, vertical arm y 5..45.
	assert.Equal(t, red, out.GetVecbAt(25, 50))
	assert.Equal(t, red, out.GetVecbAt(25, 32))
	assert.Equal(t, red, out.GetVecbAt(25, 68))
	assert.Equal(t, red, out.GetVecbAt(7, 50))
	assert.Equal(t, red, out.GetVecbAt(43, 50))

	// Arm endpoints.
	assert.Equal(t, red, out.GetVecbAt(5, 50))
	assert.Equal(t, red, out.GetVecbAt(45, 50))
	assert.Equal(t, red, out.GetVecbAt(25, 30))
	assert.Equal(t, red, out.GetVecbAt(25, 70))

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			px := out.GetVecbAt(r, c)
			if px[0] == 0 && px[1] == 0 && px[2] == 0 {
				continue
			}
			nearHorizontal := abs(r-25) <= 2 && c >= 28 && c <= 72
			nearVertical := abs(c-50) <= 2 && r >= 3 && r <= 47
			assert.True(t, nearHorizontal || nearVertical, "unexpected pixel at row %d col %d", r, c)
		}
	}

	// The source is not modified.
	assert.Equal(t, black, src.GetVecbAt(25, 50))
}

func TestMatFromFrame(t *testing.T) {
	data := make([]byte, camera.FrameSize(4, 2))
	for i := range data {
		data[i] = byte(i)
	}
	frame := camera.Frame{Data: data, Width: 4, Height: 2}

	m, err := MatFromFrame(frame)
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 2, m.Rows())
	assert.Equal(t, 4, m.Cols())
	assert.Equal(t, gocv.Vecb{15, 16, 17}, m.GetVecbAt(1, 1))

	// The Mat owns its pixels.
	data[15] = 0xFF
	assert.Equal(t, uint8(15), m.GetVecbAt(1, 1)[0])
}

func TestMatFromFrame_Invalid(t *testing.T) {
	m, err := MatFromFrame(camera.Frame{Width: 0, Height: 0})
	defer m.Close()
	assert.ErrorIs(t, err, ErrInvalidFrame)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
