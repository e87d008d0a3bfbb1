// Command mvcam-grab captures frames without a display: each frame is saved
// raw and, when a calibration is available, undistorted with a centre mark.
//
// Usage:
//
//	go run -tags mvs ./cmd/mvcam-grab --frames 5
//	go run ./cmd/mvcam-grab --model simulator --frames 3 --exposure 2000
//	go run ./cmd/mvcam-grab --latest   # read from the push-delivered frame cache
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-mvcam/internal/config"
	"github.com/teslashibe/go-mvcam/internal/log"
	"github.com/teslashibe/go-mvcam/pkg/camera"
	"github.com/teslashibe/go-mvcam/pkg/undistort"
)

func main() {
	configPath := flag.String("config", "", "Config file (overrides MVCAM_CONFIG)")
	model := flag.String("model", "", "Camera model: sy011, simulator (overrides config)")
	frames := flag.Int("frames", 1, "Number of frames to capture")
	exposure := flag.Float64("exposure", 0, "Exposure time in microseconds (overrides config, 0 = keep)")
	latest := flag.Bool("latest", false, "Use push delivery and read the latest-frame cache")
	flag.Parse()

	fmt.Println("📷 MVS Frame Grabber")
	fmt.Println("====================")

	opts := grabOptions{
		configPath: *configPath,
		model:      *model,
		frames:     *frames,
		exposure:   *exposure,
		latest:     *latest,
	}
	if err := run(opts); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
}

type grabOptions struct {
	configPath string
	model      string
	frames     int
	exposure   float64
	latest     bool
}

func run(opts grabOptions) error {
	cfg, err := config.Load(config.Path(opts.configPath))
	if err != nil {
		return err
	}
	if opts.model != "" {
		m, err := camera.ParseModel(opts.model)
		if err != nil {
			return err
		}
		cfg.Camera.Model = m
	}
	if opts.exposure > 0 {
		cfg.Camera.ExposureTime = opts.exposure
	}
	log.Init(cfg.LogLevel)

	sess, err := camera.New(cfg.Camera.Model,
		camera.WithLogger(log.L()),
		camera.WithFrameTimeout(cfg.Camera.FrameTimeout),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize camera: %w", err)
	}
	if err := cfg.Camera.Apply(sess); err != nil {
		return fmt.Errorf("failed to configure camera: %w", err)
	}
	if opts.latest {
		if err := sess.EnableLatestFrame(); err != nil {
			return fmt.Errorf("failed to enable push delivery: %w", err)
		}
	}
	if err := sess.StartGrabbing(); err != nil {
		return fmt.Errorf("failed to start grabbing: %w", err)
	}
	fmt.Println("Started grabbing images successfully!")

	und := undistort.New(cfg.Calibration, log.L())
	defer und.Close()

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	next := pullNext(sess)
	if opts.latest {
		next = latestNext(sess, cfg.Camera.FrameTimeout)
	}

	start := time.Now()
	saved := 0
	for i := 0; i < opts.frames; i++ {
		frame, err := next()
		if err != nil {
			fmt.Printf("⚠️  Frame %d: %v\n", i+1, err)
			continue
		}
		if err := saveFrame(frame, und, cfg.OutputDir); err != nil {
			fmt.Printf("⚠️  Frame %d: %v\n", i+1, err)
			continue
		}
		saved++
	}

	elapsed := time.Since(start).Seconds()
	fmt.Printf("\n📊 Saved %d/%d frames in %.2fs (SDK FPS: %.2f)\n", saved, opts.frames, elapsed, sess.FrameRate())
	if opts.latest {
		st := sess.LatestFrameStats()
		fmt.Printf("   Delivered: %d | Overwritten: %d\n", st.Delivered, st.Overwritten)
	}

	sess.StopGrabbing()
	if saved == 0 && opts.frames > 0 {
		return fmt.Errorf("no frames captured")
	}
	return sess.Close()
}

func pullNext(sess *camera.Session) func() (camera.Frame, error) {
	buf := make([]byte, sess.FrameSize())
	return func() (camera.Frame, error) {
		return sess.PullFrame(buf)
	}
}

// latestNext waits for a frame newer than the last one returned.
func latestNext(sess *camera.Session, timeout time.Duration) func() (camera.Frame, error) {
	var last uint32
	return func() (camera.Frame, error) {
		deadline := time.Now().Add(timeout)
		for time.Now().Before(deadline) {
			if f, ok := sess.LatestFrame(timeout); ok && f.FrameNum != last {
				last = f.FrameNum
				return f, nil
			}
			time.Sleep(5 * time.Millisecond)
		}
		return camera.Frame{}, fmt.Errorf("no new frame within %s", timeout)
	}
}

// saveFrame writes the raw frame and, if possible, the corrected and marked copy.
func saveFrame(frame camera.Frame, und *undistort.Undistorter, dir string) error {
	if !frame.Valid() {
		return fmt.Errorf("frame has no pixels (%dx%d)", frame.Width, frame.Height)
	}

	raw, err := undistort.MatFromFrame(frame)
	defer raw.Close()
	if err != nil {
		return err
	}

	stamp := fmt.Sprintf("%d_%06d", time.Now().Unix(), frame.FrameNum)
	rawPath := filepath.Join(dir, "captured_image_"+stamp+".png")
	if !gocv.IMWrite(rawPath, raw) {
		return fmt.Errorf("failed to write %s", rawPath)
	}
	fmt.Printf("💾 Image saved as %s\n", rawPath)

	if !und.Available() {
		return nil
	}

	corrected := gocv.NewMat()
	defer corrected.Close()
	if err := und.Undistort(raw, &corrected); err != nil {
		return err
	}
	marked := undistort.MarkCenter(corrected)
	defer marked.Close()

	fixedPath := filepath.Join(dir, "undistorted_image_"+stamp+".png")
	if !gocv.IMWrite(fixedPath, marked) {
		return fmt.Errorf("failed to write %s", fixedPath)
	}
	fmt.Printf("💾 Undistorted image saved as %s\n", fixedPath)
	return nil
}
