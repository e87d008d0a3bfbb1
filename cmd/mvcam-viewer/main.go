// Command mvcam-viewer shows the live camera feed in an OpenCV window.
//
// Usage:
//
//	go run -tags mvs ./cmd/mvcam-viewer
//	go run ./cmd/mvcam-viewer --model simulator
//	go run ./cmd/mvcam-viewer --undistort   # show the corrected image with a centre mark
//
// Keys: s saves the current raw frame to <output_dir>/captured_image_<unix>.png,
// q stops grabbing and exits.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-mvcam/internal/config"
	"github.com/teslashibe/go-mvcam/internal/log"
	"github.com/teslashibe/go-mvcam/pkg/camera"
	"github.com/teslashibe/go-mvcam/pkg/undistort"
)

const (
	windowName        = "Camera Image"
	sdkFPSInterval    = 2 * time.Second
	calcFPSInterval   = time.Second
	captureRetryDelay = 50 * time.Millisecond
)

var (
	displaySize = image.Pt(640, 480)
	green       = color.RGBA{G: 255, A: 255}
	yellow      = color.RGBA{R: 255, G: 255, A: 255}
)

func main() {
	configPath := flag.String("config", "", "Config file (overrides MVCAM_CONFIG)")
	model := flag.String("model", "", "Camera model: sy011, simulator (overrides config)")
	showUndistorted := flag.Bool("undistort", false, "Display the undistorted image with a centre mark")
	flag.Parse()

	if err := run(*configPath, *model, *showUndistorted); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	fmt.Println("Done.")
}

func run(configPath, model string, showUndistorted bool) error {
	cfg, err := config.Load(config.Path(configPath))
	if err != nil {
		return err
	}
	if model != "" {
		m, err := camera.ParseModel(model)
		if err != nil {
			return err
		}
		cfg.Camera.Model = m
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

	fmt.Println("Initializing camera...")
	if err := sess.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize camera: %w", err)
	}

	fmt.Println("Configuring camera...")
	if err := cfg.Camera.Apply(sess); err != nil {
		return fmt.Errorf("failed to configure camera: %w", err)
	}

	fmt.Println("Starting grabbing...")
	if err := sess.StartGrabbing(); err != nil {
		return fmt.Errorf("failed to start grabbing: %w", err)
	}

	var und *undistort.Undistorter
	if showUndistorted {
		und = undistort.New(cfg.Calibration, log.L())
		defer und.Close()
	}

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	w, h := sess.Resolution()
	fmt.Printf("📷 %s %dx%d. Press 's' to save, 'q' to quit.\n", cfg.Camera.Model, w, h)

	window := gocv.NewWindow(windowName)
	defer window.Close()

	v := &viewer{
		sess:      sess,
		und:       und,
		window:    window,
		outputDir: cfg.OutputDir,
		fps:       newFPSCounter(calcFPSInterval),
		sdkFPS:    camera.FrameRateUnavailable,
	}
	v.loop()

	fmt.Println("Stopping grabbing...")
	sess.StopGrabbing()
	fmt.Println("Closing camera...")
	return sess.Close()
}

type viewer struct {
	sess      *camera.Session
	und       *undistort.Undistorter
	window    *gocv.Window
	outputDir string

	fps        *fpsCounter
	sdkFPS     float64
	lastSDKFPS time.Time
}

func (v *viewer) loop() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	display := gocv.NewMat()
	defer display.Close()

	buf := make([]byte, v.sess.FrameSize())
	for {
		select {
		case <-sigChan:
			fmt.Println("\n🛑 Interrupted")
			return
		default:
		}

		frame, err := v.sess.PullFrame(buf)
		if err != nil || !frame.Valid() {
			time.Sleep(captureRetryDelay)
			continue
		}

		raw, err := undistort.MatFromFrame(frame)
		if err != nil {
			raw.Close()
			time.Sleep(captureRetryDelay)
			continue
		}

		if quit := v.show(raw, &display); quit {
			raw.Close()
			fmt.Println("Exiting...")
			return
		}
		raw.Close()
	}
}

// show draws one frame and handles a key press. It reports whether to quit.
func (v *viewer) show(raw gocv.Mat, display *gocv.Mat) bool {
	now := time.Now()
	calcFPS := v.fps.Tick(now)
	if now.Sub(v.lastSDKFPS) >= sdkFPSInterval {
		v.sdkFPS = v.sess.FrameRate()
		v.lastSDKFPS = now
	}

	shown := raw
	if v.und != nil {
		corrected := gocv.NewMat()
		if err := v.und.Undistort(raw, &corrected); err == nil {
			shown = undistort.MarkCenter(corrected)
			defer shown.Close()
		}
		corrected.Close()
	}

	gocv.Resize(shown, display, displaySize, 0, 0, gocv.InterpolationLinear)
	gocv.PutText(display, fmt.Sprintf("Calc FPS: %.2f", calcFPS), image.Pt(10, 30), gocv.FontHersheySimplex, 0.7, green, 2)
	gocv.PutText(display, sdkFPSText(v.sdkFPS), image.Pt(10, 60), gocv.FontHersheySimplex, 0.7, yellow, 2)
	v.window.IMShow(*display)

	switch v.window.WaitKey(1) & 0xFF {
	case 's':
		v.save(raw)
	case 'q':
		return true
	}
	return false
}

// save writes the full-resolution raw frame.
func (v *viewer) save(raw gocv.Mat) {
	filename := filepath.Join(v.outputDir, fmt.Sprintf("captured_image_%d.png", time.Now().Unix()))
	if !gocv.IMWrite(filename, raw) {
		log.Error("failed to save image", "file", filename)
		return
	}
	fmt.Printf("💾 Image saved as %s\n", filename)
}

func sdkFPSText(fps float64) string {
	if fps < 0 {
		return "SDK FPS: N/A"
	}
	return fmt.Sprintf("SDK FPS: %.2f", fps)
}
