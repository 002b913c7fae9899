package main

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/skip2/go-qrcode"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"camfs/internal/camera"
	"camfs/internal/control"
	"camfs/internal/handler"
	"camfs/internal/middleware"
	"camfs/internal/model"
	"camfs/internal/oe"
	"camfs/internal/server"
	"camfs/internal/volatile"
)

type Flags struct {
	Camera          *string
	CameraDir       *string
	CaptureDir      *string
	Compression     *int
	Ctrl            *string
	ctrlEnabled     bool
	CtrlLogger      *bool
	FaviconIco      *string
	FrameInterval   *time.Duration
	Height          *int
	Http            *string
	ListBudget      *int
	LogLevel        *string
	MaxFileSize     *int
	PathMax         *int
	Prometheus      *bool
	Qr              *bool
	Root            *string
	TimeoutIdle     *time.Duration
	TimeoutRead     *time.Duration
	TimeoutRequest  *time.Duration
	TimeoutShutdown *time.Duration
	TimeoutWrite    *time.Duration
	Timezone        *string
	Width           *int
}

const (
	defCtrlAddress = ``
	envCtrlAddress = `CAMFS_CTRL`
)
const (
	defHttpAddress = `localhost:8080`
	envHttpAddress = `CAMFS_HTTP`
)
const (
	defRoot = `.`
	envRoot = `CAMFS_ROOT`
)

func main() {
	// logger
	logger := volatile.NewLogger(control.LogLevelInfo)

	// boot
	hostname, err := os.Hostname()
	if err != nil {
		logger.Fatal(`hostname: error: %s`, err)
	}
	logger.Info(`camfs %s`, hostname)

	// flags
	flags := Flags{
		Camera:          flag.String(`camera`, `pattern`, `specifies the camera source (pattern or replay)`),
		CameraDir:       flag.String(`camera-dir`, ``, `specifies the directory of jpeg frames for the replay camera`),
		CaptureDir:      flag.String(`capture-dir`, handler.DefaultCaptureDir, `specifies the directory below root for captured frames`),
		Compression:     flag.Int(`compression`, 5, `specifies the compression level (-1 disables)`),
		Ctrl:            flag.String(`ctrl`, ``, `specifies the bind address for the ctrl service`),
		CtrlLogger:      flag.Bool(`ctrl-logger`, false, `enable ctrl logging`),
		FaviconIco:      flag.String(`favicon-ico`, ``, `specifies the file to use for favicon.ico`),
		FrameInterval:   flag.Duration(`frame-interval`, handler.DefaultFrameInterval, `specifies the delay between stream frames`),
		Height:          flag.Int(`height`, camera.DefaultHeight, `specifies the frame height`),
		Http:            flag.String(`http`, ``, `specifies the bind address for the http service`),
		ListBudget:      flag.Int(`list-budget`, oe.DefaultListBudget, `specifies the maximum number of entries in a listing`),
		LogLevel:        flag.String(`log-level`, `info`, `specifies the logging level`),
		MaxFileSize:     flag.Int(`max-file-size`, handler.DefaultMaxFileSize, `specifies the largest frame /capture will store`),
		PathMax:         flag.Int(`path-max`, handler.DefaultPathMax, `specifies the longest resolved path`),
		Prometheus:      flag.Bool(`prometheus`, false, `enable prometheus`),
		Qr:              flag.Bool(`qr`, false, `print a qr code of the http service url`),
		Root:            flag.String(`root`, ``, `specifies the root directory`),
		TimeoutIdle:     flag.Duration(`timeout-idle`, 5*time.Second, `specifies the request idle timeout duration`),
		TimeoutRead:     flag.Duration(`timeout-read`, 10*time.Second, `specifies the request read timeout duration`),
		TimeoutRequest:  flag.Duration(`timeout-request`, 60*time.Second, `specifies the request timeout duration`),
		TimeoutShutdown: flag.Duration(`timeout-shutdown`, 5*time.Second, `specifies the shutdown timeout`),
		TimeoutWrite:    flag.Duration(`timeout-write`, 60*time.Second, `specifies the response write timeout duration`),
		Timezone:        flag.String(`timezone`, `Local`, `specifies the time zone of listing dates`),
		Width:           flag.Int(`width`, camera.DefaultWidth, `specifies the frame width`),
	}
	flag.Parse()

	// env
	{
		first := func(list ...string) *string {
			for _, value := range list {
				if value != `` {
					return &value
				}
			}
			empty := ``
			return &empty
		}

		flags.Ctrl = first(*flags.Ctrl, os.Getenv(envCtrlAddress), defCtrlAddress)
		flags.Http = first(*flags.Http, os.Getenv(envHttpAddress), defHttpAddress)
		flags.Root = first(*flags.Root, os.Getenv(envRoot), defRoot)
	}
	flags.ctrlEnabled = *flags.Ctrl != ``

	// validate
	if err := logger.SetLevelFromString(*flags.LogLevel); err != nil {
		logger.Fatal(`log level error: %s`, err)
	}
	root, err := filepath.Abs(*flags.Root)
	if err != nil {
		logger.Fatal(`root error: %s`, err)
	}
	if info, err := os.Stat(root); err != nil {
		logger.Fatal(`stat error: %s`, err)
	} else if !info.IsDir() {
		logger.Fatal(`-root %s is not a directory`, root)
	}
	location, err := time.LoadLocation(*flags.Timezone)
	if err != nil {
		logger.Fatal(`timezone error: %s`, err)
	}

	// assets
	assets := volatile.NewFs()
	if *flags.FaviconIco != `` {
		if err := assets.FromFile(`/favicon.ico`, *flags.FaviconIco, func(data []byte) (string, error) {
			if bytes.HasPrefix(data, []byte{0, 0, 1, 0}) {
				logger.Info(`load favicon.ico %s %d (ico)`, *flags.FaviconIco, len(data))
				return `image/x-icon`, nil
			}
			image, format, err := image.Decode(bytes.NewReader(data))
			if err != nil {
				return ``, err
			}
			bounds := image.Bounds()
			logger.Info(`load favicon.ico %s %d (%dx%d; %s)`, *flags.FaviconIco, len(data), bounds.Dx(), bounds.Dy(), format)
			return `image/` + format, nil
		}); err != nil {
			logger.Fatal(`load error: %s`, err)
		}
	}

	// camera
	var source model.Camera
	switch *flags.Camera {
	case `pattern`:
		source = camera.NewPattern(*flags.Width, *flags.Height, hostname)
	case `replay`:
		replay, err := camera.NewReplay(*flags.CameraDir, *flags.Width, *flags.Height)
		if err != nil {
			logger.Fatal(`camera error: %s`, err)
		}
		logger.Info(`camera.replay %s %d frames`, *flags.CameraDir, replay.Len())
		source = replay
	default:
		logger.Fatal(`-camera "%s" is invalid`, *flags.Camera)
	}

	// metrics
	var registerer prometheus.Registerer
	if *flags.Prometheus {
		registerer = prometheus.DefaultRegisterer
	}

	// http
	manager := server.NewManager()
	handle, err := manager.Start(context.Background(), server.Options{
		Label:          `http`,
		Addr:           *flags.Http,
		BasePath:       root,
		Compression:    *flags.Compression,
		TimeoutIdle:    *flags.TimeoutIdle,
		TimeoutRead:    *flags.TimeoutRead,
		TimeoutRequest: *flags.TimeoutRequest,
		TimeoutWrite:   *flags.TimeoutWrite,
		Handler: handler.Context{
			PathMax:       *flags.PathMax,
			ListBudget:    *flags.ListBudget,
			CaptureDir:    *flags.CaptureDir,
			MaxFileSize:   *flags.MaxFileSize,
			FrameInterval: *flags.FrameInterval,
			Location:      location,
			Volume:        oe.NewFsDriver(root),
			Camera:        source,
			Assets:        assets,
		},
		Logger:     logger,
		Registerer: registerer,
	})
	if err != nil {
		logger.Fatal(`http error: %s`, err)
	}
	if *flags.Qr {
		qr(logger, handle.Addr())
	}

	// ctrl
	var ctrl *http.Server
	if flags.ctrlEnabled {
		features := []string{`log`}
		router := chi.NewRouter()
		router.NotFound(handler.Cocytus)
		router.MethodNotAllowed(handler.Verboten)
		router.Handle(`/log`, handler.Log(logger))
		if *flags.Prometheus {
			router.With(middleware.Methods(handler.Verboten, http.MethodGet, http.MethodHead)).
				Handle(`/metrics/prometheus`, promhttp.Handler())
			features = append(features, `prometheus`)
		}
		ctrl = &http.Server{
			Addr:         *flags.Ctrl,
			Handler:      middleware.Control(router, *flags.CtrlLogger, volatile.NewLogFormatter(`ctrl`, logger)),
			ErrorLog:     log.New(control.NewHttpLogWriter(logger), ``, 0),
			IdleTimeout:  *flags.TimeoutIdle,
			ReadTimeout:  *flags.TimeoutRead,
			WriteTimeout: *flags.TimeoutWrite,
		}
		go func() {
			logger.Info(`ctrl.up http://%s/ %s`, ctrl.Addr, strings.Join(features, ` `))
			if err := ctrl.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error(`ctrl.serve error: %s`, err)
			} else {
				logger.Info(`ctrl.down`)
			}
		}()
	} else {
		logger.Info(`ctrl.disabled`)
	}

	// into the beyond
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-signals:
		logger.Info(`signal %s`, sig)
	case <-handle.Done():
		logger.Error(`http stopped: %v`, handle.Err())
	}

	// halt
	wg := sync.WaitGroup{}
	halt := func(label string, stop func(context.Context) error) {
		defer wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), *flags.TimeoutShutdown)
		defer cancel()
		if err := stop(ctx); err != nil {
			logger.Error(`%s.shutdown error: %s`, label, err)
		}
	}
	wg.Add(1)
	go halt(`http`, manager.Stop)
	if ctrl != nil {
		wg.Add(1)
		go halt(`ctrl`, ctrl.Shutdown)
	}
	wg.Wait()
}

// qr prints a terminal qr code for the http service. Wildcard binds are
// shown with the address of the interface that routes outward.
func qr(logger control.Logger, addr string) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		logger.Warn(`qr: %s`, err)
		return
	}
	if ip := net.ParseIP(host); host == `` || ip != nil && ip.IsUnspecified() {
		if conn, err := net.Dial(`udp`, `8.8.8.8:80`); err == nil {
			host = conn.LocalAddr().(*net.UDPAddr).IP.String()
			conn.Close()
		}
	}
	url := `http://` + net.JoinHostPort(host, port) + `/`
	code, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		logger.Warn(`qr: %s`, err)
		return
	}
	fmt.Println(code.ToString(false))
	logger.Info(`qr %s`, url)
}
