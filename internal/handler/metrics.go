package handler

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	Frames        prometheus.Counter
	FrameBytes    prometheus.Counter
	FrameInterval prometheus.Histogram
	Terminations  *prometheus.CounterVec
	Downloaded    prometheus.Counter
	Deleted       prometheus.Counter
	Captured      prometheus.Counter
}

// NewMetrics builds the responder collectors and registers them with reg
// unless reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	metrics := &Metrics{
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: `camfs_stream_frames_total`,
			Help: `A counter of frames sent to stream clients`,
		}),
		FrameBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: `camfs_stream_bytes_total`,
			Help: `A counter of jpeg bytes sent to stream clients`,
		}),
		FrameInterval: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    `camfs_stream_frame_interval_seconds`,
			Help:    `A histogram of the time between consecutive frames of one stream`,
			Buckets: []float64{.025, .033, .05, .1, .25, .5, 1},
		}),
		Terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: `camfs_stream_terminations_total`,
			Help: `A counter of ended streams by reason`,
		}, []string{`reason`}),
		Downloaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: `camfs_download_bytes_total`,
			Help: `A counter of file bytes sent to download clients`,
		}),
		Deleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: `camfs_deleted_files_total`,
			Help: `A counter of deleted files`,
		}),
		Captured: prometheus.NewCounter(prometheus.CounterOpts{
			Name: `camfs_captured_files_total`,
			Help: `A counter of frames stored through /capture`,
		}),
	}
	if reg != nil {
		reg.MustRegister(
			metrics.Frames,
			metrics.FrameBytes,
			metrics.FrameInterval,
			metrics.Terminations,
			metrics.Downloaded,
			metrics.Deleted,
			metrics.Captured,
		)
	}
	return metrics
}
