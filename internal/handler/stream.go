package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"camfs/internal/model"
)

const (
	StreamBoundary    = `123456789000000000000987654321`
	StreamContentType = `multipart/x-mixed-replace;boundary=` + StreamBoundary

	streamPartBoundary = "\r\n--" + StreamBoundary + "\r\n"
	streamPartHeader   = "Content-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n"
)

type StreamState uint8

const (
	StreamStreaming StreamState = iota
	StreamTerminated
)

// StreamReason says why a stream left the streaming state.
type StreamReason string

const (
	ReasonCapture   StreamReason = `capture`
	ReasonWrite     StreamReason = `write`
	ReasonCancelled StreamReason = `cancelled`
)

type streamSession struct {
	c         *Context
	writer    chunkWriter
	lastFrame time.Time
	state     StreamState
	reason    StreamReason
	err       error
	frames    int
}

// Stream serves GET /image-stream until capture fails, a write fails, or the
// client goes away.
func (c *Context) Stream(w http.ResponseWriter, r *http.Request) {
	controller := http.NewResponseController(w)
	if err := controller.SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
		c.Logger.Debug(`stream: clear write deadline: %s`, err)
	}
	w.Header().Set(`Content-Type`, StreamContentType)
	w.Header().Set(`Cache-Control`, `no-cache, no-store, must-revalidate`)

	session := &streamSession{
		c:      c,
		writer: chunkWriter{w: w, controller: controller},
	}
	session.run(r.Context())
}

func (session *streamSession) run(ctx context.Context) {
	c := session.c
	c.Logger.Info(`stream: start`)
	session.lastFrame = time.Now()
	for session.state == StreamStreaming {
		session.step(ctx)
	}
	session.lastFrame = time.Time{}

	c.Metrics.Terminations.WithLabelValues(string(session.reason)).Inc()
	switch session.reason {
	case ReasonCancelled:
		c.Logger.Info(`stream: client gone after %d frames`, session.frames)
	default:
		c.Logger.Warn(`stream: %s after %d frames: %s`, session.reason, session.frames, session.err)
	}
}

func (session *streamSession) terminate(reason StreamReason, err error) {
	session.state = StreamTerminated
	session.reason = reason
	session.err = err
}

func (session *streamSession) step(ctx context.Context) {
	c := session.c
	frame, err := c.Camera.Capture(ctx)
	if err != nil || frame.Len() == 0 {
		frame.Release()
		if err == nil {
			err = fmt.Errorf(`%w: empty frame`, model.ErrCaptureFailed)
		} else if ctx.Err() != nil {
			session.terminate(ReasonCancelled, err)
			return
		}
		session.terminate(ReasonCapture, err)
		return
	}

	size := frame.Len()
	err = session.send(frame)
	frame.Release()
	if err != nil {
		session.terminate(ReasonWrite, err)
		return
	}
	session.frames++
	c.Metrics.Frames.Inc()
	c.Metrics.FrameBytes.Add(float64(size))

	now := time.Now()
	elapsed := now.Sub(session.lastFrame)
	session.lastFrame = now
	c.Metrics.FrameInterval.Observe(elapsed.Seconds())
	c.Logger.Trace(`stream: %dKB %dms (%.1ffps)`, size/1024, elapsed.Milliseconds(), 1/elapsed.Seconds())

	timer := time.NewTimer(c.FrameInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		session.terminate(ReasonCancelled, ctx.Err())
	case <-timer.C:
	}
}

// send writes boundary, part header and payload as three flushed chunks.
func (session *streamSession) send(frame *model.Frame) error {
	if err := session.writer.write([]byte(streamPartBoundary)); err != nil {
		return err
	}
	if err := session.writer.write([]byte(fmt.Sprintf(streamPartHeader, frame.Len()))); err != nil {
		return err
	}
	return session.writer.write(frame.Data)
}

func (reason StreamReason) String() string {
	return string(reason)
}

func (state StreamState) String() string {
	if state == StreamTerminated {
		return `terminated`
	}
	return `streaming`
}
