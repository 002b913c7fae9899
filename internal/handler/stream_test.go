package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStreamFrameLifecycle(t *testing.T) {
	testCases := []struct {
		name   string
		script []error
		frames int
	}{
		{"fails at once", []error{errScripted}, 0},
		{"three then fail", []error{nil, nil, nil, errScripted, nil}, 3},
		{"one then fail", []error{nil, errScripted}, 1},
		{"script exhausted", []error{nil, nil}, 2},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			camera := &scriptedCamera{script: tc.script, frame: []byte("\xff\xd8jpeg\xff\xd9")}
			c := newTestContext(t, nil, camera)

			recorder := serve(c.Stream, http.MethodGet, "/image-stream")

			captures, released := camera.counts()
			if released != tc.frames {
				t.Errorf("released %d frames, want %d", released, tc.frames)
			}
			if captures != min(tc.frames+1, len(tc.script)) {
				t.Errorf("captured %d times, want the loop to stop at the first failure", captures)
			}
			if got := strings.Count(recorder.Body.String(), "--"+StreamBoundary); got != tc.frames {
				t.Errorf("body holds %d parts, want %d", got, tc.frames)
			}
			if got := testutil.ToFloat64(c.Metrics.Terminations.WithLabelValues("capture")); got != 1 {
				t.Errorf("capture terminations = %v", got)
			}
			if got := testutil.ToFloat64(c.Metrics.Frames); got != float64(tc.frames) {
				t.Errorf("frames counter = %v", got)
			}
		})
	}
}

func TestStreamWireFormat(t *testing.T) {
	frame := []byte("\xff\xd8frame\xff\xd9")
	camera := &scriptedCamera{script: []error{nil, nil}, frame: frame}
	c := newTestContext(t, nil, camera)

	recorder := serve(c.Stream, http.MethodGet, "/image-stream")

	if got := recorder.Header().Get("Content-Type"); got != "multipart/x-mixed-replace;boundary=123456789000000000000987654321" {
		t.Errorf("Content-Type = %q", got)
	}
	part := fmt.Sprintf("\r\n--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n%s", StreamBoundary, len(frame), frame)
	if want := part + part; recorder.Body.String() != want {
		t.Errorf("body = %q, want %q", recorder.Body.String(), want)
	}
	if !recorder.Flushed {
		t.Error("stream was not flushed")
	}
}

func TestStreamStopsOnWriteFailure(t *testing.T) {
	for ok := 0; ok < 6; ok++ {
		t.Run(fmt.Sprintf("ok=%d", ok), func(t *testing.T) {
			script := make([]error, 10)
			camera := &scriptedCamera{script: script, frame: []byte("jpeg")}
			c := newTestContext(t, nil, camera)

			writer := newBrokenWriter(ok)
			c.Stream(writer, httptest.NewRequest(http.MethodGet, "/image-stream", nil))

			captures, released := camera.counts()
			if captures != released {
				t.Errorf("captured %d frames but released %d", captures, released)
			}
			if want := ok/3 + 1; captures != want {
				t.Errorf("captured %d frames, want %d", captures, want)
			}
			if got := testutil.ToFloat64(c.Metrics.Terminations.WithLabelValues("write")); got != 1 {
				t.Errorf("write terminations = %v", got)
			}
		})
	}
}

func TestStreamCancelled(t *testing.T) {
	script := make([]error, 1000)
	camera := &scriptedCamera{script: script, frame: []byte("jpeg")}
	c := newTestContext(t, nil, camera)
	c.FrameInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	request := httptest.NewRequest(http.MethodGet, "/image-stream", nil).WithContext(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.Stream(httptest.NewRecorder(), request)
	}()

	time.Sleep(35 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop after the client went away")
	}

	captures, released := camera.counts()
	if captures == 0 || captures != released {
		t.Errorf("captured %d, released %d", captures, released)
	}
	if got := testutil.ToFloat64(c.Metrics.Terminations.WithLabelValues("cancelled")); got != 1 {
		t.Errorf("cancelled terminations = %v", got)
	}
}

func TestStreamSessionResetsLastFrame(t *testing.T) {
	camera := &scriptedCamera{script: []error{nil}, frame: []byte("jpeg")}
	c := newTestContext(t, nil, camera)
	session := &streamSession{c: c, writer: newChunkWriter(httptest.NewRecorder())}
	session.run(context.Background())

	if !session.lastFrame.IsZero() {
		t.Errorf("lastFrame = %v after termination", session.lastFrame)
	}
	if session.state != StreamTerminated || session.reason != ReasonCapture {
		t.Errorf("state = %s, reason = %s", session.state, session.reason)
	}
	if !errors.Is(session.err, errScripted) {
		t.Errorf("err = %v", session.err)
	}
	if session.frames != 1 {
		t.Errorf("frames = %d", session.frames)
	}
}
