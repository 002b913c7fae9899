package handler

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"camfs/internal/oe"
)

func TestDownloadFile(t *testing.T) {
	payload := strings.Repeat("0123456789abcdef", 1500)
	c := newTestContext(t, newTestFs(t, map[string]string{
		"/photos/img1.jpeg": payload,
		"/doc.PDF":          "%PDF-1.4",
		"/notes":            "plain",
	}), nil)

	testCases := []struct {
		target      string
		contentType string
		body        string
	}{
		{"/photos/img1.jpeg", "image/jpeg", payload},
		{"/photos/img1.jpeg?download=1", "image/jpeg", payload},
		{"/doc.PDF", "application/pdf", "%PDF-1.4"},
		{"/notes#top", "text/plain", "plain"},
	}
	for _, tc := range testCases {
		recorder := serve(c.Download, http.MethodGet, tc.target)
		if recorder.Code != http.StatusOK {
			t.Errorf("%s: status = %d", tc.target, recorder.Code)
			continue
		}
		if got := recorder.Header().Get("Content-Type"); got != tc.contentType {
			t.Errorf("%s: Content-Type = %q, want %q", tc.target, got, tc.contentType)
		}
		if recorder.Header().Get("Content-Length") != "" {
			t.Errorf("%s: Content-Length set on a chunked download", tc.target)
		}
		if !recorder.Flushed {
			t.Errorf("%s: body was not flushed", tc.target)
		}
		if recorder.Body.String() != tc.body {
			t.Errorf("%s: body of %d bytes, want %d", tc.target, recorder.Body.Len(), len(tc.body))
		}
	}
	if got := testutil.ToFloat64(c.Metrics.Downloaded); got != float64(2*len(payload)+len("%PDF-1.4")+len("plain")) {
		t.Errorf("downloaded bytes = %v", got)
	}
}

func TestDownloadEmptyFile(t *testing.T) {
	c := newTestContext(t, newTestFs(t, map[string]string{"/empty.html": ""}), nil)
	recorder := serve(c.Download, http.MethodGet, "/empty.html")
	if recorder.Code != http.StatusOK || recorder.Body.Len() != 0 {
		t.Errorf("status = %d, body = %q", recorder.Code, recorder.Body.String())
	}
	if got := recorder.Header().Get("Content-Type"); got != "text/html" {
		t.Errorf("Content-Type = %q", got)
	}
}

func TestDownloadListing(t *testing.T) {
	fs := newTestFs(t, map[string]string{
		"/photos/a.jpg":                              "aaaa",
		"/photos/b c.jpg":                            "bb",
		"/photos/nested/x.jpeg":                      "x",
		"/" + oe.ReservedName + "/IndexerVolumeGuid": "guid",
	})
	if err := fs.MkdirAll(testBase + "/photos/" + oe.ReservedName); err != nil {
		t.Fatal(err)
	}
	c := newTestContext(t, fs, nil)

	recorder := serve(c.Download, http.MethodGet, "/photos/")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", recorder.Code, recorder.Body.String())
	}
	body := recorder.Body.String()
	for _, want := range []string{
		"<h2>Files in /photos/</h2>",
		`<a href="/photos/a.jpg">a.jpg</a>`,
		`<a href="/photos/b%20c.jpg">b c.jpg</a>`,
		`<a href="/photos/nested/">nested</a>`,
		`<form method="post" action="/delete/photos/a.jpg">`,
		`<form method="post" action="/delete/photos/b%20c.jpg">`,
		"<td>directory</td>",
		"<td title=\"4 B\">4</td>",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("listing lacks %s\n%s", want, body)
		}
	}
	if strings.Contains(body, oe.ReservedName) {
		t.Errorf("listing shows %q", oe.ReservedName)
	}

	root := serve(c.Download, http.MethodGet, "/").Body.String()
	if !strings.Contains(root, `<a href="/photos/">photos</a>`) || strings.Contains(root, oe.ReservedName) {
		t.Errorf("root listing:\n%s", root)
	}
}

func TestDownloadDirectoryRequestNeverOpensFile(t *testing.T) {
	vol := &spyVolume{Fs: newTestFs(t, map[string]string{"/report": "not a directory"})}
	c := newTestContext(t, vol, nil)

	recorder := serve(c.Download, http.MethodGet, "/report/")
	if recorder.Code != http.StatusInternalServerError {
		t.Errorf("status = %d", recorder.Code)
	}
	if vol.opens != 0 {
		t.Errorf("directory request opened %d files", vol.opens)
	}
}

func TestDownloadMissing(t *testing.T) {
	c := newTestContext(t, newTestFs(t, nil), nil)

	recorder := serve(c.Download, http.MethodGet, "/nope.jpeg")
	if recorder.Code != http.StatusNotFound || !strings.Contains(recorder.Body.String(), "File does not exist") {
		t.Errorf("missing file: %d %q", recorder.Code, recorder.Body.String())
	}

	recorder = serve(c.Download, http.MethodGet, "/index.html")
	if recorder.Code != http.StatusTemporaryRedirect || recorder.Header().Get("Location") != "/" {
		t.Errorf("index.html: %d %v", recorder.Code, recorder.Header())
	}

	recorder = serve(c.Download, http.MethodGet, "/favicon.ico")
	if recorder.Code != http.StatusOK || recorder.Header().Get("Content-Type") != "image/x-icon" {
		t.Errorf("favicon.ico: %d %v", recorder.Code, recorder.Header())
	}
	if !bytes.Equal(recorder.Body.Bytes(), favicon) {
		t.Error("favicon.ico is not the embedded icon")
	}
}

func TestDownloadPrefersStoredFiles(t *testing.T) {
	c := newTestContext(t, newTestFs(t, map[string]string{
		"/index.html":  "<html>home</html>",
		"/favicon.ico": "stored icon",
	}), nil)

	if body := serve(c.Download, http.MethodGet, "/index.html").Body.String(); body != "<html>home</html>" {
		t.Errorf("index.html body = %q", body)
	}
	if body := serve(c.Download, http.MethodGet, "/favicon.ico").Body.String(); body != "stored icon" {
		t.Errorf("favicon.ico body = %q", body)
	}
}

func TestDownloadFaviconAsset(t *testing.T) {
	c := newTestContext(t, newTestFs(t, nil), nil)
	c.Assets = newTestFs(t, nil)
	if err := c.Assets.WriteFile("/favicon.ico", []byte("custom")); err != nil {
		t.Fatal(err)
	}
	if body := serve(c.Download, http.MethodGet, "/favicon.ico").Body.String(); body != "custom" {
		t.Errorf("favicon.ico body = %q", body)
	}
}

func TestDownloadFaviconAssetType(t *testing.T) {
	name := filepath.Join(t.TempDir(), "icon.png")
	if err := os.WriteFile(name, []byte("\x89PNG"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := newTestContext(t, newTestFs(t, nil), nil)
	c.Assets = newTestFs(t, nil)
	if err := c.Assets.FromFile("/favicon.ico", name, func([]byte) (string, error) {
		return "image/png", nil
	}); err != nil {
		t.Fatal(err)
	}

	recorder := serve(c.Download, http.MethodGet, "/favicon.ico")
	if got := recorder.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type = %q", got)
	}
	if recorder.Body.String() != "\x89PNG" {
		t.Errorf("body = %q", recorder.Body.String())
	}
}

// deadlineRecorder records every write deadline set through a
// ResponseController.
type deadlineRecorder struct {
	*httptest.ResponseRecorder
	deadlines []time.Time
}

func (w *deadlineRecorder) SetWriteDeadline(deadline time.Time) error {
	w.deadlines = append(w.deadlines, deadline)
	return nil
}

func TestDownloadRenewsWriteDeadline(t *testing.T) {
	payload := strings.Repeat("x", 3*ScratchSize+10)
	c := newTestContext(t, newTestFs(t, map[string]string{"/big.jpeg": payload}), nil)
	c.ChunkTimeout = time.Minute

	w := &deadlineRecorder{ResponseRecorder: httptest.NewRecorder()}
	before := time.Now()
	c.Download(w, httptestRequest("/big.jpeg"))

	if w.Body.String() != payload {
		t.Fatalf("sent %d of %d bytes", w.Body.Len(), len(payload))
	}
	if len(w.deadlines) != 4 {
		t.Errorf("%d deadlines set, want one per chunk", len(w.deadlines))
	}
	for i, deadline := range w.deadlines {
		if deadline.Before(before.Add(time.Minute)) || deadline.After(time.Now().Add(time.Minute)) {
			t.Errorf("deadline %d = %v, want about a minute ahead", i, deadline)
		}
	}
}

func TestDownloadBadPaths(t *testing.T) {
	c := newTestContext(t, newTestFs(t, nil), nil)

	recorder := serve(c.Download, http.MethodGet, "/"+strings.Repeat("a", 64))
	if recorder.Code != http.StatusInternalServerError || !strings.Contains(recorder.Body.String(), "Filename too long") {
		t.Errorf("long path: %d %q", recorder.Code, recorder.Body.String())
	}

	recorder = serve(c.Download, http.MethodGet, "/a/%2e%2e/%2e%2e/etc/passwd")
	if recorder.Code != http.StatusBadRequest {
		t.Errorf("escaping path: %d %q", recorder.Code, recorder.Body.String())
	}
}

func TestDownloadDirectoryWithoutSlash(t *testing.T) {
	c := newTestContext(t, newTestFs(t, map[string]string{"/photos/a.jpeg": "a"}), nil)
	recorder := serve(c.Download, http.MethodGet, "/photos")
	if recorder.Code != http.StatusMovedPermanently || recorder.Header().Get("Location") != "/photos/" {
		t.Errorf("status = %d, Location = %q", recorder.Code, recorder.Header().Get("Location"))
	}
}

func TestDownloadAbortsOnWriteFailure(t *testing.T) {
	payload := strings.Repeat("x", 10*ScratchSize)
	vol := &spyVolume{Fs: newTestFs(t, map[string]string{"/big.jpeg": payload})}
	c := newTestContext(t, vol, nil)

	writer := newBrokenWriter(2)
	c.Download(writer, httptestRequest("/big.jpeg"))

	if writer.status != http.StatusOK {
		t.Errorf("status = %d", writer.status)
	}
	if writer.body.Len() != 2*ScratchSize {
		t.Errorf("delivered %d bytes, want %d", writer.body.Len(), 2*ScratchSize)
	}
	if vol.read > 3*ScratchSize {
		t.Errorf("kept reading after the write failed: %d bytes read", vol.read)
	}
}
