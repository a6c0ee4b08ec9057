package generate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// countingTransport - 네트워크 호출 횟수 추적용
type countingTransport struct {
	calls int
	inner http.RoundTripper
}

func (c *countingTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	c.calls++
	return c.inner.RoundTrip(r)
}

func TestToBase64DataURLPassesThroughDataURLs(t *testing.T) {
	transport := &countingTransport{inner: http.DefaultTransport}
	s := &Service{httpClient: &http.Client{Transport: transport}}

	in := "data:image/png;base64,iVBORw0KGgo="
	out, err := s.ToBase64DataURL(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != in {
		t.Fatalf("data URL must be returned unchanged")
	}
	if transport.calls != 0 {
		t.Fatalf("no network call expected for data URLs, got %d", transport.calls)
	}
}

func TestToBase64DataURLFetchesRemoteImages(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte{0x89, 0x50, 0x4e, 0x47})
	}))
	defer ts.Close()

	s := &Service{httpClient: ts.Client()}

	out, err := s.ToBase64DataURL(context.Background(), ts.URL+"/photo.png")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "data:image/png;base64,") {
		t.Fatalf("expected png data URL, got %s", out[:40])
	}
}

func TestToBase64DataURLStripsMimeParameters(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg; charset=binary")
		fmt.Fprint(w, "jpegbytes")
	}))
	defer ts.Close()

	s := &Service{httpClient: ts.Client()}

	out, err := s.ToBase64DataURL(context.Background(), ts.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(out, "data:image/jpeg;base64,") {
		t.Fatalf("mime parameters should be stripped, got %s", out[:40])
	}
}

func TestToBase64DataURLReportsUpstreamStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer ts.Close()

	s := &Service{httpClient: ts.Client()}

	_, err := s.ToBase64DataURL(context.Background(), ts.URL)
	if err == nil {
		t.Fatalf("expected error for 404 upstream")
	}
	if !strings.Contains(err.Error(), "404") {
		t.Fatalf("error should mention upstream status, got %v", err)
	}
}

func TestFilterImageInputs(t *testing.T) {
	in := []string{
		"data:image/png;base64,AAAA",
		"https://example.com/a.jpg",
		"ftp://example.com/bad",
		"javascript:alert(1)",
		"",
		"http://example.com/b.jpg",
		"https://example.com/c.jpg",
		"https://example.com/d.jpg",
	}

	out := FilterImageInputs(in)
	if len(out) != 3 {
		t.Fatalf("expected 3 inputs after filter+truncate, got %d: %v", len(out), out)
	}
	for _, ref := range out {
		if strings.HasPrefix(ref, "ftp:") || strings.HasPrefix(ref, "javascript:") {
			t.Fatalf("invalid scheme survived the filter: %s", ref)
		}
	}
}
