package authority

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, h http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)
	c, err := NewClient(Config{URL: ts.URL + "/nfse", Timeout: timeout, HTTPClient: ts.Client()})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestSubmitAccepted(t *testing.T) {
	var gotType, gotBody, gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "ok", "message": "NFS-e processada com sucesso.", "protocolo": "PROT-000123"}`))
	}, time.Second)

	res := c.Submit(context.Background(), []byte("<NFe/>"))
	acc, ok := res.(Accepted)
	if !ok {
		t.Fatalf("result = %#v, want Accepted", res)
	}
	if acc.Protocol != "PROT-000123" {
		t.Errorf("protocol = %q", acc.Protocol)
	}
	if acc.Raw != `{"status":"ok","message":"NFS-e processada com sucesso.","protocolo":"PROT-000123"}` {
		t.Errorf("raw = %s", acc.Raw)
	}
	if gotType != "application/xml" || gotBody != "<NFe/>" || gotPath != "/nfse" {
		t.Errorf("request = %q %q %q", gotType, gotBody, gotPath)
	}
}

func TestSubmitRejected422(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"error","message":"unavailable","protocolo":"PROT-000999"}`))
	}, time.Second)

	res := c.Submit(context.Background(), []byte("<NFe/>"))
	rej, ok := res.(Rejected)
	if !ok {
		t.Fatalf("result = %#v, want Rejected", res)
	}
	if rej.Protocol == nil || *rej.Protocol != "PROT-000999" {
		t.Errorf("protocol = %v", rej.Protocol)
	}
	if rej.Message != "unavailable" || rej.StatusCode != 422 {
		t.Errorf("rejected = %+v", rej)
	}
	if !strings.Contains(rej.Raw, `"protocolo":"PROT-000999"`) {
		t.Errorf("raw = %s", rej.Raw)
	}
}

func TestSubmitBusinessErrorOn200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","message":"CNPJ inválido"}`))
	}, time.Second)

	rej, ok := c.Submit(context.Background(), nil).(Rejected)
	if !ok {
		t.Fatal("want Rejected")
	}
	if rej.Protocol != nil || rej.Message != "CNPJ inválido" {
		t.Errorf("rejected = %+v", rej)
	}
}

func TestSubmitNonJSONError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway down", http.StatusBadGateway)
	}, time.Second)

	rej, ok := c.Submit(context.Background(), nil).(Rejected)
	if !ok {
		t.Fatal("want Rejected")
	}
	if rej.Message != "gateway down" || rej.Raw != `"gateway down"` || rej.StatusCode != 502 {
		t.Errorf("rejected = %+v", rej)
	}
}

func TestSubmitUndecodable200(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html>ok</html>`))
	}, time.Second)

	rej, ok := c.Submit(context.Background(), nil).(Rejected)
	if !ok {
		t.Fatal("want Rejected")
	}
	if !strings.HasPrefix(rej.Message, "invalid authority response") {
		t.Errorf("message = %q", rej.Message)
	}
}

func TestSubmitTimeout(t *testing.T) {
	release := make(chan struct{})
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}, 50*time.Millisecond)
	defer close(release)

	start := time.Now()
	res := c.Submit(context.Background(), nil)
	if _, ok := res.(TransportFailure); !ok {
		t.Fatalf("result = %#v, want TransportFailure", res)
	}
	if time.Since(start) > 2*time.Second {
		t.Fatal("timeout was not enforced")
	}
}

func TestSubmitConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, _ := NewClient(Config{URL: url, Timeout: time.Second})
	tf, ok := c.Submit(context.Background(), nil).(TransportFailure)
	if !ok || tf.Message == "" {
		t.Fatalf("want TransportFailure with message, got %#v", tf)
	}
}

func TestNewClientRequiresURL(t *testing.T) {
	if _, err := NewClient(Config{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestIPv4HTTPClientRefusesIPv6(t *testing.T) {
	ln, err := net.Listen("tcp6", "[::1]:0")
	if err != nil {
		t.Skipf("no IPv6 loopback: %v", err)
	}
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})}
	go srv.Serve(ln)
	defer srv.Close()

	url := "http://" + ln.Addr().String() + "/webhook"
	resp, err := http.Post(url, "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("default client should reach the IPv6 listener: %v", err)
	}
	resp.Body.Close()

	if resp, err := NewIPv4HTTPClient(time.Second).Post(url, "application/json", strings.NewReader("{}")); err == nil {
		resp.Body.Close()
		t.Fatal("expected IPv4-only client to refuse an IPv6 address")
	}
}

func TestIPv4HTTPClientReachesIPv4(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	resp, err := NewIPv4HTTPClient(time.Second).Get(ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected %d, got %d", http.StatusNoContent, resp.StatusCode)
	}
}
