package app

import (
	"net/http"
	"testing"
)

func TestNewHighThroughputHTTPClient_Config(t *testing.T) {
	c := newHighThroughputHTTPClient(true)
	if c.Timeout == 0 {
		t.Fatalf("expected non-zero timeout")
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("expected *http.Transport, got %T", c.Transport)
	}
	if tr == http.DefaultTransport {
		t.Fatalf("transport should not be default")
	}
	if tr.Proxy == nil {
		t.Fatalf("proxy from environment expected")
	}
}

func TestNewHighThroughputHTTPClient_SSLVerify(t *testing.T) {
	tests := []struct {
		name      string
		sslVerify bool
		wantSkip  bool
	}{
		{"verification enabled", true, false},
		{"verification disabled", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newHighThroughputHTTPClient(tt.sslVerify)
			transport, ok := client.Transport.(*http.Transport)
			if !ok {
				t.Fatalf("expected *http.Transport, got %T", client.Transport)
			}
			var actualSkip bool
			if transport.TLSClientConfig != nil {
				actualSkip = transport.TLSClientConfig.InsecureSkipVerify
			}
			if actualSkip != tt.wantSkip {
				t.Errorf("sslVerify=%v: expected InsecureSkipVerify=%v, got %v", tt.sslVerify, tt.wantSkip, actualSkip)
			}
		})
	}
}
