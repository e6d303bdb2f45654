package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

// Benchmark the fetch.Client under different concurrency limits.
func BenchmarkClient_FetchConcurrency(b *testing.B) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><head><title>ok</title></head><body><main><p>hello</p></main></body></html>"))
	}))
	defer ts.Close()

	for _, conc := range []int{1, 8, 0} {
		cli := &Client{
			HTTPClient:        ts.Client(),
			UserAgent:         "bench/1",
			MaxAttempts:       1,
			PerRequestTimeout: 2 * time.Second,
			MaxConcurrent:     conc,
		}
		name := "unlimited"
		if conc > 0 {
			name = "conc=" + strconv.Itoa(conc)
		}
		b.Run(name, func(b *testing.B) {
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					if _, err := cli.Get(context.Background(), ts.URL+"/page"); err != nil {
						b.Fatalf("fetch failed: %v", err)
					}
				}
			})
		})
	}
}
