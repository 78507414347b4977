package server

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/addanuj/mcp-client/pkg/logging"
	"github.com/addanuj/mcp-client/pkg/monitoring"
)

func quietLogger() logging.Logger {
	logger := logging.NewLogger()
	logger.SetOutput(io.Discard)
	return logger
}

func TestSetupServiceRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hc := monitoring.NewHealthChecker("svc", "v1")
	hc.AddCheck("ok", func() monitoring.CheckResult { return monitoring.CheckResult{Status: monitoring.StatusHealthy} })
	r := SetupServiceRouter(quietLogger(), "svc", hc, nil)
	r.GET("/ping", func(c *gin.Context) { c.String(200, "pong") })

	for _, path := range []string{"/ping", "/health"} {
		w := httptest.NewRecorder()
		req, _ := http.NewRequestWithContext(context.Background(), "GET", path, nil)
		r.ServeHTTP(w, req)
		if w.Code != 200 {
			t.Fatalf("%s: expected 200, got %d", path, w.Code)
		}
		if w.Header().Get("X-Request-ID") == "" {
			t.Fatalf("%s: expected request id header", path)
		}
	}
}

func TestServeShutsDownOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })

	done := make(chan error, 1)
	go func() { done <- Serve(ctx, Config{ServiceName: "svc"}, ln, handler, quietLogger()) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
