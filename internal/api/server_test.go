package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/quantpipe/pipeline-monitor/internal/config"
)

func TestServerServesAndShutsDown(t *testing.T) {
	f := newFixture(t, nil)

	srv, err := NewServer(config.ServerConfig{Address: "127.0.0.1:0", GracefulTimeout: time.Second}, f.router)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if srv.Address() == "" {
		t.Fatal("listener address empty")
	}
	if srv.GracefulTimeout() != time.Second {
		t.Errorf("graceful timeout = %v", srv.GracefulTimeout())
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	resp, err := http.Get("http://" + srv.Address() + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv.Shutdown(ctx)

	select {
	case err := <-serveErr:
		if err != nil {
			t.Errorf("Start returned %v after shutdown", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
