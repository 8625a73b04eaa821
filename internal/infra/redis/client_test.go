package redis

import (
	"context"
	"strconv"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/arklim/account-auth-service/internal/infra/config"
)

func TestNewClientPingsServer(t *testing.T) {
	server := miniredis.RunT(t)
	host, portStr, _ := strings.Cut(server.Addr(), ":")
	port, _ := strconv.Atoi(portStr)

	client, err := NewClient(context.Background(), config.RedisSettings{Host: host, Port: port, PoolSize: 2}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck returned error: %v", err)
	}
	if client.Stats() == nil {
		t.Fatal("expected pool stats")
	}
}

func TestNewClientFailsWhenUnreachable(t *testing.T) {
	server := miniredis.RunT(t)
	host, portStr, _ := strings.Cut(server.Addr(), ":")
	port, _ := strconv.Atoi(portStr)
	server.Close()

	if _, err := NewClient(context.Background(), config.RedisSettings{Host: host, Port: port}, zaptest.NewLogger(t)); err == nil {
		t.Fatal("expected ping failure")
	}
}
