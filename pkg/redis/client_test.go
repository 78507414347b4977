package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func TestConnectURL(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer client.Close()

	if err := Pinger(client)(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestConnectAddrs(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := Connect(context.Background(), Config{Addrs: []string{mr.Addr()}})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	_ = client.Close()
}

func TestConnectRequiresTarget(t *testing.T) {
	if _, err := Connect(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without url or address")
	}
	if _, err := Connect(context.Background(), Config{URL: "://bad"}); err == nil {
		t.Fatal("expected error for malformed url")
	}
}
