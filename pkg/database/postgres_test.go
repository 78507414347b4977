package database

import (
	"context"
	"io"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"
)

func TestConnectRequiresURL(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	if _, err := Connect(context.Background(), DefaultConfig(), logger); err == nil {
		t.Fatal("expected error without URL")
	}
}

func TestConfigureAppliesPoolSettings(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer func() { _ = db.Close() }()

	Configure(db, Config{MaxOpenConns: 3})
	if got := db.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("expected max open conns 3, got %d", got)
	}

	Configure(db, Config{})
	if got := db.Stats().MaxOpenConnections; got != 3 {
		t.Fatalf("zero config must keep previous settings, got %d", got)
	}
}
