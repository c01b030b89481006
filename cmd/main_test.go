package main

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/ukydev/fleet-maintenance/internal/config"
)

func TestServe_ShutsDownOnCancel(t *testing.T) {
	logger, hook := test.NewNullLogger()
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, logger) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	assert.Equal(t, "Shutting down", hook.LastEntry().Message)
}

func TestServe_ListenError(t *testing.T) {
	logger, _ := test.NewNullLogger()
	srv := &http.Server{Addr: "127.0.0.1:-1"}

	err := serve(context.Background(), srv, logger)

	assert.Error(t, err)
}

func TestRun_RequiresJWTSecret(t *testing.T) {
	logger, _ := test.NewNullLogger()
	cfg := config.Config{MongoURI: "mongodb://127.0.0.1:1", JWTSecret: ""}

	err := run(context.Background(), cfg, logger)

	assert.EqualError(t, err, "jwt secret is required")
}
