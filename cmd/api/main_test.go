package main

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"homelinka/config"
	"homelinka/logging"
	"homelinka/ratelimit"
)

func TestNewLimiter_InMemoryWithoutRedis(t *testing.T) {
	log := logging.NewWithOutput(io.Discard, "error", false)
	limiter, closeFn, err := newLimiter(context.Background(), config.Config{LoginRateLimit: 5, LoginRateWindow: time.Minute}, log)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	defer closeFn()
	if _, ok := limiter.(*ratelimit.InMemoryLimiter); !ok {
		t.Fatalf("expected in-memory limiter, got %T", limiter)
	}
}

func TestNewLimiter_DisabledByZeroLimit(t *testing.T) {
	log := logging.NewWithOutput(io.Discard, "error", false)
	limiter, closeFn, err := newLimiter(context.Background(), config.Config{RedisURL: "redis://unused:6379"}, log)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	defer closeFn()
	if limiter != nil {
		t.Fatalf("expected nil limiter, got %T", limiter)
	}
}

func TestNewLimiter_BadRedisURL(t *testing.T) {
	log := logging.NewWithOutput(io.Discard, "error", false)
	_, _, err := newLimiter(context.Background(), config.Config{LoginRateLimit: 5, LoginRateWindow: time.Minute, RedisURL: "://nope"}, log)
	if err == nil {
		t.Fatal("expected error for malformed redis url")
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	log := logging.NewWithOutput(io.Discard, "error", false)
	ctx, cancel := context.WithCancel(context.Background())

	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}
	done := make(chan error, 1)
	go func() { done <- serve(ctx, srv, time.Second, log) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("serve: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}
