package test

import (
	"context"

	"github.com/redis/go-redis/v9"
	verikit "github.com/verikit/verikit"
)

// ExampleNew demonstrates engine construction with production-style dependencies.
func ExampleNew() {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})

	engine, _ := verikit.New().
		WithRedis(rdb).
		Build()
	_ = engine
}

// ExampleEngine_GenerateCode shows a typical issuance call and result handling.
func ExampleEngine_GenerateCode() {
	var engine *verikit.Engine
	result, err := engine.GenerateCode(context.Background(), verikit.GenerateRequest{
		Email:     "alice@example.com",
		Type:      verikit.TypeEmailVerification,
		IPAddress: "203.0.113.10",
		UserAgent: "example/1.0",
	})
	if err != nil {
		_ = err
	}
	_ = result
}

// ExampleEngine_MetricsSnapshot shows how to read in-process metric counters.
func ExampleEngine_MetricsSnapshot() {
	var engine *verikit.Engine
	snapshot := engine.MetricsSnapshot()
	_ = snapshot
}
