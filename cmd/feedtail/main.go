package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"dormwatch/internal/config"
	"dormwatch/internal/feed"
	"dormwatch/internal/store"
)

// feedtail subscribes to the redis scan feed and prints every result.
// Handy for watching a gate from a terminal or piping into other tooling.
func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	f := feed.NewRedisFeed(redisClient.Client, "dormwatch:scans")

	sub, err := f.Subscribe(ctx)
	if err != nil {
		log.Fatalf("feed subscribe failed: %v", err)
	}
	defer sub.Close()

	log.Println("feedtail started, waiting for scans...")
	for {
		select {
		case payload, ok := <-sub.C():
			if !ok {
				log.Println("feed closed")
				return
			}
			os.Stdout.Write(append(payload, '\n'))
		case <-ctx.Done():
			log.Println("feedtail stopped")
			return
		}
	}
}
