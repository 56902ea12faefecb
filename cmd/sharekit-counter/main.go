// main is a small demo client: it subscribes the (examples, counter)
// document, increments numClicks and logs every update from the server.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"time"

	sharekit "github.com/LSX-s-Software/share-kit"
)

// Counter is the demo entity.
type Counter struct {
	NumClicks int64 `json:"numClicks"`
}

func main() {
	// 1. Configuration
	url := os.Getenv("SHAREKIT_URL")
	if url == "" {
		url = "ws://localhost:8080"
	}
	cfg := sharekit.DefaultConfig(url)
	if path := os.Getenv("SHAREKIT_CONFIG"); path != "" {
		var err error
		cfg, err = sharekit.LoadConfig(path)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
	}
	if cachePath := os.Getenv("SHAREKIT_CACHE"); cachePath != "" {
		cfg.CachePath = cachePath
	}

	// 2. Connect and subscribe once the identity arrives.
	ctx := context.Background()
	conn, err := sharekit.Connect(ctx, cfg, func(c *sharekit.Connection) {
		doc, err := sharekit.SubscribeDocument[Counter](ctx, c, "examples", "counter")
		if err != nil {
			log.Printf("subscribe: %v", err)
			return
		}

		go func() {
			for counter := range doc.Watch() {
				log.Printf("numClicks = %d", counter.NumClicks)
			}
		}()

		// 3. Increment once a second.
		go func() {
			ticker := time.NewTicker(time.Second)
			defer ticker.Stop()
			for range ticker.C {
				if doc.State() != sharekit.StateReady {
					continue
				}
				err := doc.Change(ctx, func(p *sharekit.Proxy) error {
					return p.Key("numClicks").Add(1)
				})
				if err != nil {
					log.Printf("change: %v", err)
				}
			}
		}()
	})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.SyncShutdown()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)
	<-stop
}
