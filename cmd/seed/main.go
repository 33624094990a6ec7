// seed inserts a development fleet inventory for local testing.
// Idempotent: each device is inserted with ON CONFLICT DO NOTHING.
package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"ota-control-plane/internal/config"
	"ota-control-plane/internal/db"
)

// The dev fleet mirrors a small production slice: mostly thermostats with a
// couple of canary-flagged units, plus a handful of door locks with one.
var seedDevices = []struct {
	deviceType string
	count      int
	canaries   int
}{
	{deviceType: "thermostat-v2", count: 20, canaries: 2},
	{deviceType: "doorlock-v1", count: 8, canaries: 1},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	pool, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer pool.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	inserted := 0
	for _, group := range seedDevices {
		for i := 0; i < group.count; i++ {
			deviceID := fmt.Sprintf("%s-%03d", group.deviceType, i+1)
			canary := i < group.canaries
			res, err := pool.ExecContext(ctx, `
				INSERT INTO devices (device_id, device_type, canary_group)
				VALUES ($1, $2, $3)
				ON CONFLICT (device_id) DO NOTHING`,
				deviceID, group.deviceType, canary,
			)
			if err != nil {
				log.Fatalf("insert %s: %v", deviceID, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				inserted++
			}
		}
	}

	log.Printf("seed complete: %d new devices", inserted)
}
