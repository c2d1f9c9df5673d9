// Command seed fills the database with generated ride stories for development.
package main

import (
	"context"
	"flag"
	"log"

	"fourwcycle/internal/config"
	"fourwcycle/internal/seed"
	"fourwcycle/internal/server"
)

func main() {
	count := flag.Int("count", 20, "Number of stories to create")
	approved := flag.Float64("approved", 0.5, "Share of stories to approve")
	rejected := flag.Float64("rejected", 0.2, "Share of stories to reject")
	photos := flag.Int("photos", 3, "Maximum photos per story")
	seedValue := flag.Int64("seed", 0, "Random seed (0 = random)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if cfg.IsProduction() {
		log.Fatal("Refusing to seed a production database")
	}

	srv, err := server.NewServer(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() { _ = srv.Shutdown(context.Background()) }()

	log.Printf("Seeding %d stories (approved=%.2f rejected=%.2f)", *count, *approved, *rejected)
	result, err := seed.NewSeeder(srv.Submissions(), *seedValue).Run(context.Background(), seed.Options{
		Count:         *count,
		ApprovedRatio: *approved,
		RejectedRatio: *rejected,
		MaxPhotos:     *photos,
	})
	if err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}

	log.Printf("Created %d stories: %d pending, %d approved, %d rejected",
		result.Total(), len(result.Pending), len(result.Approved), len(result.Rejected))
}
