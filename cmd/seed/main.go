// Command main runs the database seeder for Driftboard.
package main

import (
	"flag"
	"log"

	"driftboard/internal/cache"
	"driftboard/internal/config"
	"driftboard/internal/database"
	"driftboard/internal/search"
	"driftboard/internal/seed"
)

func main() {
	numUsers := flag.Int("users", 25, "number of users to create")
	numPosts := flag.Int("posts", 100, "number of posts to create")
	clean := flag.Bool("clean", false, "truncate existing data first")
	skipBcrypt := flag.Bool("skip-bcrypt", false, "store plaintext passwords (fast dev seeding only)")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	cache.InitRedis(cfg.RedisURL)
	index := search.NewIndex(cache.GetClient())

	if err := seed.Seed(db, index, seed.Options{
		NumUsers:    *numUsers,
		NumPosts:    *numPosts,
		ShouldClean: *clean,
		SkipBcrypt:  *skipBcrypt,
	}); err != nil {
		log.Fatalf("Seeding failed: %v", err)
	}
}
