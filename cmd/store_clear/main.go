package main

import (
	"context"
	"log"
	"os"

	"github.com/mhutchins/arbmon/internal/store"
)

func main() {
	path := os.Getenv("SQLITE_PATH")
	s, err := store.Open(path)
	if err != nil {
		log.Fatalf("open sqlite: %v", err)
	}
	defer s.Close()

	n, err := s.ClearAll(context.Background())
	if err != nil {
		log.Fatalf("clear matches: %v", err)
	}
	log.Printf("cleared %d matched pairs from %s", n, s.Path())
}
