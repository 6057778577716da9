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

	if err := s.CreateTables(context.Background()); err != nil {
		log.Fatalf("create tables: %v", err)
	}
	log.Printf("matched-pairs table ready at %s", s.Path())
}
