// Command seed creates a development database with a demo account and
// sample public-domain audiobooks in various pipeline states.
// Usage: go run cmd/seed/main.go [-db path/to/dev.db]
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/kitaabse/audiobooks/internal/auth"
	"github.com/kitaabse/audiobooks/internal/config"
	"github.com/kitaabse/audiobooks/internal/database"
	"github.com/kitaabse/audiobooks/internal/database/books"
	"github.com/kitaabse/audiobooks/internal/database/pages"
	"github.com/kitaabse/audiobooks/internal/entities"
)

const defaultDatabasePath = "./dev.db"

func main() {
	dbPath := flag.String("db", defaultDatabasePath, "path to the development database file")
	flag.Parse()

	log.Printf("Seeding development database at %s...", *dbPath)

	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatalf("Failed to remove existing database: %v", err)
	}

	db, err := database.NewDatabase(*dbPath)
	if err != nil {
		log.Fatalf("Failed to create database: %v", err)
	}
	defer db.Close()

	authService := auth.NewService(db.DB, config.Auth{
		TokenExpiry: 24 * time.Hour,
		BcryptCost:  10,
	})
	demo, err := authService.Register("demo", "demo@example.com", "demo-password")
	if err != nil {
		log.Fatalf("Failed to create demo user: %v", err)
	}
	log.Printf("Created user %q (password: demo-password)", demo.Username)

	booksRepo := books.NewRepository(db.DB)
	pagesRepo := pages.NewRepository(db.DB)

	for _, seed := range sampleBooks(demo.ID) {
		book := seed.book
		if err := booksRepo.Create(&book); err != nil {
			log.Printf("Failed to save book %s: %v", book.Title, err)
			continue
		}
		if len(seed.pages) > 0 {
			if err := pagesRepo.BulkCreate(book.ID, seed.pages); err != nil {
				log.Printf("Failed to create pages for %s: %v", book.Title, err)
				continue
			}
		}
		if seed.completed {
			for _, p := range seed.pages {
				if err := pagesRepo.MarkCompleted(book.ID, p.PageNumber, "", 30); err != nil {
					log.Printf("Failed to complete page %d of %s: %v", p.PageNumber, book.Title, err)
				}
			}
			if err := booksRepo.UpdateProgress(book.ID); err != nil {
				log.Printf("Failed to aggregate progress for %s: %v", book.Title, err)
			}
		}
		log.Printf("Saved: %s by %s (%d pages)", book.Title, book.Author, len(seed.pages))
	}

	log.Println("Development database seeded successfully!")
}

type bookSeed struct {
	book      entities.Book
	pages     []entities.BookPage
	completed bool
}

func sampleBooks(uploaderID uint) []bookSeed {
	return []bookSeed{
		{
			book: entities.Book{
				UploaderID:       uploaderID,
				Title:            "The Art of War",
				Author:           "Sun Tzu",
				Description:      "An ancient Chinese treatise on strategy.",
				Language:         "en",
				Genre:            "philosophy",
				IsPublic:         true,
				IsActive:         true,
				ProcessingStatus: entities.StatusProcessing,
			},
			pages: []entities.BookPage{
				{PageNumber: 1, TextContent: "Sun Tzu said: The art of war is of vital importance to the State."},
				{PageNumber: 2, TextContent: "It is a matter of life and death, a road either to safety or to ruin."},
				{PageNumber: 3, TextContent: "Hence it is a subject of inquiry which can on no account be neglected."},
			},
			completed: true,
		},
		{
			book: entities.Book{
				UploaderID:       uploaderID,
				Title:            "Meditations",
				Author:           "Marcus Aurelius",
				Description:      "Personal writings of the Roman emperor on Stoic philosophy.",
				Language:         "en",
				Genre:            "philosophy",
				IsPublic:         true,
				IsActive:         true,
				ProcessingStatus: entities.StatusProcessing,
			},
			pages: []entities.BookPage{
				{PageNumber: 1, TextContent: "From my grandfather Verus I learned good morals and the government of my temper."},
				{PageNumber: 2, TextContent: "Begin the morning by saying to thyself, I shall meet with the busy-body."},
			},
		},
		{
			book: entities.Book{
				UploaderID:       uploaderID,
				Title:            "A Private Draft",
				Author:           "Demo User",
				Description:      "An unpublished upload, visible only to its owner.",
				Language:         "en",
				IsPublic:         false,
				IsActive:         true,
				ProcessingStatus: entities.StatusUploaded,
			},
		},
	}
}
