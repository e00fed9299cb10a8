package main

import (
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"rideon/pkg/docscan"
	"rideon/pkg/draft"
	"rideon/pkg/flow"
	"rideon/pkg/review"
	"rideon/pkg/uploader"
)

var jwtSecret []byte // loaded from env JWT_SECRET (fallback to dev default)

// shared server state, initialized in main / setupFlow
var (
	flowCtl      *flow.Controller
	docRunner    *uploader.Runner
	reviewClient *review.Client
	draftStore   *draft.Store
)

func main() {
	// Auto-load ./.env if present before reading vars
	if err := godotenv.Load(); err != nil {
		log.Println("no .env file loaded")
	}
	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		secret = "dev-insecure-secret-change" // development fallback
	}
	jwtSecret = []byte(secret)

	// Support a lightweight migrate command: `./rideon migrate`
	// It runs AutoMigrate and seeding then exits. Useful for CI or manual DB setup.
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		initDB()
		fmt.Println("migration and seeding completed")
		return
	}

	initDB()

	if err := setupFlow(); err != nil {
		log.Fatalf("flow init failed: %v", err)
	}
	defer draftStore.Close()

	r := gin.Default()

	setupRoutes(r)

	r.Run(":8081")
}

// setupFlow wires the onboarding engine: gate, draft persistence, controller,
// upload runner and review client.
func setupFlow() error {
	var err error
	draftStore, err = draft.Open(draftDir())
	if err != nil {
		return err
	}

	flowCtl = flow.NewController(flow.NewGate(), draftStore, func(userID uint, data flow.CollectedData) {
		log.Printf("onboarding finalized for user=%d documents=%d", userID, len(data.Documents))
	})

	docRunner = uploader.New(uploadBaseDir())
	if os.Getenv("DOCSCAN_DISABLE") == "" {
		docRunner.Scan = docscan.Legibility
	}

	reviewClient = review.New(os.Getenv("REVIEW_URL"))
	return nil
}

// draftDir returns the BadgerDB directory for session drafts (DRAFT_DIR env).
func draftDir() string {
	if v := os.Getenv("DRAFT_DIR"); v != "" {
		return v
	}
	return "draftdb"
}

// uploadBaseDir returns the base directory for stored documents (configurable via UPLOAD_BASE env)
func uploadBaseDir() string {
	if v := os.Getenv("UPLOAD_BASE"); v != "" {
		return v
	}
	return "uploads"
}
