package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"rideon/models"
	"rideon/pkg/docscan"
)

// Global DB handle for helper funcs
var db *gorm.DB

// global flags (parsed in main)
var (
	verbose      bool
	simulateScan bool
)

// preload cache: store_path -> record, so watch events avoid per-file queries
type preloadState struct {
	byPath map[string]*models.DocumentRecord
	mu     sync.RWMutex
}

func newPreloadState() *preloadState {
	return &preloadState{byPath: make(map[string]*models.DocumentRecord, 1024)}
}

func (ps *preloadState) get(path string) (*models.DocumentRecord, bool) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	r, ok := ps.byPath[path]
	return r, ok
}

func (ps *preloadState) put(r *models.DocumentRecord) {
	ps.mu.Lock()
	ps.byPath[r.StorePath] = r
	ps.mu.Unlock()
}

func mustInitDBFromEnv() *gorm.DB {
	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatalf("DB_DSN must be set in environment to run this tool")
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	return gdb
}

// Main: re-scans uploaded identity documents whose legibility scan failed or
// was skipped, writes scores back to document_records, optional watch mode.
func main() {
	dirFlag := flag.String("dir", "uploads/docs", "directory holding stored document images")
	dryRun := flag.Bool("dry-run", false, "Skip all DB queries and writes; just list / optionally scan (see --simulate-scan)")
	watch := flag.Bool("watch", false, "Watch directory for new files")
	workers := flag.Int("workers", 0, "Worker pool size (default NumCPU)")
	flag.BoolVar(&verbose, "verbose", false, "Verbose per-file logging")
	flag.BoolVar(&simulateScan, "simulate-scan", false, "In dry-run: actually run OCR to show legibility scores")
	flag.Parse()

	if *dryRun {
		log.Printf("Dry-run: scanning %s (no DB interaction)", *dirFlag)
		files := listImageFiles(*dirFlag)
		log.Printf("Found %d candidate files", len(files))
		if simulateScan {
			for _, f := range files {
				if res, err := docscan.ScanDocument(filepath.Join(*dirFlag, f)); err == nil {
					logV("scan %s legibility=%.2f id_found=%t", f, res.Legibility, res.IDNumber != "")
				}
			}
		}
		return
	}

	db = mustInitDBFromEnv()
	ps := preloadPending()
	log.Printf("Preloaded: pending scans=%d", len(ps.byPath))

	paths := make([]string, 0, len(ps.byPath))
	for p := range ps.byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	log.Printf("Rescanning %d documents (workers=%d)", len(paths), effectiveWorkers(*workers))
	runWorkerPool(ps, paths, effectiveWorkers(*workers))

	if *watch {
		if err := watchDirectory(*dirFlag, ps, effectiveWorkers(*workers)); err != nil {
			log.Fatalf("watch failed: %v", err)
		}
	}
}

func effectiveWorkers(w int) int {
	if w <= 0 {
		return runtime.NumCPU()
	}
	return w
}

func logV(format string, args ...any) {
	if verbose {
		log.Printf(format, args...)
	}
}

// preloadPending fetches records needing a (re)scan: failed scans and records
// never scored.
func preloadPending() *preloadState {
	ps := newPreloadState()
	var recs []models.DocumentRecord
	if err := db.Where("scan_failed = ? OR legibility = 0", true).Find(&recs).Error; err == nil {
		for i := range recs {
			r := recs[i]
			ps.byPath[r.StorePath] = &r
		}
	}
	return ps
}

func listImageFiles(dir string) []string {
	var out []string
	_ = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if isSupportedExt(d.Name()) {
			rel, _ := filepath.Rel(dir, path)
			out = append(out, rel)
		}
		return nil
	})
	sort.Strings(out)
	return out
}

func isSupportedExt(name string) bool {
	// ignore in-flight transfer files
	if strings.HasSuffix(name, ".part") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return true
	}
	return false
}

// rescanRecord runs the legibility scan for one stored document and persists
// the outcome. Never deletes records; failures are flagged for admin review.
func rescanRecord(path string, ps *preloadState) {
	rec, ok := ps.get(path)
	if !ok {
		var r models.DocumentRecord
		if err := db.Where("store_path = ?", path).First(&r).Error; err != nil {
			logV("no record for %s, skipping", path)
			return
		}
		rec = &r
		ps.put(rec)
	}
	res, err := docscan.ScanDocument(rec.StorePath)
	if err != nil {
		rec.ScanFailed = true
		rec.ScanFailedReason = err.Error()
		if derr := db.Model(&models.DocumentRecord{}).Where("id = ?", rec.ID).
			Updates(map[string]any{"scan_failed": true, "scan_failed_reason": rec.ScanFailedReason}).Error; derr != nil {
			log.Printf("update failed for %s: %v", path, derr)
		}
		logV("scan failed %s: %v", path, err)
		return
	}
	rec.Legibility = res.Legibility
	rec.ScanFailed = false
	rec.ScanFailedReason = ""
	if err := db.Model(&models.DocumentRecord{}).Where("id = ?", rec.ID).
		Updates(map[string]any{"legibility": res.Legibility, "scan_failed": false, "scan_failed_reason": ""}).Error; err != nil {
		log.Printf("update failed for %s: %v", path, err)
		return
	}
	logV("rescanned %s legibility=%.2f", path, res.Legibility)
}

func watchDirectory(dir string, ps *preloadState, workers int) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(dir); err != nil {
		return err
	}
	log.Printf("Watching %s (debounced) ...", dir)

	fileCh := make(chan string, 256)
	go func() {
		// simple debounce map of pending files
		pending := map[string]time.Time{}
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					close(fileCh)
					return
				}
				if ev.Op&fsnotify.Create == fsnotify.Create {
					if !isSupportedExt(filepath.Base(ev.Name)) {
						continue
					}
					pending[ev.Name] = time.Now()
				}
			case <-ticker.C:
				now := time.Now()
				for name, t := range pending {
					if now.Sub(t) > 300*time.Millisecond { // stable
						fileCh <- name
						delete(pending, name)
					}
				}
			case err, ok := <-w.Errors:
				if !ok {
					close(fileCh)
					return
				}
				log.Printf("watch error: %v", err)
			}
		}
	}()

	// Use worker pool for watch events too
	go runWorkerPool(ps, nil, workers, fileCh)
	// block forever (Ctrl+C to exit)
	select {}
}

// worker pool orchestrator
func runWorkerPool(ps *preloadState, initial []string, workers int, extraCh ...<-chan string) {
	fileCh := make(chan string, 1024)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range fileCh {
				rescanRecord(path, ps)
			}
		}()
	}
	go func() {
		for _, p := range initial {
			fileCh <- p
		}
		for _, ch := range extraCh {
			for p := range ch {
				fileCh <- p
			}
		}
		close(fileCh)
	}()
	wg.Wait()
}
