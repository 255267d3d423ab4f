package main

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// cleanupMaxAge is how long uploads, downloads, and backups are kept before
// a sweep removes them.
const cleanupMaxAge = time.Hour

// POST /api/cleanup?key=...
//
// Admin sweep of the storage directories. Disabled unless PPTC_CLEANUP_KEY
// is set in the environment.
func handleCleanup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	want := os.Getenv("PPTC_CLEANUP_KEY")
	if want == "" {
		httpError(w, http.StatusForbidden, "cleanup disabled: PPTC_CLEANUP_KEY not set")
		return
	}
	if r.URL.Query().Get("key") != want {
		httpError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	uploads, downloads, backups := runCleanup(cleanupMaxAge)
	respondJSON(w, http.StatusOK, map[string]int{
		"uploads":   uploads,
		"downloads": downloads,
		"backups":   backups,
	})
}

// runCleanup removes regular files older than maxAge from each storage
// directory and reports how many each sweep deleted.
func runCleanup(maxAge time.Duration) (uploads, downloads, backups int) {
	cutoff := time.Now().Add(-maxAge)
	uploads = cleanupDir(uploadDir, cutoff)
	downloads = cleanupDir(downloadDir, cutoff)
	backups = cleanupDir(backupDir, cutoff)
	return uploads, downloads, backups
}

func cleanupDir(dir string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("Cleanup cannot read directory")
		return 0
	}

	count := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Cleanup failed to delete file")
			continue
		}
		count++
	}
	return count
}

// startJanitor sweeps the storage directories every hour so abandoned
// uploads cannot fill the disk even when nobody calls /api/cleanup.
func startJanitor() {
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			uploads, downloads, backups := runCleanup(cleanupMaxAge)
			if uploads+downloads+backups > 0 {
				log.Info().
					Int("uploads", uploads).
					Int("downloads", downloads).
					Int("backups", backups).
					Msg("Janitor removed old files")
			}
		}
	}()
}
