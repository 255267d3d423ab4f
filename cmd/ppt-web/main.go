package main

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/ksetafinansia/ppt-compressor/internal/logging"
)

//go:embed static/index.html
var indexHTML []byte

// CLI flags
var (
	portFlag    int
	dataDirFlag string
)

// Storage directories, resolved at startup.
var (
	uploadDir   string
	downloadDir string
	backupDir   string
)

var rootCmd = &cobra.Command{
	Use:   "ppt-web",
	Short: "Web front end for PowerPoint compression",
	Long: `ppt-web starts an HTTP server that accepts .pptx uploads, compresses
their embedded media in the background, and serves the result back for
download. Jobs are tracked in memory and polled by ID.

Storage lives under the data directory (uploads/, downloads/, backup/);
each subdirectory can be redirected with PPTC_UPLOAD_DIR,
PPTC_DOWNLOAD_DIR, or PPTC_BACKUP_DIR.

Examples:
  ppt-web
  ppt-web --port 9090
  ppt-web --data-dir /var/data`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVar(&dataDirFlag, "data-dir", "./data", "Directory holding uploads, downloads, and backups")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	if err := resolveStorageDirs(); err != nil {
		log.Fatal().Err(err).Msg("Failed to prepare storage directories")
	}

	startJanitor()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/compress", handleCompress)
	mux.HandleFunc("/api/jobs/", handleJobStatus)
	mux.HandleFunc("/api/download/", handleDownload)
	mux.HandleFunc("/api/cleanup", handleCleanup)
	mux.HandleFunc("/", handleIndex)

	addr := fmt.Sprintf(":%d", portFlag)
	srv := &http.Server{
		Addr:    addr,
		Handler: withLogging(mux),
		// Uploads run to 1.5 GB over arbitrary links, so the read and
		// write windows are generous; only the header read is tight.
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Minute,
		WriteTimeout:      30 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}()

	log.Info().
		Int("port", portFlag).
		Str("uploads", uploadDir).
		Str("downloads", downloadDir).
		Str("backups", backupDir).
		Msg("Starting web server")
	fmt.Printf("\n  PPT Compressor: http://localhost:%d\n\n", portFlag)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("Server failed")
	}
}

// resolveStorageDirs derives the three storage directories from the data
// dir, honoring the per-directory environment overrides, and creates them.
func resolveStorageDirs() error {
	uploadDir = envOr("PPTC_UPLOAD_DIR", filepath.Join(dataDirFlag, "uploads"))
	downloadDir = envOr("PPTC_DOWNLOAD_DIR", filepath.Join(dataDirFlag, "downloads"))
	backupDir = envOr("PPTC_BACKUP_DIR", filepath.Join(dataDirFlag, "backup"))

	for _, dir := range []string{uploadDir, downloadDir, backupDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

// --- Middleware ---

func withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		if strings.HasPrefix(r.URL.Path, "/api/") {
			log.Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Dur("duration", time.Since(start)).
				Msg("API request")
		}
	})
}
