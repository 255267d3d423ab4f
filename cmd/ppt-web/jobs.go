package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/ksetafinansia/ppt-compressor/internal/pipeline"
)

// --- Compression Job Management ---

type compressJob struct {
	mu           sync.Mutex
	id           string
	status       string // "pending", "processing", "complete", "error"
	originalName string // sanitized client filename, served back on download
	storedName   string // unique on-disk name, <8 hex>_<originalName>
	outputPath   string // the downloads/ copy the pipeline compresses
	errMsg       string

	originalBytes   int64
	compressedBytes int64
	reductionPct    float64
}

var (
	jobsMu sync.Mutex
	jobs   = make(map[string]*compressJob)
)

// newJobID generates a cryptographically random job ID to prevent
// sequential enumeration.
func newJobID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		log.Fatal().Err(err).Msg("Failed to generate random job ID")
	}
	return "job-" + hex.EncodeToString(b)
}

func newJob(originalName, storedName, outputPath string) *compressJob {
	jobsMu.Lock()
	defer jobsMu.Unlock()
	j := &compressJob{
		id:           newJobID(),
		status:       "pending",
		originalName: originalName,
		storedName:   storedName,
		outputPath:   outputPath,
	}
	jobs[j.id] = j
	return j
}

func getJob(id string) *compressJob {
	jobsMu.Lock()
	defer jobsMu.Unlock()
	return jobs[id]
}

// runCompressJob executes the pipeline for one uploaded file. It runs on its
// own goroutine; clients follow along by polling the job status.
func runCompressJob(job *compressJob, req pipeline.Request) {
	job.mu.Lock()
	job.status = "processing"
	job.mu.Unlock()

	summary, err := pipeline.Run(context.Background(), req)

	job.mu.Lock()
	defer job.mu.Unlock()
	if err != nil {
		// Details stay in the log; clients get a generic failure.
		log.Error().Err(err).Str("job", job.id).Str("file", job.storedName).Msg("Compression job failed")
		job.status = "error"
		job.errMsg = "compression failed"
		return
	}

	job.status = "complete"
	job.originalBytes = summary.OriginalBytes
	job.compressedBytes = summary.CompressedBytes
	job.reductionPct = summary.Reduction()
}
