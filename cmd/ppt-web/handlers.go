package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/ksetafinansia/ppt-compressor/internal/media"
	"github.com/ksetafinansia/ppt-compressor/internal/pipeline"
)

// POST /api/compress
//
// Accepts a multipart form with a `file` part and optional image_scale,
// image_quality, video_crf, and video_preset fields. The upload is stored
// under a unique name, copied into the downloads directory, and compressed
// there on a worker goroutine; the response carries the job ID to poll.
func handleCompress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			httpError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("file is too large, the limit is %d MB", maxUploadBytes/(1024*1024)))
			return
		}
		httpError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "no file part in request")
		return
	}
	defer file.Close()

	if header.Filename == "" {
		httpError(w, http.StatusBadRequest, "no selected file")
		return
	}
	if !hasAllowedExtension(header.Filename) {
		httpError(w, http.StatusBadRequest, "invalid file type, only .pptx is supported")
		return
	}
	if header.Size > maxUploadBytes {
		httpError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("file is too large, the limit is %d MB", maxUploadBytes/(1024*1024)))
		return
	}

	req, ok := requestFromForm(w, r, header.Filename)
	if !ok {
		return
	}

	originalName := sanitizeFilename(header.Filename)
	storedName := uuid.NewString()[:8] + "_" + originalName

	uploadPath := filepath.Join(uploadDir, storedName)
	if err := saveUpload(file, uploadPath); err != nil {
		log.Error().Err(err).Str("path", uploadPath).Msg("Failed to store upload")
		httpError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	// The pipeline compresses the downloads/ copy; the upload stays intact
	// until the janitor removes it.
	outputPath := filepath.Join(downloadDir, "compressed_"+storedName)
	if err := copyFile(uploadPath, outputPath); err != nil {
		log.Error().Err(err).Str("path", outputPath).Msg("Failed to stage download copy")
		httpError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}

	req.SourcePath = outputPath
	req.BackupDir = backupDir

	job := newJob(originalName, storedName, outputPath)
	go runCompressJob(job, req)

	log.Info().
		Str("job", job.id).
		Str("file", storedName).
		Int64("bytes", header.Size).
		Msg("Upload accepted")

	respondJSON(w, http.StatusAccepted, map[string]string{"id": job.id})
}

// requestFromForm builds a pipeline request from the optional form fields;
// the caller replaces SourcePath and BackupDir once the upload is staged. A
// malformed or out-of-range field rejects the upload before any bytes are
// stored.
func requestFromForm(w http.ResponseWriter, r *http.Request, name string) (pipeline.Request, bool) {
	req := pipeline.NewRequest(name)

	if v := r.FormValue("image_scale"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			httpError(w, http.StatusBadRequest, "image_scale must be a number")
			return req, false
		}
		req.ImageScale = f
	}
	if v := r.FormValue("image_quality"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httpError(w, http.StatusBadRequest, "image_quality must be an integer")
			return req, false
		}
		req.ImageQuality = n
	}
	if v := r.FormValue("video_crf"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			httpError(w, http.StatusBadRequest, "video_crf must be an integer")
			return req, false
		}
		req.VideoCRF = n
	}
	if v := r.FormValue("video_preset"); v != "" {
		req.VideoPreset = media.Preset(v)
	}

	if err := req.Validate(); err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return req, false
	}
	return req, true
}

func saveUpload(src io.Reader, dst string) error {
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	return saveUpload(in, dst)
}

// GET /api/jobs/{id}
func handleJobStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	if id == "" || strings.Contains(id, "/") {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	job := getJob(id)
	if job == nil {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}

	job.mu.Lock()
	defer job.mu.Unlock()

	resp := map[string]interface{}{
		"id":           job.id,
		"status":       job.status,
		"originalName": job.originalName,
	}
	if job.errMsg != "" {
		resp["error"] = job.errMsg
	}
	if job.status == "complete" {
		resp["downloadUrl"] = "/api/download/" + job.id
		resp["originalBytes"] = job.originalBytes
		resp["compressedBytes"] = job.compressedBytes
		resp["reductionPct"] = job.reductionPct
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/download/{id}
func handleDownload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httpError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/download/")
	if id == "" || strings.Contains(id, "/") || containsPathTraversal(id) {
		httpError(w, http.StatusNotFound, "not found")
		return
	}
	job := getJob(id)
	if job == nil {
		httpError(w, http.StatusNotFound, "job not found")
		return
	}

	job.mu.Lock()
	status := job.status
	outputPath := job.outputPath
	downloadName := "compressed_" + job.originalName
	job.mu.Unlock()

	if status != "complete" {
		httpError(w, http.StatusConflict, "job is not complete")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", downloadName))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.presentationml.presentation")
	http.ServeFile(w, r, outputPath)
}
