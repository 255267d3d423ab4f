package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

// EnsureBackup copies src into backupDir as <base>.backup unless that backup
// already exists. An existing backup is never overwritten: the first copy of
// a given source name is the one recovery falls back to, so repeated runs
// against an already-compressed file cannot replace it with compressed bytes.
func EnsureBackup(src, backupDir string) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup dir: %w", err)
	}

	backupPath := filepath.Join(backupDir, filepath.Base(src)+".backup")
	if _, err := os.Stat(backupPath); err == nil {
		log.Info().Str("backup", backupPath).Msg("Backup already exists, keeping it")
		return backupPath, nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat backup: %w", err)
	}

	if err := copyFile(src, backupPath); err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	log.Info().Str("source", src).Str("backup", backupPath).Msg("Backup created")
	return backupPath, nil
}

// copyFile copies src to dst, preserving src's modification time. A partial
// dst is removed on any failure.
func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return err
	}

	if err := os.Chtimes(dst, time.Now(), info.ModTime()); err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}
