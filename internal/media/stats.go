package media

// Result reports the byte sizes of a single transcoded asset.
type Result struct {
	OriginalBytes   int64
	CompressedBytes int64
}

// Stats accumulates the outcome of one walker pass over a media directory.
// TotalFiles counts every file matching the pass's extension list;
// ProcessedFiles and the byte totals count only successful transcodes.
type Stats struct {
	TotalFiles      int
	ProcessedFiles  int
	OriginalBytes   int64
	CompressedBytes int64
}

// Add folds one successful transcode into the stats.
func (s *Stats) Add(r Result) {
	s.ProcessedFiles++
	s.OriginalBytes += r.OriginalBytes
	s.CompressedBytes += r.CompressedBytes
}

// Merge combines two passes into one aggregate.
func (s Stats) Merge(other Stats) Stats {
	return Stats{
		TotalFiles:      s.TotalFiles + other.TotalFiles,
		ProcessedFiles:  s.ProcessedFiles + other.ProcessedFiles,
		OriginalBytes:   s.OriginalBytes + other.OriginalBytes,
		CompressedBytes: s.CompressedBytes + other.CompressedBytes,
	}
}

// Reduction returns the size reduction as a percentage. A pass that matched
// no files, or only zero-byte files, reports zero rather than dividing by
// zero.
func (s Stats) Reduction() float64 {
	if s.OriginalBytes == 0 {
		return 0
	}
	return (1 - float64(s.CompressedBytes)/float64(s.OriginalBytes)) * 100
}
