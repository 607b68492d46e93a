package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/cleandl/cleandl/internal/source"
	"github.com/cleandl/cleandl/internal/utils"
)

const (
	largeFileCutoff = 100 * 1024 * 1024
	smallChunkSize  = 1 * 1024 * 1024
	largeChunkSize  = 5 * 1024 * 1024
)

// chunk is one byte range of the transfer. written is only touched by
// the single fetcher that owns the chunk.
type chunk struct {
	id      int
	start   int64
	end     int64
	written int64
}

// runDownload is the coordinator: it owns one download's lifecycle from
// queued to a terminal state.
func (m *Manager) runDownload(ctx context.Context, d *Download) {
	defer m.runWg.Done()

	if err := m.sem.Acquire(ctx, 1); err != nil {
		m.finishInterrupted(d)
		return
	}
	defer m.sem.Release(1)
	if d.gate.canceledNow() {
		m.finishInterrupted(d)
		return
	}

	src, err := source.Resolve(d.URL, m.client)
	if err != nil {
		var unsupported *source.UnsupportedError
		if errors.As(err, &unsupported) {
			d.fail(unsupported.Error())
		} else {
			d.fail(fmt.Sprintf("invalid source: %v", err))
		}
		m.record(d)
		return
	}

	info, err := src.Probe(ctx)
	if err != nil {
		if ctx.Err() != nil {
			m.finishInterrupted(d)
			return
		}
		d.fail(fmt.Sprintf("probe failed: %v", err))
		m.record(d)
		return
	}

	outputPath, resumeOffset, complete, err := m.resolveDestination(d, info)
	if err != nil {
		d.fail(err.Error())
		m.record(d)
		return
	}
	if complete {
		log.Info().Str("op", "engine/coordinator").Msgf("File already complete for %s, verifying", d.ID)
		d.downloaded.Store(info.Size)
		d.setStatus(StatusVerifying)
		m.hashCh <- d
		return
	}

	file, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		// Destination may be held open by another process: pick a fresh
		// name once before giving up.
		outputPath = utils.RenewOutputPath(outputPath)
		d.setMeta(filepath.Base(outputPath), outputPath, info.Size)
		resumeOffset = 0
		file, err = os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			d.fail(fmt.Sprintf("error creating output file: %v", err))
			m.record(d)
			return
		}
	}
	defer file.Close()

	d.downloaded.Store(resumeOffset)
	// A pause issued while still queued only flips the gate, so recheck
	// it after publishing downloading: any pause landing before the
	// recheck is translated here, any pause after it transitions on its
	// own via markStatus.
	d.setStatus(StatusDownloading)
	if d.gate.pausedNow() {
		d.markStatus(StatusDownloading, StatusPaused)
	}
	log.Info().Str("op", "engine/coordinator").
		Msgf("Starting transfer %s -> %s (%d bytes, resume at %d)", d.URL, outputPath, info.Size, resumeOffset)

	stopSampler := make(chan struct{})
	go m.sampleProgress(d, stopSampler)

	var limiter *rate.Limiter
	if m.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(m.opts.RateLimit), utils.DefaultBufferSize)
	}

	if info.Size > 0 && info.SupportsRanges {
		err = m.fetchChunked(ctx, d, src, file, resumeOffset, info.Size, limiter)
	} else {
		err = m.fetchStream(ctx, d, src, file, limiter)
	}
	close(stopSampler)
	file.Close()

	if err != nil {
		m.finishFailed(ctx, d, outputPath, err)
		return
	}

	d.setSpeed(0)
	d.setStatus(StatusVerifying)
	m.hashCh <- d
}

func (m *Manager) fetchChunked(ctx context.Context, d *Download, src source.Source, file *os.File, offset, total int64, limiter *rate.Limiter) error {
	chunks := partition(offset, total)
	log.Debug().Str("op", "engine/coordinator").
		Msgf("Partitioned %s into %d chunks of up to %d bytes", d.ID, len(chunks), chunkSizeFor(total))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.opts.Connections)
	for i := range chunks {
		c := &chunks[i]
		g.Go(func() error {
			return m.fetchChunk(gctx, d, src, file, c, limiter)
		})
	}
	return g.Wait()
}

// finishFailed maps a transfer error to the right terminal state:
// canceled transfers delete the partial file, shutdown leaves it in
// place for a later resume, everything else is a failure.
func (m *Manager) finishFailed(ctx context.Context, d *Download, outputPath string, err error) {
	d.setSpeed(0)
	if d.gate.canceledNow() {
		if removeErr := os.Remove(outputPath); removeErr != nil && !os.IsNotExist(removeErr) {
			log.Warn().Str("op", "engine/coordinator").Err(removeErr).Msgf("Error removing canceled file %s", outputPath)
		}
		d.setStatus(StatusCanceled)
		log.Info().Str("op", "engine/coordinator").Msgf("Download %s canceled", d.ID)
		m.record(d)
		return
	}
	if ctx.Err() != nil {
		d.setMessage("interrupted by shutdown")
		d.setStatus(StatusPaused)
		return
	}
	d.fail(fmt.Sprintf("download failed: %v", err))
	log.Error().Str("op", "engine/coordinator").Err(err).Msgf("Download %s failed", d.ID)
	m.record(d)
}

func (m *Manager) finishInterrupted(d *Download) {
	if d.gate.canceledNow() {
		d.setSpeed(0)
		d.setStatus(StatusCanceled)
		m.record(d)
	}
}

// resolveDestination picks the final output path and the resume offset.
// An existing file at least as long as the total skips straight to
// verification, a shorter one is resumed when ranges are supported, and
// anything else gets a renamed destination.
func (m *Manager) resolveDestination(d *Download, info source.Info) (string, int64, bool, error) {
	name := info.Filename
	if name == "" {
		name = utils.FilenameFromURL(d.URL)
	}
	name = utils.SanitizeFilename(name)

	outputPath := d.destination()
	if outputPath == "" {
		outputPath = name
	} else if stat, err := os.Stat(outputPath); err == nil && stat.IsDir() {
		outputPath = filepath.Join(outputPath, name)
	}
	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", 0, false, fmt.Errorf("error creating output directory: %v", err)
		}
	}

	resumeOffset := int64(0)
	if stat, err := os.Stat(outputPath); err == nil && !stat.IsDir() {
		switch {
		case info.Size > 0 && stat.Size() >= info.Size:
			d.setMeta(filepath.Base(outputPath), outputPath, info.Size)
			return outputPath, info.Size, true, nil
		case info.Size > 0 && stat.Size() < info.Size && info.SupportsRanges:
			resumeOffset = stat.Size()
			log.Info().Str("op", "engine/coordinator").
				Msgf("Resuming %s from offset %d", outputPath, resumeOffset)
		default:
			outputPath = utils.RenewOutputPath(outputPath)
		}
	}

	d.setMeta(filepath.Base(outputPath), outputPath, info.Size)
	return outputPath, resumeOffset, false, nil
}

func chunkSizeFor(total int64) int64 {
	if total > largeFileCutoff {
		return largeChunkSize
	}
	return smallChunkSize
}

func partition(offset, total int64) []chunk {
	chunkSize := chunkSizeFor(total)
	var chunks []chunk
	id := 0
	for start := offset; start < total; start += chunkSize {
		end := min(start+chunkSize-1, total-1)
		chunks = append(chunks, chunk{id: id, start: start, end: end})
		id++
	}
	return chunks
}

// sampleProgress recomputes the transfer rate once per second as delta
// bytes over delta time, resetting the baseline each tick.
func (m *Manager) sampleProgress(d *Download, stop <-chan struct{}) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	lastBytes := d.bytes()
	lastTime := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			current := d.bytes()
			elapsed := now.Sub(lastTime).Seconds()
			if elapsed > 0 {
				d.setSpeed(int64(float64(current-lastBytes) / elapsed))
			}
			lastBytes = current
			lastTime = now
		}
	}
}
