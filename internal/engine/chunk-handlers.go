package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/cleandl/cleandl/internal/source"
	"github.com/cleandl/cleandl/internal/utils"
)

// fetchChunk transfers one byte range, retrying transient failures with
// a fixed delay. Progress within the chunk survives retries, so each
// attempt resumes from c.written.
func (m *Manager) fetchChunk(ctx context.Context, d *Download, src source.Source, file *os.File, c *chunk, limiter *rate.Limiter) error {
	chunkSize := c.end - c.start + 1
	var lastErr error
	for attempt := 0; attempt <= m.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Debug().Str("op", "engine/chunk").
				Msgf("Retrying chunk %d of %s (attempt %d/%d)", c.id, d.ID, attempt, m.opts.MaxRetries)
			select {
			case <-time.After(m.opts.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := d.gate.wait(); err != nil {
			return err
		}
		err := m.fetchChunkPart(ctx, d, src, file, c, limiter)
		if err == nil {
			if c.written != chunkSize {
				lastErr = fmt.Errorf("chunk %d incomplete: got %d of %d bytes", c.id, c.written, chunkSize)
				continue
			}
			return nil
		}
		if errors.Is(err, errCanceled) || ctx.Err() != nil {
			return err
		}
		var disk *diskError
		if errors.As(err, &disk) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("chunk %d failed after %d retries: %w", c.id, m.opts.MaxRetries, lastErr)
}

func (m *Manager) fetchChunkPart(ctx context.Context, d *Download, src source.Source, file *os.File, c *chunk, limiter *rate.Limiter) error {
	body, err := src.OpenRange(ctx, c.start+c.written, c.end)
	if err != nil {
		return err
	}
	defer body.Close()

	buf := make([]byte, utils.DefaultBufferSize)
	for {
		if err := d.gate.wait(); err != nil {
			return err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			remaining := (c.end - c.start + 1) - c.written
			if int64(n) > remaining {
				// A server that ignores the range would otherwise bleed
				// into the next chunk's region of the file.
				return fmt.Errorf("server sent %d bytes past end of range", int64(n)-remaining)
			}
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return err
				}
			}
			if _, err := file.WriteAt(buf[:n], c.start+c.written); err != nil {
				return &diskError{err: err}
			}
			c.written += int64(n)
			d.addBytes(int64(n))
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return readErr
		}
	}
}

// fetchStream handles sources without range support or a known length.
// Retries restart the body from the beginning; the progress counter only
// moves once an attempt passes its previous high-water mark so the
// reported byte count stays monotone.
func (m *Manager) fetchStream(ctx context.Context, d *Download, src source.Source, file *os.File, limiter *rate.Limiter) error {
	var highWater int64
	var lastErr error
	for attempt := 0; attempt <= m.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			log.Debug().Str("op", "engine/chunk").
				Msgf("Retrying stream transfer of %s (attempt %d/%d)", d.ID, attempt, m.opts.MaxRetries)
			select {
			case <-time.After(m.opts.RetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := d.gate.wait(); err != nil {
			return err
		}
		written, err := m.fetchStreamOnce(ctx, d, src, file, limiter, highWater)
		if written > highWater {
			highWater = written
		}
		if err == nil {
			return nil
		}
		if errors.Is(err, errCanceled) || ctx.Err() != nil {
			return err
		}
		var disk *diskError
		if errors.As(err, &disk) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("stream transfer failed after %d retries: %w", m.opts.MaxRetries, lastErr)
}

func (m *Manager) fetchStreamOnce(ctx context.Context, d *Download, src source.Source, file *os.File, limiter *rate.Limiter, highWater int64) (int64, error) {
	body, err := src.OpenRange(ctx, 0, -1)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	if err := file.Truncate(0); err != nil {
		return 0, &diskError{err: err}
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return 0, &diskError{err: err}
	}

	var written int64
	buf := make([]byte, utils.DefaultBufferSize)
	for {
		if err := d.gate.wait(); err != nil {
			return written, err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if limiter != nil {
				if err := limiter.WaitN(ctx, n); err != nil {
					return written, err
				}
			}
			if _, err := file.Write(buf[:n]); err != nil {
				return written, &diskError{err: err}
			}
			written += int64(n)
			if written > highWater {
				d.downloaded.Store(written)
			}
		}
		if readErr == io.EOF {
			d.downloaded.Store(written)
			d.setTotalSize(written)
			return written, nil
		}
		if readErr != nil {
			return written, readErr
		}
	}
}
