package engine

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/cleandl/cleandl/internal/integrity"
	"github.com/cleandl/cleandl/internal/scan"
	"github.com/cleandl/cleandl/internal/storage"
	"github.com/cleandl/cleandl/internal/utils"
)

const hashWorkers = 2

type Options struct {
	MaxParallel  int           // downloads transferring at once
	Connections  int           // chunk fetchers per download
	MaxRetries   int           // attempts per chunk
	RetryDelay   time.Duration // backoff between chunk attempts
	RateLimit    int64         // bytes/sec per download, 0 means unlimited
	GraceTimeout time.Duration // shutdown wait for in-flight transfers
	ClientConfig utils.HTTPClientConfig
	Scanner      scan.Provider
	History      storage.Repository
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 5
	}
	if opts.Connections <= 0 {
		opts.Connections = 8
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = 3 * time.Second
	}
	if opts.GraceTimeout <= 0 {
		opts.GraceTimeout = 10 * time.Second
	}
	if opts.Scanner == nil {
		opts.Scanner = scan.NewProvider("")
	}
	return opts
}

// Manager owns the download registry and serializes all mutating
// commands through a single run loop, so coordinators and callers never
// race on command application.
type Manager struct {
	opts   Options
	client *utils.Client

	mu        sync.RWMutex
	downloads map[string]*Download
	order     []string

	commands chan command
	sem      *semaphore.Weighted
	hashCh   chan *Download

	runWg  sync.WaitGroup // coordinators
	hashWg sync.WaitGroup
	loopWg sync.WaitGroup

	rootCtx    context.Context
	rootCancel context.CancelFunc
	closed     atomic.Bool
}

type commandKind int

const (
	cmdAdd commandKind = iota
	cmdPause
	cmdResume
	cmdCancel
	cmdPauseAll
	cmdResumeAll
	cmdClearCompleted
	cmdClearAll
)

type command struct {
	kind       commandKind
	id         string
	url        string
	outputPath string
	reply      chan commandReply
}

type commandReply struct {
	id  string
	err error
}

func NewManager(opts Options) *Manager {
	opts = (&opts).withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		opts:       opts,
		client:     utils.NewClient(opts.ClientConfig),
		downloads:  make(map[string]*Download),
		commands:   make(chan command),
		sem:        semaphore.NewWeighted(int64(opts.MaxParallel)),
		hashCh:     make(chan *Download, 16),
		rootCtx:    ctx,
		rootCancel: cancel,
	}
	m.loopWg.Add(1)
	go m.run()
	for i := 0; i < hashWorkers; i++ {
		m.hashWg.Add(1)
		go m.hashWorker()
	}
	log.Debug().Str("op", "engine/manager").Msgf("Manager started with %d parallel downloads", opts.MaxParallel)
	return m
}

func (m *Manager) run() {
	defer m.loopWg.Done()
	for {
		select {
		case <-m.rootCtx.Done():
			return
		case cmd := <-m.commands:
			cmd.reply <- m.apply(cmd)
		}
	}
}

func (m *Manager) dispatch(cmd command) (commandReply, error) {
	if m.closed.Load() {
		return commandReply{}, ErrShutdown
	}
	cmd.reply = make(chan commandReply, 1)
	select {
	case m.commands <- cmd:
	case <-m.rootCtx.Done():
		return commandReply{}, ErrShutdown
	}
	select {
	case reply := <-cmd.reply:
		return reply, nil
	case <-m.rootCtx.Done():
		return commandReply{}, ErrShutdown
	}
}

func (m *Manager) apply(cmd command) commandReply {
	switch cmd.kind {
	case cmdAdd:
		return m.applyAdd(cmd)
	case cmdPause:
		return m.applyControl(cmd.id, m.pauseOne)
	case cmdResume:
		return m.applyControl(cmd.id, m.resumeOne)
	case cmdCancel:
		return m.applyControl(cmd.id, m.cancelOne)
	case cmdPauseAll:
		for _, d := range m.all() {
			if d.currentStatus() == StatusDownloading {
				m.pauseOne(d)
			}
		}
	case cmdResumeAll:
		for _, d := range m.all() {
			if d.currentStatus() == StatusPaused {
				m.resumeOne(d)
			}
		}
	case cmdClearCompleted:
		m.clear(func(d *Download) bool { return d.currentStatus() == StatusCompleted })
	case cmdClearAll:
		for _, d := range m.all() {
			if !d.currentStatus().IsTerminal() {
				m.cancelOne(d)
			}
		}
		m.clear(func(*Download) bool { return true })
	}
	return commandReply{}
}

func (m *Manager) applyAdd(cmd command) commandReply {
	d := newDownload(cmd.url, cmd.outputPath)
	ctx, cancel := context.WithCancel(m.rootCtx)
	d.cancelRun = cancel

	m.mu.Lock()
	m.downloads[d.ID] = d
	m.order = append(m.order, d.ID)
	m.mu.Unlock()

	m.runWg.Add(1)
	go m.runDownload(ctx, d)

	log.Info().Str("op", "engine/manager").Msgf("Added download %s for %s", d.ID, d.URL)
	return commandReply{id: d.ID}
}

func (m *Manager) applyControl(id string, op func(*Download)) commandReply {
	d := m.lookup(id)
	if d == nil {
		return commandReply{err: ErrNotFound}
	}
	if d.currentStatus().IsTerminal() {
		return commandReply{}
	}
	op(d)
	return commandReply{}
}

func (m *Manager) pauseOne(d *Download) {
	d.gate.pause()
	d.markStatus(StatusDownloading, StatusPaused)
}

func (m *Manager) resumeOne(d *Download) {
	d.gate.resume()
	d.markStatus(StatusPaused, StatusDownloading)
}

func (m *Manager) cancelOne(d *Download) {
	d.gate.cancel()
	if d.cancelRun != nil {
		d.cancelRun()
	}
}

func (m *Manager) clear(remove func(*Download) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining := m.order[:0]
	for _, id := range m.order {
		if remove(m.downloads[id]) {
			delete(m.downloads, id)
		} else {
			remaining = append(remaining, id)
		}
	}
	m.order = remaining
}

func (m *Manager) lookup(id string) *Download {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloads[id]
}

func (m *Manager) all() []*Download {
	m.mu.RLock()
	defer m.mu.RUnlock()
	downloads := make([]*Download, 0, len(m.order))
	for _, id := range m.order {
		downloads = append(downloads, m.downloads[id])
	}
	return downloads
}

// Add registers a new queued download and schedules its transfer. It
// never blocks on network I/O.
func (m *Manager) Add(url, outputPath string) (string, error) {
	reply, err := m.dispatch(command{kind: cmdAdd, url: url, outputPath: outputPath})
	if err != nil {
		return "", err
	}
	return reply.id, reply.err
}

// Pause requests suspension of a download. Pausing an already paused or
// terminal download is a no-op.
func (m *Manager) Pause(id string) error {
	reply, err := m.dispatch(command{kind: cmdPause, id: id})
	if err != nil {
		return err
	}
	return reply.err
}

func (m *Manager) Resume(id string) error {
	reply, err := m.dispatch(command{kind: cmdResume, id: id})
	if err != nil {
		return err
	}
	return reply.err
}

func (m *Manager) Cancel(id string) error {
	reply, err := m.dispatch(command{kind: cmdCancel, id: id})
	if err != nil {
		return err
	}
	return reply.err
}

func (m *Manager) PauseAll() error {
	_, err := m.dispatch(command{kind: cmdPauseAll})
	return err
}

func (m *Manager) ResumeAll() error {
	_, err := m.dispatch(command{kind: cmdResumeAll})
	return err
}

// ClearCompleted removes completed downloads from the registry.
func (m *Manager) ClearCompleted() error {
	_, err := m.dispatch(command{kind: cmdClearCompleted})
	return err
}

// ClearAll cancels every active download and empties the registry.
func (m *Manager) ClearAll() error {
	_, err := m.dispatch(command{kind: cmdClearAll})
	return err
}

func (m *Manager) Get(id string) (Snapshot, error) {
	d := m.lookup(id)
	if d == nil {
		return Snapshot{}, ErrNotFound
	}
	return d.Snapshot(), nil
}

// List returns snapshots of all downloads in creation order.
func (m *Manager) List() []Snapshot {
	downloads := m.all()
	snapshots := make([]Snapshot, 0, len(downloads))
	for _, d := range downloads {
		snapshots = append(snapshots, d.Snapshot())
	}
	return snapshots
}

// VerifyChecksum compares a download's recorded digest against an
// expected value. Algorithm is "md5", "sha1" or "sha256". A download
// whose hashing failed never matches.
func (m *Manager) VerifyChecksum(id, expected, algorithm string) (bool, error) {
	d := m.lookup(id)
	if d == nil {
		return false, ErrNotFound
	}
	sum, ok := d.checksum(strings.ToLower(algorithm))
	if !ok {
		return false, errUnsupportedAlgorithm(algorithm)
	}
	return sum != "" && strings.EqualFold(sum, expected), nil
}

// Shutdown stops accepting commands, abandons in-flight transfers after
// a bounded grace period and releases worker resources. Partial files
// are kept on disk so they can be resumed on the next run.
func (m *Manager) Shutdown(ctx context.Context) error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	log.Info().Str("op", "engine/manager").Msg("Shutting down download manager")
	m.rootCancel()
	for _, d := range m.all() {
		d.gate.release()
	}

	done := make(chan struct{})
	go func() {
		m.runWg.Wait()
		close(m.hashCh)
		m.hashWg.Wait()
		m.loopWg.Wait()
		close(done)
	}()

	timer := time.NewTimer(m.opts.GraceTimeout)
	defer timer.Stop()
	select {
	case <-done:
		return nil
	case <-timer.C:
		return context.DeadlineExceeded
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) hashWorker() {
	defer m.hashWg.Done()
	for d := range m.hashCh {
		m.finishDownload(d)
	}
}

// finishDownload runs the integrity stage: checksums, completion and
// the security scan hand-off. Hashing or scan failures degrade the
// result fields, they never fail a finished transfer.
func (m *Manager) finishDownload(d *Download) {
	path := d.destination()
	sums, err := integrity.File(path)
	if err != nil {
		log.Error().Str("op", "engine/integrity").Err(err).Msgf("Error hashing %s", path)
	} else {
		d.setChecksums(sums.MD5, sums.SHA1, sums.SHA256)
	}
	d.setSpeed(0)
	d.setStatus(StatusCompleted)
	log.Info().Str("op", "engine/integrity").Msgf("Download %s completed (%s)", d.ID, path)

	if m.opts.Scanner != nil {
		result, scanErr := m.opts.Scanner.Scan(context.Background(), path, sums.SHA256)
		if scanErr != nil {
			result = &scan.Result{Status: scan.StatusError, Message: scanErr.Error()}
		}
		d.setScan(result)
	}
	m.record(d)
}

func (m *Manager) record(d *Download) {
	if m.opts.History == nil {
		return
	}
	snap := d.Snapshot()
	record := storage.Record{
		ID:         snap.ID,
		URL:        snap.URL,
		FilePath:   snap.OutputPath,
		Size:       snap.Downloaded,
		MD5:        snap.MD5,
		SHA1:       snap.SHA1,
		Status:     snap.Status.String(),
		FinishedAt: time.Now(),
	}
	if snap.Scan != nil {
		record.ScanStatus = string(snap.Scan.Status)
	}
	if err := m.opts.History.Save(record); err != nil {
		log.Error().Str("op", "engine/manager").Err(err).Msg("Error recording download history")
	}
}
