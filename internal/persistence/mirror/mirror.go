package mirror

import (
	"context"
	"log"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"voxelforge/internal/persistence/region"
)

type Stats struct {
	QueueDepth         int
	EnqueuedTotal      uint64
	DroppedTotal       uint64
	UploadSuccessTotal uint64
	UploadFailTotal    uint64
	LastSuccessUnix    int64
	LastErrorUnix      int64
}

type job struct {
	key       string
	localPath string
}

// Mirror replicates written region files to an S3-compatible bucket in
// the background. Saves never block on the network: a full queue drops
// the upload and the next save of the same region retries it.
type Mirror struct {
	client *Client
	prefix string
	logger *log.Logger

	jobs chan job
	wg   sync.WaitGroup

	enqueuedTotal      atomic.Uint64
	droppedTotal       atomic.Uint64
	uploadSuccessTotal atomic.Uint64
	uploadFailTotal    atomic.Uint64
	lastSuccessUnix    atomic.Int64
	lastErrorUnix      atomic.Int64
}

func New(client *Client, prefix string, workers int, logger *log.Logger) *Mirror {
	if workers <= 0 {
		workers = 1
	}
	m := &Mirror{
		client: client,
		prefix: path.Clean("/" + prefix)[1:],
		logger: logger,
		jobs:   make(chan job, 1024),
	}
	for i := 0; i < workers; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			for j := range m.jobs {
				m.uploadOne(j)
			}
		}()
	}
	return m
}

func (m *Mirror) Close() {
	if m == nil {
		return
	}
	close(m.jobs)
	m.wg.Wait()
}

// EnqueueRegion schedules one written region file for upload, keyed as
// <prefix>/regions/<filename>.
func (m *Mirror) EnqueueRegion(info region.Info) {
	if m == nil || m.client == nil {
		return
	}
	m.enqueuedTotal.Add(1)
	key := path.Join("regions", info.Key.Filename())
	if m.prefix != "" {
		key = path.Join(m.prefix, key)
	}
	select {
	case m.jobs <- job{key: key, localPath: info.Path}:
	default:
		dropped := m.droppedTotal.Add(1)
		m.printf("mirror drop key=%s reason=queue_full dropped_total=%d", key, dropped)
	}
}

func (m *Mirror) Stats() Stats {
	if m == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:         len(m.jobs),
		EnqueuedTotal:      m.enqueuedTotal.Load(),
		DroppedTotal:       m.droppedTotal.Load(),
		UploadSuccessTotal: m.uploadSuccessTotal.Load(),
		UploadFailTotal:    m.uploadFailTotal.Load(),
		LastSuccessUnix:    m.lastSuccessUnix.Load(),
		LastErrorUnix:      m.lastErrorUnix.Load(),
	}
}

func (m *Mirror) uploadOne(j job) {
	if err := m.uploadWithRetry(j); err != nil {
		m.uploadFailTotal.Add(1)
		m.lastErrorUnix.Store(time.Now().UTC().Unix())
		m.printf("mirror upload failed key=%s local=%s err=%v", j.key, j.localPath, err)
		return
	}
	m.uploadSuccessTotal.Add(1)
	m.lastSuccessUnix.Store(time.Now().UTC().Unix())
}

func (m *Mirror) uploadWithRetry(j job) error {
	const maxAttempts = 4
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := m.client.PutFile(ctx, j.key, j.localPath)
		cancel()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < maxAttempts {
			time.Sleep(time.Duration(attempt*attempt) * 200 * time.Millisecond)
		}
	}
	return lastErr
}

func (m *Mirror) printf(format string, args ...any) {
	if m.logger != nil {
		m.logger.Printf(format, args...)
	}
}
