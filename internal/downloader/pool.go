package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"apimages/pkg/logger"
)

// ImageFetcher downloads image bytes
type ImageFetcher interface {
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// ImageStore checks for and writes image files
type ImageStore interface {
	Exists(path string) bool
	SaveImage(path string, r io.Reader) (int64, error)
}

// Job is one image slot of a device
type Job struct {
	URL   string
	Path  string
	Index int
}

// Stats counts the outcome of a batch
type Stats struct {
	Downloaded int
	Present    int
	Bytes      int64
}

// Pool fetches the image slots of one device with at most Workers requests
// in flight. With one worker jobs run strictly in order.
type Pool struct {
	workers int
	fetcher ImageFetcher
	store   ImageStore
	logger  logger.Logger
}

// NewPool creates a pool. workers below 1 is treated as 1.
func NewPool(workers int, fetcher ImageFetcher, store ImageStore, log logger.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Pool{
		workers: workers,
		fetcher: fetcher,
		store:   store,
		logger:  log,
	}
}

// Workers returns the concurrency limit
func (p *Pool) Workers() int {
	return p.workers
}

// Run processes jobs and waits for all started ones to finish. Jobs whose
// file already exists are counted as present without a request. The first
// failure cancels the batch: jobs not yet started are never attempted and
// that error is returned along with the counts of what did complete.
func (p *Pool) Run(ctx context.Context, jobs []Job) (Stats, error) {
	var downloaded, present, written atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)

	for _, job := range jobs {
		// Go blocks while every worker is busy; a job that starts after a
		// failure sees the cancelled context and returns at once.
		if gctx.Err() != nil {
			break
		}
		job := job
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if p.store.Exists(job.Path) {
				present.Add(1)
				p.logger.DebugWithFields("Image already present", map[string]interface{}{
					"path": job.Path,
				})
				return nil
			}

			n, err := p.process(gctx, job)
			if err != nil {
				return err
			}
			downloaded.Add(1)
			written.Add(n)
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	return Stats{
		Downloaded: int(downloaded.Load()),
		Present:    int(present.Load()),
		Bytes:      written.Load(),
	}, err
}

func (p *Pool) process(ctx context.Context, job Job) (int64, error) {
	start := time.Now()

	data, err := p.fetcher.FetchImage(ctx, job.URL)
	if err != nil {
		p.logger.WithError(err).ErrorWithFields("Image download failed", map[string]interface{}{
			"url":   job.URL,
			"index": job.Index,
		})
		return 0, err
	}

	n, err := p.store.SaveImage(job.Path, bytes.NewReader(data))
	if err != nil {
		return 0, fmt.Errorf("save image %d: %w", job.Index, err)
	}

	logger.LogImageSaved(p.logger, job.Path, len(data))
	p.logger.DebugWithFields("Image downloaded", map[string]interface{}{
		"index":    job.Index,
		"duration": time.Since(start),
	})
	return n, nil
}
