package fetcher

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"apimages/internal/downloader"
	"apimages/pkg/checkpoint"
	"apimages/pkg/config"
	apperrors "apimages/pkg/errors"
	"apimages/pkg/logger"
	"apimages/pkg/models"
	"apimages/pkg/storage"
)

// Options tune a run
type Options struct {
	// ItemLimit caps the site list and each device list; 0 means no cap
	ItemLimit int
	// Concurrency is the number of image fetches in flight per device
	Concurrency int
	// ForceRestart backs up any existing checkpoint and starts empty
	ForceRestart bool
	// DryRun lists eligible sites without touching devices or images
	DryRun bool
}

// OptionsFromConfig builds run options from the fetch configuration
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		ItemLimit:   cfg.Fetch.ItemLimit,
		Concurrency: cfg.Fetch.ConcurrentDownloads,
	}
}

// Summary describes what a run did. It is returned even when the run
// fails, covering the work done up to the failure.
type Summary struct {
	RunID            string        `json:"run_id"`
	SitesTotal       int           `json:"sites_total"`
	SitesSkipped     int           `json:"sites_skipped"`
	SitesCompleted   int           `json:"sites_completed"`
	Devices          int           `json:"devices"`
	ImagesDownloaded int           `json:"images_downloaded"`
	ImagesPresent    int           `json:"images_present"`
	Bytes            int64         `json:"bytes"`
	Duration         time.Duration `json:"duration"`
	DryRun           bool          `json:"dry_run"`
}

// Fetcher walks sites, devices and image slots, committing each site to the
// checkpoint once all of its images have been attempted
type Fetcher struct {
	client      APIClient
	store       ImageStore
	checkpoints CheckpointStore
	reporter    Reporter
	logger      logger.Logger
	pool        *downloader.Pool
	opts        Options
}

// New creates a Fetcher. reporter and log may be nil.
func New(client APIClient, store ImageStore, checkpoints CheckpointStore, reporter Reporter, log logger.Logger, opts Options) *Fetcher {
	if reporter == nil {
		reporter = nopReporter{}
	}
	if log == nil {
		log = logger.GetLogger()
	}
	return &Fetcher{
		client:      client,
		store:       store,
		checkpoints: checkpoints,
		reporter:    reporter,
		logger:      log,
		pool:        downloader.NewPool(opts.Concurrency, client, store, log),
		opts:        opts,
	}
}

// site is a site-scoped privilege resolved to its checkpoint key and
// directory name
type site struct {
	key     string
	dirName string
	id      string
}

// resolveSite keys a nameless site by its id, so nameless sites neither
// share one checkpoint entry nor shadow a site that is really called
// "unknown_site"
func resolveSite(s models.Site) site {
	key := storage.UnknownSite
	switch {
	case s.Name != nil:
		key = *s.Name
	case s.SiteID != "":
		key = storage.UnknownSite + "_" + s.SiteID
	}
	return site{
		key:     key,
		dirName: storage.SanitizeName(key),
		id:      s.SiteID,
	}
}

// Run performs one fetch pass. The first error of any kind ends the run;
// sites committed before it stay committed.
func (f *Fetcher) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()
	summary := &Summary{RunID: uuid.NewString(), DryRun: f.opts.DryRun}
	log := f.logger.WithField("run_id", summary.RunID)

	defer func() {
		summary.Duration = time.Since(start)
	}()

	log.InfoWithFields("Starting fetch run", map[string]interface{}{
		"item_limit":    f.opts.ItemLimit,
		"concurrency":   f.pool.Workers(),
		"force_restart": f.opts.ForceRestart,
		"dry_run":       f.opts.DryRun,
	})

	completed, err := f.loadCheckpoint(log)
	if err != nil {
		return summary, err
	}

	sites, err := f.listSites(ctx)
	if err != nil {
		return summary, err
	}
	summary.SitesTotal = len(sites)
	f.reporter.SitesFound(len(sites))

	for i, s := range sites {
		index := i + 1
		siteLog := log.WithFields(map[string]interface{}{
			"site":    s.key,
			"site_id": s.id,
		})

		if completed.Has(s.key) {
			summary.SitesSkipped++
			if f.opts.DryRun {
				f.reporter.SitePlanned(index, len(sites), s.key, true)
			} else {
				f.reporter.SiteSkipped(index, len(sites), s.key)
			}
			siteLog.Debug("Site already completed")
			continue
		}

		if f.opts.DryRun {
			f.reporter.SitePlanned(index, len(sites), s.key, false)
			continue
		}

		if err := ctx.Err(); err != nil {
			return summary, err
		}

		if err := f.processSite(ctx, siteLog, s, index, len(sites), summary); err != nil {
			return summary, err
		}

		completed.Add(s.key)
		if err := f.checkpoints.Save(completed); err != nil {
			return summary, fmt.Errorf("failed to save checkpoint after site %q: %w", s.key, err)
		}
		summary.SitesCompleted++
	}

	logger.LogRunSummary(log, map[string]interface{}{
		"sites_total":       summary.SitesTotal,
		"sites_skipped":     summary.SitesSkipped,
		"sites_completed":   summary.SitesCompleted,
		"devices":           summary.Devices,
		"images_downloaded": summary.ImagesDownloaded,
		"images_present":    summary.ImagesPresent,
		"duration":          time.Since(start),
	})
	return summary, nil
}

// loadCheckpoint returns the completed-site set. With ForceRestart the
// existing file, valid or not, is backed up and replaced by an empty set.
// A dry run with ForceRestart plans against an empty set and leaves the
// files alone.
func (f *Fetcher) loadCheckpoint(log logger.Logger) (checkpoint.Set, error) {
	if f.opts.ForceRestart {
		if f.opts.DryRun {
			log.Info("Dry run with force restart, checkpoint left untouched")
			return checkpoint.NewSet(), nil
		}
		backup, err := f.checkpoints.Backup()
		if err != nil {
			return nil, err
		}
		if backup != "" {
			log.WarnWithFields("Force restart, ignoring existing checkpoint", map[string]interface{}{
				"backup": backup,
			})
		}
		empty := checkpoint.NewSet()
		if err := f.checkpoints.Save(empty); err != nil {
			return nil, err
		}
		return empty, nil
	}

	completed, err := f.checkpoints.Load()
	if err != nil {
		if apperrors.IsKind(err, apperrors.KindCorruptCheckpoint) {
			log.WithError(err).Error("Checkpoint is corrupt, rerun with --force-restart to start over")
		}
		return nil, err
	}
	return completed, nil
}

// listSites keeps object entries with scope "site", then applies the limit
func (f *Fetcher) listSites(ctx context.Context) ([]site, error) {
	privileges, err := f.client.ListPrivileges(ctx)
	if err != nil {
		return nil, err
	}

	var sites []site
	for _, p := range privileges {
		if p.IsSite() {
			sites = append(sites, resolveSite(p.Site()))
		}
	}

	f.logger.DebugWithFields("Privileges listed", map[string]interface{}{
		"privileges": len(privileges),
		"sites":      len(sites),
	})

	return truncate(sites, f.opts.ItemLimit), nil
}

func (f *Fetcher) processSite(ctx context.Context, log logger.Logger, s site, index, total int, summary *Summary) error {
	devices, err := f.client.ListDevices(ctx, s.id)
	if err != nil {
		return err
	}
	devices = truncate(devices, f.opts.ItemLimit)

	siteDir, err := f.store.SiteDir(s.dirName)
	if err != nil {
		return err
	}

	log.InfoWithFields("Processing site", map[string]interface{}{
		"devices": len(devices),
		"dir":     siteDir,
	})

	siteImages := 0
	for i, device := range devices {
		f.reporter.DeviceStarted(index, total, i+1, len(devices))

		name := storage.SanitizeNameOr(device.Name, storage.UnknownDevice)
		urls := device.ImageURLs()
		jobs := make([]downloader.Job, len(urls))
		for slot, url := range urls {
			jobs[slot] = downloader.Job{
				URL:   url,
				Path:  storage.ImagePath(siteDir, name, slot+1),
				Index: slot + 1,
			}
		}

		stats, err := f.pool.Run(ctx, jobs)
		summary.ImagesDownloaded += stats.Downloaded
		summary.ImagesPresent += stats.Present
		summary.Bytes += stats.Bytes
		siteImages += stats.Downloaded
		if err != nil {
			if url := apperrors.URL(err); url != "" && apperrors.IsKind(err, apperrors.KindHTTP) {
				f.reporter.ImageFailed(url, err)
			}
			log.WithError(err).ErrorWithFields("Device failed, aborting run", map[string]interface{}{
				"device": name,
			})
			return err
		}

		summary.Devices++
		f.reporter.DeviceDone(summary.ImagesDownloaded)
	}

	logger.LogSiteCompleted(log, s.id, len(devices), siteImages)
	return nil
}

func truncate[T any](items []T, limit int) []T {
	if limit > 0 && len(items) > limit {
		return items[:limit]
	}
	return items
}
