package fetcher

import (
	"context"
	"io"

	"apimages/pkg/checkpoint"
	"apimages/pkg/models"
)

// APIClient is the part of the device API the fetcher uses
type APIClient interface {
	ListPrivileges(ctx context.Context) ([]models.Privilege, error)
	ListDevices(ctx context.Context, siteID string) ([]models.Device, error)
	FetchImage(ctx context.Context, url string) ([]byte, error)
}

// ImageStore lays images out on disk
type ImageStore interface {
	SiteDir(siteName string) (string, error)
	Exists(path string) bool
	SaveImage(path string, r io.Reader) (int64, error)
}

// CheckpointStore loads and persists the completed-site set
type CheckpointStore interface {
	Load() (checkpoint.Set, error)
	Save(set checkpoint.Set) error
	Backup() (string, error)
}

// Reporter receives user-facing progress events
type Reporter interface {
	SitesFound(total int)
	SiteSkipped(index, total int, name string)
	SitePlanned(index, total int, name string, completed bool)
	DeviceStarted(siteIndex, siteTotal, deviceIndex, deviceTotal int)
	DeviceDone(totalDownloaded int)
	ImageFailed(url string, err error)
}

type nopReporter struct{}

func (nopReporter) SitesFound(int)                     {}
func (nopReporter) SiteSkipped(int, int, string)       {}
func (nopReporter) SitePlanned(int, int, string, bool) {}
func (nopReporter) DeviceStarted(int, int, int, int)   {}
func (nopReporter) DeviceDone(int)                     {}
func (nopReporter) ImageFailed(string, error)          {}
