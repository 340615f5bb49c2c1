package ui

import (
	"fmt"
	"io"
	"sync"

	apperrors "apimages/pkg/errors"
)

// Progress prints the per-site and per-device lines of a fetch run:
//
//	Found 4 site(s).
//	  Skipping Site 001/004...
//	Processing Site 002/004, AP 01/03... DONE. (Total images downloaded: 2)
type Progress struct {
	mu    sync.Mutex
	out   io.Writer
	quiet bool
	open  bool
}

// NewProgress creates a reporter writing to out. A quiet reporter only
// prints failures.
func NewProgress(out io.Writer, quiet bool) *Progress {
	return &Progress{out: out, quiet: quiet}
}

// SitesFound announces how many sites will be considered
func (p *Progress) SitesFound(total int) {
	p.printf("Found %d site(s).\n", total)
}

// SiteSkipped reports a site that is already in the checkpoint
func (p *Progress) SiteSkipped(index, total int, name string) {
	p.printf("  Skipping Site %03d/%03d...\n", index, total)
}

// SitePlanned reports a site during a dry run
func (p *Progress) SitePlanned(index, total int, name string, completed bool) {
	state := Yellow("pending")
	if completed {
		state = Green("completed")
	}
	p.printf("  Site %03d/%03d %s [%s]\n", index, total, name, state)
}

// DeviceStarted opens the line of one device; DeviceDone closes it
func (p *Progress) DeviceStarted(siteIndex, siteTotal, deviceIndex, deviceTotal int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, "Processing Site %03d/%03d, AP %02d/%02d...", siteIndex, siteTotal, deviceIndex, deviceTotal)
	p.open = true
}

// DeviceDone closes the device line with the run's running image total
func (p *Progress) DeviceDone(totalDownloaded int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, " DONE. (Total images downloaded: %s)\n", FormatCount(totalDownloaded))
	p.open = false
}

// ImageFailed reports the image that ended the run
func (p *Progress) ImageFailed(url string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open {
		fmt.Fprintln(p.out)
		p.open = false
	}
	if status := apperrors.StatusCode(err); status != 0 {
		fmt.Fprintf(p.out, "%s\n", Red(fmt.Sprintf("ERROR: Failed to download image %s (status %d)", url, status)))
		return
	}
	fmt.Fprintf(p.out, "%s\n", Red(fmt.Sprintf("ERROR: Failed to download image %s (%v)", url, err)))
}

func (p *Progress) printf(format string, args ...interface{}) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.quiet {
		return
	}
	fmt.Fprintf(p.out, format, args...)
}
