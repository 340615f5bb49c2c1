// Package downloader runs the image fetches of one device through a bounded
// errgroup. The caller waits for Run to return before committing anything,
// so a site is only marked complete once all of its images were attempted.
package downloader
