// Package fetcher drives a fetch run.
//
// A run loads the completed-site checkpoint, lists the account's
// privileges, keeps the site-scoped ones and walks them in order. Sites
// already in the checkpoint are skipped without any API call. For every
// other site the devices are listed, each device's image slots are scanned
// from 1 until the first empty one, images already on disk are left alone
// and the rest are downloaded. Only when every device of a site has been
// handled is the site added to the checkpoint, which is then saved.
//
// Any error stops the run. Sites saved before the error stay saved, so the
// next run resumes with the site that failed.
package fetcher
