// Package storage lays out downloaded images on disk.
//
// Every site gets a directory under the output root named by its sanitized
// name, and every image is stored as <device>-image-NN.jpg inside it. Files
// are written to a temporary name and renamed into place, so an interrupted
// run never leaves a truncated image at the final path. A file that already
// exists is treated as downloaded and never rewritten.
package storage
