// Package checkpoint persists the set of sites whose images have all been
// fetched, so that a later run skips them.
//
// The file is a sorted, indented JSON array of site names and is rewritten
// in full after every completed site. Writes go through a temporary file
// and a rename, so a crash leaves either the previous or the new set.
package checkpoint
