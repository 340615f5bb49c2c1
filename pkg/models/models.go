package models

import "fmt"

// MaxImageSlots is the number of numbered image fields a device can carry
const MaxImageSlots = 9

// ScopeSite is the privilege scope that marks an entry as a site
const ScopeSite = "site"

// Privilege is one entry of the account's privileges list. Entries are
// heterogeneous: Object is false when the entry was not a JSON object, in
// which case the other fields are empty.
type Privilege struct {
	Object bool
	Scope  *string
	Name   *string
	SiteID *string
}

// IsSite reports whether the entry is an object with scope "site"
func (p Privilege) IsSite() bool {
	return p.Object && p.Scope != nil && *p.Scope == ScopeSite
}

// Site returns the site view of a site-scoped privilege
func (p Privilege) Site() Site {
	return Site{Name: p.Name, SiteID: deref(p.SiteID)}
}

// Site is an organisational unit whose devices are fetched. Name is the
// checkpoint identity; it is nil when the API omitted it.
type Site struct {
	Name   *string
	SiteID string
}

// Device is an access point with up to nine image slots. Absent or null
// slots are nil.
type Device struct {
	Name   *string
	Images [MaxImageSlots]*string
}

// ImageURL returns the URL of slot i (1-based). ok is false when the slot is
// absent, empty or out of range.
func (d Device) ImageURL(i int) (url string, ok bool) {
	if i < 1 || i > MaxImageSlots {
		return "", false
	}
	p := d.Images[i-1]
	if p == nil || *p == "" {
		return "", false
	}
	return *p, true
}

// ImageURLs returns the contiguous run of present slots starting at 1. The
// first absent slot ends the run even if later slots are set.
func (d Device) ImageURLs() []string {
	var urls []string
	for i := 1; i <= MaxImageSlots; i++ {
		url, ok := d.ImageURL(i)
		if !ok {
			break
		}
		urls = append(urls, url)
	}
	return urls
}

// ImageField returns the JSON field name of slot i
func ImageField(i int) string {
	return fmt.Sprintf("image%d_url", i)
}

// String returns a pointer to s, for building records in code and tests
func String(s string) *string {
	return &s
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
