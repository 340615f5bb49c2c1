package api

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// SelfEndpoint returns the account and its privileges
	SelfEndpoint = "/self"

	// DevicesEndpoint lists the devices of one site
	DevicesEndpoint = "/sites/%s/devices"
)

// NormalizeBaseURL strips trailing slashes so endpoint paths join cleanly
func NormalizeBaseURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/")
}

// SelfURL returns the privileges endpoint for baseURL
func SelfURL(baseURL string) string {
	return NormalizeBaseURL(baseURL) + SelfEndpoint
}

// DevicesURL returns the device list endpoint of a site. The site id is
// escaped as a single path segment.
func DevicesURL(baseURL, siteID string) string {
	return NormalizeBaseURL(baseURL) + fmt.Sprintf(DevicesEndpoint, url.PathEscape(siteID))
}
