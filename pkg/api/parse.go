package api

import (
	"fmt"

	"github.com/tidwall/gjson"

	"apimages/pkg/models"
)

// parsePrivileges reads the privileges list of a /self body. A missing list
// is empty; entries that are not objects are kept with Object unset.
func parsePrivileges(body []byte) ([]models.Privilege, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsObject() {
		return nil, fmt.Errorf("expected a JSON object, got %s", root.Type)
	}

	list := root.Get("privileges")
	if !list.Exists() || list.Type == gjson.Null {
		return []models.Privilege{}, nil
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("privileges is %s, not a list", list.Type)
	}

	privileges := make([]models.Privilege, 0, len(list.Array()))
	list.ForEach(func(_, entry gjson.Result) bool {
		if !entry.IsObject() {
			privileges = append(privileges, models.Privilege{})
			return true
		}
		privileges = append(privileges, models.Privilege{
			Object: true,
			Scope:  optional(entry.Get("scope")),
			Name:   optional(entry.Get("name")),
			SiteID: optional(entry.Get("site_id")),
		})
		return true
	})
	return privileges, nil
}

// parseDevices reads a device list body, which must be a JSON array of
// objects
func parseDevices(body []byte) ([]models.Device, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("response is not valid JSON")
	}
	root := gjson.ParseBytes(body)
	if !root.IsArray() {
		return nil, fmt.Errorf("expected a JSON list of devices, got %s", root.Type)
	}

	var parseErr error
	devices := make([]models.Device, 0, len(root.Array()))
	root.ForEach(func(_, entry gjson.Result) bool {
		if !entry.IsObject() {
			parseErr = fmt.Errorf("device %d is %s, not an object", len(devices)+1, entry.Type)
			return false
		}
		device := models.Device{Name: optional(entry.Get("name"))}
		for i := 1; i <= models.MaxImageSlots; i++ {
			device.Images[i-1] = imageURL(entry.Get(models.ImageField(i)))
		}
		devices = append(devices, device)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return devices, nil
}

// optional maps a missing or null field to nil and anything else to its
// string form
func optional(r gjson.Result) *string {
	if !r.Exists() || r.Type == gjson.Null {
		return nil
	}
	s := r.String()
	return &s
}

// imageURL keeps only non-empty string slots. false, 0, "" and other
// non-string values mark the slot as absent, ending the image scan.
func imageURL(r gjson.Result) *string {
	if r.Type != gjson.String || r.Str == "" {
		return nil
	}
	s := r.Str
	return &s
}
