package storage

import "strings"

// Placeholders used when the API omits a name
const (
	UnknownDevice = "unknown_ap"
	UnknownSite   = "unknown_site"
)

var forbidden = strings.NewReplacer(
	`\`, "_",
	"/", "_",
	":", "_",
	"*", "_",
	"?", "_",
	`"`, "_",
	"<", "_",
	">", "_",
	"|", "_",
	"\t", "_",
	"\n", "_",
	"\r", "_",
	" ", "_",
)

// SanitizeName turns a display name into a single safe path segment by
// replacing the characters \ / : * ? " < > | tab, newline, carriage return
// and space with an underscore.
func SanitizeName(name string) string {
	return forbidden.Replace(name)
}

// SanitizeNameOr sanitizes name, or placeholder when name is nil
func SanitizeNameOr(name *string, placeholder string) string {
	if name == nil {
		return SanitizeName(placeholder)
	}
	return SanitizeName(*name)
}
