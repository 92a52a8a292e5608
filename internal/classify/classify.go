// Package classify implements the path classifier (§4.2): a pure
// function deciding whether a filename should be ignored (temporary,
// backup, or OS-metadata patterns) or processed.
package classify

import "strings"

// ignoredSubstrings are matched case-insensitively anywhere in the
// basename.
var ignoredSubstrings = []string{
	".tmp",
	".temp",
	".swp",
	".swo",
	".bak",
	".crdownload",
	".part",
	".download",
	"thumbs.db",
	"desktop.ini",
	".ds_store",
}

// ignoredPrefix is matched against the start of the lowercased basename.
const ignoredPrefix = "~$"

// ignoredSuffix is matched against the end of the lowercased basename
// (trailing tilde, e.g. editor backup files like "notes.txt~").
const ignoredSuffix = "~"

// ShouldIgnore reports whether the given basename should be excluded from
// scanning and watching.
func ShouldIgnore(name string) bool {
	lower := strings.ToLower(name)

	if strings.HasPrefix(lower, ignoredPrefix) {
		return true
	}
	if strings.HasSuffix(lower, ignoredSuffix) {
		return true
	}
	for _, pattern := range ignoredSubstrings {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}
