// Package record defines FileRecord, the unit of knowledge the service
// keeps about a single path: its content digest, size, modification time,
// and a stable platform-derived identifier.
package record

import "time"

// FileRecord is what the index knows about one path (§3).
type FileRecord struct {
	// Path is the absolute path.
	Path string
	// Name is the basename of Path.
	Name string
	// Digest is the 64-hex content digest. Empty for records that haven't
	// been hashed (should not occur for records stored in the index).
	Digest string
	// Size is the file size in bytes.
	Size int64
	// ModifiedAt is the last-modified timestamp.
	ModifiedAt time.Time
	// FileIdentifier is a stable platform-derived 64-bit identifier
	// composed from the storage volume identifier and the filesystem's
	// internal file index (§3).
	FileIdentifier uint64
}

// ISO8601Milli renders ModifiedAt as UTC ISO-8601 with millisecond
// precision, e.g. "2026-07-31T10:15:30.123Z". Unlike the original
// prototype (see §9 / DESIGN.md), this is true UTC, not local time
// mislabeled as Zulu.
func (r FileRecord) ISO8601Milli() string {
	return r.ModifiedAt.UTC().Format("2006-01-02T15:04:05.000Z")
}
