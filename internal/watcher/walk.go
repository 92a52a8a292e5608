package watcher

import (
	"os"
	"path/filepath"
)

// walk visits every entry under dir (including dir itself), invoking fn
// for each. It's a thin wrapper over filepath.Walk used to enumerate a
// newly stabilized directory's contents (§4.6).
func walk(dir string, fn func(path string, info os.FileInfo)) error {
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		fn(path, info)
		return nil
	})
}
