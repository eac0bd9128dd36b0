package preflight

import (
	"fmt"
	"os"
	"path/filepath"
)

// CheckMaildir verifies root has the cur/ and new/ folders of a Maildir.
// An unset root is a warning: search works, indexing needs a path.
func (c *Checker) CheckMaildir(root string) CheckResult {
	result := CheckResult{Name: "maildir"}

	if root == "" {
		result.Status = StatusWarn
		result.Message = "not configured"
		result.Details = "Set paths.maildir or MAILSEARCH_MAILDIR, or pass a path to index/watch"
		return result
	}

	result.Required = true
	info, err := os.Stat(root)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot read %s: %v", root, err)
		return result
	}
	if !info.IsDir() {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s is not a directory", root)
		return result
	}

	var missing []string
	for _, sub := range []string{"cur", "new"} {
		if fi, err := os.Stat(filepath.Join(root, sub)); err != nil || !fi.IsDir() {
			missing = append(missing, sub)
		}
	}
	if len(missing) > 0 {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("%s has no %v folder", root, missing)
		result.Details = "Only .eml files and messages in cur/ or new/ are indexed"
		return result
	}

	result.Status = StatusPass
	result.Message = root
	return result
}
