package preflight

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChecker_CheckDiskSpace(t *testing.T) {
	c := New()

	// Given: an existing data directory
	result := c.CheckDiskSpace(t.TempDir())

	// Then: free space is reported in human units
	assert.Equal(t, "disk_space", result.Name)
	assert.True(t, result.Required)
	assert.Contains(t, result.Message, "free")
	assert.Contains(t, []CheckStatus{StatusPass, StatusWarn, StatusFail}, result.Status)
}

func TestChecker_CheckDiskSpace_MissingDir(t *testing.T) {
	result := New().CheckDiskSpace(filepath.Join(t.TempDir(), "missing"))

	assert.Equal(t, StatusFail, result.Status)
	assert.True(t, result.IsCritical())
	assert.Contains(t, result.Message, "cannot stat")
}

func TestChecker_CheckFileDescriptors(t *testing.T) {
	result := New().CheckFileDescriptors()

	// Then: never a critical failure
	assert.Equal(t, "file_descriptors", result.Name)
	assert.False(t, result.IsCritical())
	assert.Contains(t, result.Message, "soft limit")
}
