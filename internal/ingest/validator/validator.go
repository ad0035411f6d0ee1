// Package validator classifies a raw selection into archive bundles and
// regular files and rejects entries above the per-file size ceiling.
package validator

import (
	"fmt"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/mediaingest/internal/models"
)

const bytesPerGB = 1024 * 1024 * 1024

var archivePattern = regexp.MustCompile(`(?i)\.zip$`)

// IsArchive reports whether name identifies a zip archive bundle.
func IsArchive(name string) bool {
	return archivePattern.MatchString(name)
}

// ArchiveBaseName strips the archive extension from name.
func ArchiveBaseName(name string) string {
	return archivePattern.ReplaceAllString(name, "")
}

// MaxSizeBytes converts a gigabyte ceiling into bytes.
func MaxSizeBytes(gb float64) int64 {
	return int64(gb * bytesPerGB)
}

// ValidateFiles partitions selection into accepted archives, accepted regular
// files and rejected files. Every accepted file gets a Pending status with
// zero progress, in selection order, and a unique Key that names that
// status. It performs no I/O.
func ValidateFiles(selection []models.RawFile, maxSizeBytes int64) models.ValidationResult {
	res := models.ValidationResult{
		InitialStatuses: make([]models.FileStatus, 0, len(selection)),
	}
	taken := make(map[string]struct{}, len(selection))

	for _, f := range selection {
		if reason := rejectReason(f, maxSizeBytes); reason != "" {
			res.Rejected = append(res.Rejected, models.RejectedFile{Name: f.Name, Size: f.Size, Reason: reason})
			continue
		}

		f.Key = uniqueKey(f.Name, taken)
		if IsArchive(f.Name) {
			res.ValidFiles.ArchiveFiles = append(res.ValidFiles.ArchiveFiles, f)
		} else {
			res.ValidFiles.RegularFiles = append(res.ValidFiles.RegularFiles, f)
		}
		res.InitialStatuses = append(res.InitialStatuses, models.FileStatus{
			Name:     f.Key,
			Progress: 0,
			State:    models.StatePending,
		})
	}

	return res
}

// uniqueKey returns name, or "stem (n).ext" with the lowest n >= 2 not yet
// taken, and marks the result taken.
func uniqueKey(name string, taken map[string]struct{}) string {
	key := name
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for n := 2; ; n++ {
		if _, ok := taken[key]; !ok {
			break
		}
		key = fmt.Sprintf("%s (%d)%s", stem, n, ext)
	}
	taken[key] = struct{}{}
	return key
}

func rejectReason(f models.RawFile, maxSizeBytes int64) string {
	switch {
	case f.Name == "":
		return "missing file name"
	case f.Size < 0:
		return "invalid file size"
	case f.Open == nil:
		return "missing file content"
	case f.Size > maxSizeBytes:
		return fmt.Sprintf("exceeds the %sGB limit", formatGB(maxSizeBytes))
	}
	return ""
}

// Warnings renders one user-facing message per rejected file.
func Warnings(res models.ValidationResult) []string {
	out := make([]string, 0, len(res.Rejected))
	for _, r := range res.Rejected {
		out = append(out, fmt.Sprintf("%s %s", r.Name, r.Reason))
	}
	return out
}

func formatGB(b int64) string {
	return strconv.FormatFloat(float64(b)/bytesPerGB, 'f', -1, 64)
}
