// Package util holds small filesystem and formatting helpers shared
// by the server and client.
package util

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// AvailableDiskSpace returns the available disk space in bytes for
// the given path, or 0 if it cannot be determined.
func AvailableDiskSpace(path string) uint64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0
	}
	return stat.Bavail * uint64(stat.Bsize)
}

// FormatBytesReadable formats a byte count as a human-readable string
// (e.g. "152.1 KB").
func FormatBytesReadable(bytes uint64) string {
	const unitStep = 1024.0
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	i := 0
	for size >= unitStep && i < len(units)-1 {
		size /= unitStep
		i++
	}
	if i == 0 {
		return fmt.Sprintf("%d %s", bytes, units[i])
	}
	return fmt.Sprintf("%.1f %s", size, units[i])
}

// CalculateReductionPercent returns the percentage reduction from
// original to compressed size (0 if original is 0).
func CalculateReductionPercent(original, compressed uint64) float64 {
	if original == 0 {
		return 0
	}
	return (1 - float64(compressed)/float64(original)) * 100
}
