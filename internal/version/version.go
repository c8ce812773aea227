// Package version holds the release identifiers reported by the CLI and the
// C library.
package version

import (
	"fmt"

	"github.com/keymagic/keymagic/internal/km2"
)

// Version is the KeyMagic engine release.
const Version = "0.1.0"

// String is the long form shown by "keymagic --version": the release and
// the newest keyboard file format the loader reads.
func String() string {
	return fmt.Sprintf("%s (km2 %d.%d)", Version, km2.MajorVersion, km2.MaxMinorVersion)
}
