// Package jkey derives the short, deterministic keys used to name served
// artifacts from GTFS identifiers.
package jkey

import (
	"crypto/md5"
	"encoding/hex"
)

// Of returns the key for an identifier.
func Of(id string) string {
	sum := md5.Sum([]byte(id))
	return hex.EncodeToString(sum[:])
}
