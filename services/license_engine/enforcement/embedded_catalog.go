// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
This file bakes the default rule catalog into the binary so that a scan
never depends on files next to the executable. The catalog is read-only at
runtime; callers extend it by merging an override document on top.
*/

package enforcement

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
)

//go:embed license_patterns.yaml
var LicensePatterns []byte

// CatalogDigest returns the hex SHA-256 of the embedded catalog. It is
// recorded with every run so that history entries can be tied to the rules
// that produced them.
func CatalogDigest() string {
	sum := sha256.Sum256(LicensePatterns)
	return hex.EncodeToString(sum[:])
}
