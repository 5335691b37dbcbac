// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package similarity

import (
	"crypto/sha256"
	"strings"
)

// DefaultShingleSize is the number of consecutive normalized lines hashed
// into one shingle.
const DefaultShingleSize = 3

type digest = [sha256.Size]byte

// Fingerprint is the hashed shape of a text: a digest of the whole
// normalized content plus the set of line-shingle digests.
type Fingerprint struct {
	Whole    digest
	Shingles map[digest]struct{}
}

// Empty reports whether the text had no content after normalization.
func (f Fingerprint) Empty() bool {
	return len(f.Shingles) == 0
}

// NewFingerprint normalizes content and hashes it. Normalization lowercases,
// collapses runs of whitespace, and drops blank lines. Texts shorter than
// size lines become a single shingle.
func NewFingerprint(content string, size int) Fingerprint {
	if size <= 0 {
		size = DefaultShingleSize
	}
	lines := normalizedLines(content)
	fp := Fingerprint{
		Whole:    sha256.Sum256([]byte(strings.Join(lines, " "))),
		Shingles: make(map[digest]struct{}),
	}
	if len(lines) == 0 {
		return fp
	}
	if len(lines) < size {
		fp.Shingles[sha256.Sum256([]byte(strings.Join(lines, "\n")))] = struct{}{}
		return fp
	}
	for i := 0; i+size <= len(lines); i++ {
		fp.Shingles[sha256.Sum256([]byte(strings.Join(lines[i:i+size], "\n")))] = struct{}{}
	}
	return fp
}

// Jaccard returns |a ∩ b| / |a ∪ b| over shingles. Identical whole-content
// digests score 1. Two empty fingerprints score 0.
func Jaccard(a, b Fingerprint) float64 {
	if a.Empty() || b.Empty() {
		return 0
	}
	if a.Whole == b.Whole {
		return 1
	}
	small, large := a.Shingles, b.Shingles
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for d := range small {
		if _, ok := large[d]; ok {
			inter++
		}
	}
	union := len(a.Shingles) + len(b.Shingles) - inter
	return float64(inter) / float64(union)
}

func normalizedLines(content string) []string {
	var out []string
	for _, line := range strings.Split(content, "\n") {
		fields := strings.Fields(strings.ToLower(line))
		if len(fields) == 0 {
			continue
		}
		out = append(out, strings.Join(fields, " "))
	}
	return out
}
