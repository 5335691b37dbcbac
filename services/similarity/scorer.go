// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package similarity compares scanned files against a local corpus of
// reference sources. Matching is exact and hash based; it finds copies and
// light edits of reference files, not paraphrases.
package similarity

import (
	"context"
	"errors"
	"fmt"
	"sort"

	le "github.com/AleutianAI/licenseguard/services/license_engine"
	"github.com/AleutianAI/licenseguard/services/scanner"
)

// DefaultThreshold is the minimum Jaccard score reported as a match.
const DefaultThreshold = 0.8

// RuleID identifies similarity findings.
const RuleID = "SIM_REFERENCE_MATCH"

// Match is the closest reference file for a scanned text.
type Match struct {
	Reference string
	Score     float64
}

// Scorer finds the closest reference for content. ok is false when nothing
// reaches the scorer's threshold.
type Scorer interface {
	Score(content string) (m Match, ok bool)
}

type reference struct {
	path string
	fp   Fingerprint
}

// Corpus is an immutable set of fingerprinted reference files.
type Corpus struct {
	refs        []reference
	shingleSize int
}

// Len returns the number of reference files.
func (c *Corpus) Len() int { return len(c.refs) }

// NewCorpus fingerprints texts keyed by name. Empty texts are skipped.
func NewCorpus(texts map[string]string, shingleSize int) *Corpus {
	if shingleSize <= 0 {
		shingleSize = DefaultShingleSize
	}
	c := &Corpus{shingleSize: shingleSize}
	for name, text := range texts {
		fp := NewFingerprint(text, shingleSize)
		if !fp.Empty() {
			c.refs = append(c.refs, reference{path: name, fp: fp})
		}
	}
	sort.Slice(c.refs, func(i, j int) bool { return c.refs[i].path < c.refs[j].path })
	return c
}

// LoadCorpus walks dir and fingerprints every readable text file. Binary,
// oversized and unreadable files are skipped and returned as warnings.
func LoadCorpus(ctx context.Context, dir string, excludes []string, shingleSize int) (*Corpus, []string, error) {
	w, err := scanner.NewWalker(dir, excludes)
	if err != nil {
		return nil, nil, fmt.Errorf("reference corpus: %w", err)
	}

	texts := make(map[string]string)
	var skipped []string
	warnings, err := w.Walk(ctx, func(c scanner.Candidate) error {
		content, err := scanner.ReadText(c.Path, scanner.DefaultMaxFileSize)
		if err != nil {
			var fae *scanner.FileAccessError
			if errors.As(err, &fae) {
				skipped = append(skipped, err.Error())
				return nil
			}
			return err
		}
		texts[c.RelPath] = content
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load reference corpus %s: %w", dir, err)
	}
	return NewCorpus(texts, shingleSize), append(warnings, skipped...), nil
}

// JaccardScorer scores content against every corpus file.
type JaccardScorer struct {
	corpus    *Corpus
	threshold float64
}

// NewJaccardScorer validates threshold, which must be in (0, 1].
func NewJaccardScorer(corpus *Corpus, threshold float64) (*JaccardScorer, error) {
	if corpus == nil {
		return nil, errors.New("corpus is required")
	}
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("similarity threshold %v out of range [0, 1]", threshold)
	}
	return &JaccardScorer{corpus: corpus, threshold: threshold}, nil
}

// Score returns the best match at or above the threshold. Ties go to the
// reference that sorts first.
func (s *JaccardScorer) Score(content string) (Match, bool) {
	fp := NewFingerprint(content, s.corpus.shingleSize)
	if fp.Empty() {
		return Match{}, false
	}
	var best Match
	for _, ref := range s.corpus.refs {
		if score := Jaccard(fp, ref.fp); best.Reference == "" || score > best.Score {
			best = Match{Reference: ref.path, Score: score}
		}
	}
	if best.Reference == "" || best.Score < s.threshold {
		return Match{}, false
	}
	return best, true
}

// Check adapts a Scorer to license_engine.FileCheck.
type Check struct {
	scorer Scorer
}

// NewCheck wraps scorer. A nil scorer yields a nil FileCheck.
func NewCheck(scorer Scorer) le.FileCheck {
	if scorer == nil {
		return nil
	}
	return &Check{scorer: scorer}
}

func (c *Check) Name() string { return "similarity" }

func (c *Check) Check(path string, content string, lines []string) []le.Finding {
	m, ok := c.scorer.Score(content)
	if !ok {
		return nil
	}
	return []le.Finding{{
		MatchedText: fmt.Sprintf("%.2f similar to %s", m.Score, m.Reference),
		Label:       "Similar to reference source",
		Severity:    le.SeverityHigh,
		Category:    le.CategorySimilarity,
		RuleID:      RuleID,
		RulePattern: "jaccard",
	}}
}
