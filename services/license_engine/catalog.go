// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package license_engine

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/AleutianAI/licenseguard/services/license_engine/enforcement"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var ruleValidate = validator.New()

// Catalog is the ordered, read-only rule table, keyed by category. The order
// of categories and of rules within a category is the document order, and
// findings on a line are reported in that order.
type Catalog struct {
	order []Category
	rules map[Category][]Rule
}

// LoadDefaultCatalog builds the catalog embedded in the binary.
//
// It performs the following operations:
//  1. Unmarshals the embedded YAML.
//  2. Validates every rule.
//  3. Compiles every regex.
//
// Any failure is a *RuleCompilationError.
func LoadDefaultCatalog() (*Catalog, error) {
	return ParseCatalog("embedded", enforcement.LicensePatterns)
}

// ParseCatalog builds a catalog from a YAML document. Disabled entries are
// not allowed here; they only make sense as overrides.
func ParseCatalog(source string, data []byte) (*Catalog, error) {
	blocks, err := decodeCatalog(source, data)
	if err != nil {
		return nil, err
	}

	c := &Catalog{rules: make(map[Category][]Rule)}
	seen := make(map[string]bool)
	for _, block := range blocks {
		for _, rule := range block.Rules {
			if rule.Disabled {
				return nil, &RuleCompilationError{Source: source, RuleID: rule.ID, Err: errors.New("disabled rule in a base catalog")}
			}
			if seen[rule.ID] {
				return nil, &RuleCompilationError{Source: source, RuleID: rule.ID, Err: errors.New("duplicate rule id")}
			}
			seen[rule.ID] = true
			c.add(rule)
		}
	}
	if c.Len() == 0 {
		return nil, &RuleCompilationError{Source: source, Err: errors.New("catalog defines no rules")}
	}
	if err := c.checkUnless(source); err != nil {
		return nil, err
	}
	return c, nil
}

// WithOverrides returns a new catalog with the rules of an override document
// applied on top of c. An override rule whose ID already exists replaces it,
// or removes it when marked disabled. New IDs are appended to their
// category. c itself is left untouched.
func (c *Catalog) WithOverrides(source string, data []byte) (*Catalog, error) {
	blocks, err := decodeCatalog(source, data)
	if err != nil {
		return nil, err
	}

	next := c.clone()
	removed := make(map[string]bool)
	for _, block := range blocks {
		for _, rule := range block.Rules {
			cat, idx := next.find(rule.ID)
			switch {
			case rule.Disabled && idx < 0:
				return nil, &RuleCompilationError{Source: source, RuleID: rule.ID, Err: errors.New("cannot disable an unknown rule")}
			case rule.Disabled:
				next.rules[cat] = append(next.rules[cat][:idx:idx], next.rules[cat][idx+1:]...)
				removed[rule.ID] = true
			case idx >= 0 && cat == rule.Category:
				next.rules[cat][idx] = rule
			case idx >= 0:
				next.rules[cat] = append(next.rules[cat][:idx:idx], next.rules[cat][idx+1:]...)
				next.add(rule)
			default:
				next.add(rule)
			}
		}
	}
	if next.Len() == 0 {
		return nil, &RuleCompilationError{Source: source, Err: errors.New("overrides disable every rule")}
	}
	next.dropUnless(removed)
	if err := next.checkUnless(source); err != nil {
		return nil, err
	}
	return next, nil
}

// Categories returns the categories in catalog order.
func (c *Catalog) Categories() []Category {
	out := make([]Category, 0, len(c.order))
	for _, cat := range c.order {
		if len(c.rules[cat]) > 0 {
			out = append(out, cat)
		}
	}
	return out
}

// Rules returns a copy of the rules of one category.
func (c *Catalog) Rules(cat Category) []Rule {
	return append([]Rule(nil), c.rules[cat]...)
}

// All returns every rule in catalog order.
func (c *Catalog) All() []Rule {
	var out []Rule
	for _, cat := range c.order {
		out = append(out, c.rules[cat]...)
	}
	return out
}

// Len returns the number of rules.
func (c *Catalog) Len() int {
	n := 0
	for _, rules := range c.rules {
		n += len(rules)
	}
	return n
}

// Lookup returns the rule with the given ID.
func (c *Catalog) Lookup(id string) (Rule, bool) {
	cat, idx := c.find(id)
	if idx < 0 {
		return Rule{}, false
	}
	return c.rules[cat][idx], true
}

func (c *Catalog) add(rule Rule) {
	if _, ok := c.rules[rule.Category]; !ok {
		c.order = append(c.order, rule.Category)
	}
	c.rules[rule.Category] = append(c.rules[rule.Category], rule)
}

func (c *Catalog) find(id string) (Category, int) {
	for cat, rules := range c.rules {
		for i, r := range rules {
			if r.ID == id {
				return cat, i
			}
		}
	}
	return "", -1
}

// checkUnless rejects suppression references to unknown rules or to the
// rule itself.
func (c *Catalog) checkUnless(source string) error {
	for _, rules := range c.rules {
		for _, r := range rules {
			for _, id := range r.Unless {
				if id == r.ID {
					return &RuleCompilationError{Source: source, RuleID: r.ID, Err: errors.New("rule cannot suppress itself")}
				}
				if _, idx := c.find(id); idx < 0 {
					return &RuleCompilationError{Source: source, RuleID: r.ID, Err: fmt.Errorf("unless references unknown rule %q", id)}
				}
			}
		}
	}
	return nil
}

// dropUnless removes references to disabled rules.
func (c *Catalog) dropUnless(removed map[string]bool) {
	if len(removed) == 0 {
		return
	}
	for cat, rules := range c.rules {
		for i, r := range rules {
			var kept []string
			for _, id := range r.Unless {
				if !removed[id] {
					kept = append(kept, id)
				}
			}
			if len(kept) != len(r.Unless) {
				c.rules[cat][i].Unless = kept
			}
		}
	}
}

func (c *Catalog) clone() *Catalog {
	next := &Catalog{
		order: append([]Category(nil), c.order...),
		rules: make(map[Category][]Rule, len(c.rules)),
	}
	for cat, rules := range c.rules {
		next.rules[cat] = append([]Rule(nil), rules...)
	}
	return next
}

// decodeCatalog unmarshals, validates and compiles a catalog document.
func decodeCatalog(source string, data []byte) ([]categoryBlock, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, &RuleCompilationError{Source: source, Err: fmt.Errorf("failed to unmarshal: %w", err)}
	}

	for i := range file.Categories {
		block := &file.Categories[i]
		if block.Category == "" {
			return nil, &RuleCompilationError{Source: source, Err: fmt.Errorf("category block %d has no category", i)}
		}
		for j := range block.Rules {
			rule := &block.Rules[j]
			rule.Category = block.Category
			if err := ruleValidate.Struct(rule); err != nil {
				return nil, &RuleCompilationError{Source: source, RuleID: rule.ID, Err: err}
			}
			if rule.Disabled {
				continue
			}
			re, err := regexp.Compile("(?i)" + rule.Regex)
			if err != nil {
				return nil, &RuleCompilationError{Source: source, RuleID: rule.ID, Pattern: rule.Regex, Err: err}
			}
			rule.compiled = re
		}
	}
	return file.Categories, nil
}
