// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package generator

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// LangPlaceholder is replaced with the language name in the instruction.
const LangPlaceholder = "{lang}"

// Extensions maps supported languages to the file extension written.
var Extensions = map[string]string{
	"python":     "py",
	"go":         "go",
	"typescript": "ts",
	"javascript": "js",
}

// PromptSpec describes one generation batch.
type PromptSpec struct {
	Languages   []string `yaml:"languages" validate:"required,min=1,dive,oneof=python go typescript javascript"`
	Instruction string   `yaml:"instruction" validate:"required"`
	Repeat      int      `yaml:"repeat" validate:"min=1,max=1000"`

	// Models are used round-robin across the repeats of each language.
	// Empty means the client's default model.
	Models []string `yaml:"models" validate:"omitempty,dive,required"`
}

var specValidate = validator.New()

// Prompt returns the instruction for lang.
func (s PromptSpec) Prompt(lang string) string {
	return strings.ReplaceAll(s.Instruction, LangPlaceholder, lang)
}

// ModelFor returns the model for the i-th repeat, or "" when none are set.
func (s PromptSpec) ModelFor(i int) string {
	if len(s.Models) == 0 {
		return ""
	}
	return s.Models[i%len(s.Models)]
}

// ParsePromptSpec decodes and validates a prompt spec document.
func ParsePromptSpec(data []byte) (PromptSpec, error) {
	var spec PromptSpec
	if err := yaml.Unmarshal(data, &spec); err != nil {
		return spec, fmt.Errorf("parse prompt spec: %w", err)
	}
	if err := specValidate.Struct(spec); err != nil {
		return spec, fmt.Errorf("invalid prompt spec: %w", err)
	}
	return spec, nil
}

// LoadPromptSpec reads a prompt spec file.
func LoadPromptSpec(path string) (PromptSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return PromptSpec{}, fmt.Errorf("read prompt spec: %w", err)
	}
	return ParsePromptSpec(data)
}
