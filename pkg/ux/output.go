// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the licenseguard CLI.
//
// Color is applied only when the destination is a terminal and NO_COLOR is
// unset; redirected output is plain text so that it diffs and greps
// cleanly.
package ux

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // highlights
	ColorTealPrimary = lipgloss.Color("#20B9B4") // main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorNotice  = lipgloss.Color("#5DADE2") // blue for low-risk notes
	ColorWarning = lipgloss.Color("#F4D03F") // amber
	ColorAlert   = lipgloss.Color("#E67E22") // orange for high risk
	ColorError   = lipgloss.Color("#E74C3C") // red
	ColorMuted   = lipgloss.Color("#2C4A54")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Notice    lipgloss.Style
	Warning   lipgloss.Style
	Alert     lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Notice:    lipgloss.NewStyle().Foreground(ColorNotice),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Alert:     lipgloss.NewStyle().Foreground(ColorAlert).Bold(true),
	Error:     lipgloss.NewStyle().Foreground(ColorError).Bold(true),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
	IconArrow   Icon = "→"
)

// Painter renders styled text, or plain text when color is disabled.
type Painter struct {
	color bool
}

// NewPainter returns a Painter with color explicitly on or off.
func NewPainter(color bool) Painter {
	return Painter{color: color}
}

// PainterFor enables color only when w is a terminal and NO_COLOR is unset.
func PainterFor(w io.Writer) Painter {
	return Painter{color: ColorEnabled(w)}
}

// ColorEnabled reports whether styled output should be written to w.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Color reports whether the painter emits styles.
func (p Painter) Color() bool {
	return p.color
}

// Paint renders text with style when color is enabled.
func (p Painter) Paint(style lipgloss.Style, text string) string {
	if !p.color {
		return text
	}
	return style.Render(text)
}

// Icon renders an icon with its conventional color.
func (p Painter) Icon(i Icon) string {
	switch i {
	case IconSuccess:
		return p.Paint(Styles.Success, string(i))
	case IconWarning:
		return p.Paint(Styles.Warning, string(i))
	case IconError:
		return p.Paint(Styles.Error, string(i))
	default:
		return string(i)
	}
}
