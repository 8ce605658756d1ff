// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette.
var (
	ColorAccent  = lipgloss.Color("#C0392B")
	ColorPrimary = lipgloss.Color("#E6B0AA")
	ColorBorder  = lipgloss.Color("#7B241C")
	ColorSuccess = lipgloss.Color("#2ECC71")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
	ColorMuted   = lipgloss.Color("#7F8C8D")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title    lipgloss.Style
	Heading  lipgloss.Style
	Bold     lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Label    lipgloss.Style
	Box      lipgloss.Style
	WarnBox  lipgloss.Style
	TableKey lipgloss.Style
}{
	Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorAccent),
	Heading:  lipgloss.NewStyle().Bold(true).Foreground(ColorPrimary).MarginTop(1),
	Bold:     lipgloss.NewStyle().Bold(true),
	Muted:    lipgloss.NewStyle().Foreground(ColorMuted),
	Success:  lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
	Error:    lipgloss.NewStyle().Foreground(ColorError),
	Label:    lipgloss.NewStyle().Foreground(ColorMuted).Width(22),
	TableKey: lipgloss.NewStyle().Bold(true).Width(22),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(0, 1),
	WarnBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
	IconArrow   Icon = "→"
)

// Render returns the icon with its color.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes styled output at a personality level.
type Printer struct {
	w     io.Writer
	level PersonalityLevel
	width int
}

// NewPrinter creates a printer. Width bounds boxes; zero uses 80.
func NewPrinter(w io.Writer, level PersonalityLevel, width int) *Printer {
	if width <= 0 {
		width = 80
	}
	return &Printer{w: w, level: level, width: width}
}

// Level returns the printer's personality level.
func (p *Printer) Level() PersonalityLevel {
	return p.level
}

// Writer returns the destination.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Title prints a styled title. Machine output prints it unstyled.
func (p *Printer) Title(text string) {
	if p.level == PersonalityMachine {
		fmt.Fprintln(p.w, text)
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Heading prints a section heading.
func (p *Printer) Heading(text string) {
	if p.level == PersonalityMachine {
		fmt.Fprintf(p.w, "\n## %s\n", text)
		return
	}
	fmt.Fprintln(p.w, Styles.Heading.Render(text))
}

// Success prints a success line.
func (p *Printer) Success(text string) {
	p.status("OK", IconSuccess, Styles.Success, text)
}

// Warning prints a warning line.
func (p *Printer) Warning(text string) {
	p.status("WARN", IconWarning, Styles.Warning, text)
}

// Error prints an error line.
func (p *Printer) Error(text string) {
	p.status("ERROR", IconError, Styles.Error, text)
}

func (p *Printer) status(tag string, icon Icon, style lipgloss.Style, text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.w, "%s: %s\n", tag, text)
	case PersonalityMinimal:
		fmt.Fprintf(p.w, "%s %s\n", icon, text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", icon.Render(), style.Render(text))
	}
}

// Text prints a paragraph.
func (p *Printer) Text(text string) {
	fmt.Fprintln(p.w, strings.TrimRight(text, "\n"))
}

// Muted prints secondary text. Machine output omits it.
func (p *Printer) Muted(text string) {
	if p.level == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.w, Styles.Muted.Render(text))
}

// Bullets prints one bullet per item.
func (p *Printer) Bullets(items []string) {
	for _, it := range items {
		if p.level == PersonalityMachine {
			fmt.Fprintf(p.w, "- %s\n", it)
			continue
		}
		fmt.Fprintf(p.w, "  %s %s\n", IconBullet, it)
	}
}

// Field prints an aligned label and value.
func (p *Printer) Field(label, value string) {
	if p.level == PersonalityMachine {
		fmt.Fprintf(p.w, "%s\t%s\n", label, value)
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", Styles.Label.Render(label), value)
}

// Box prints content in a rounded box under title.
func (p *Printer) Box(title, content string) {
	p.box(Styles.Box, Styles.Title, title, content)
}

// WarningBox prints content in a warning-colored box.
func (p *Printer) WarningBox(title, content string) {
	p.box(Styles.WarnBox, Styles.Warning.Bold(true), title, content)
}

func (p *Printer) box(style, titleStyle lipgloss.Style, title, content string) {
	if p.level != PersonalityFull {
		fmt.Fprintf(p.w, "%s: %s\n", title, content)
		return
	}
	fmt.Fprintln(p.w, style.Width(p.width-2).Render(titleStyle.Render(title)+"\n"+content))
}

// Table prints rows of label/value pairs under a header row.
func (p *Printer) Table(header []string, rows [][]string) {
	if p.level == PersonalityMachine {
		fmt.Fprintln(p.w, strings.Join(header, "\t"))
		for _, r := range rows {
			fmt.Fprintln(p.w, strings.Join(r, "\t"))
		}
		return
	}
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(r[i]))
		}
	}
	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(widths))
		for i := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			parts[i] = style.Width(widths[i]).Render(cell)
		}
		fmt.Fprintln(p.w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(header, Styles.Bold)
	for _, r := range rows {
		line(r, lipgloss.NewStyle())
	}
}
