// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Exit codes for CLI commands.
const (
	CLIExitSuccess = 0 // Operation completed successfully
	CLIExitError   = 2 // Operation failed
)

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	labelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#1D9EA3"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
)

// styled reports whether stdout is a terminal that should get colors.
func styled() bool {
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

// heading prints a section heading, styled when on a terminal.
func heading(text string) {
	if styled() {
		fmt.Println(headingStyle.Render(text))
		return
	}
	fmt.Println(text)
}

// field prints a "label: value" line.
func field(label string, value any) {
	if styled() {
		fmt.Printf("%s %v\n", labelStyle.Render(label+":"), value)
		return
	}
	fmt.Printf("%s: %v\n", label, value)
}

// dim prints secondary text.
func dim(text string) {
	if styled() {
		fmt.Println(dimStyle.Render(text))
		return
	}
	fmt.Println(text)
}

// OutputJSON writes structured data as indented JSON to stdout.
func OutputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// OutputError writes an error message and exits with CLIExitError.
func OutputError(msg string, err error) {
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	os.Exit(CLIExitError)
}
