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
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/AleutianDiscovery/services/nexus/graph"
)

func runExplore(cmd *cobra.Command, args []string) {
	logger := setupLogging()
	defer logger.Close()

	g, err := loadGraph(context.Background())
	if err != nil {
		OutputError("Failed to load graph", err)
	}

	model := newExploreModel(g)
	if _, err := tea.NewProgram(model, tea.WithAltScreen()).Run(); err != nil {
		OutputError("Explorer failed", err)
	}
}

// exploreView selects between the algorithm list and the result pane.
type exploreView int

const (
	viewList exploreView = iota
	viewResult
)

// analysisDoneMsg carries a finished analysis back into the event loop.
type analysisDoneMsg struct {
	result *graph.AlgorithmResult
	err    error
}

var (
	exploreTitleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2CD7C7"))
	exploreSelectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2CD7C7")).Bold(true)
	exploreHelpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	exploreErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F87171"))
)

// exploreModel is the bubbletea model for the analysis explorer.
//
// Thread Safety: single-threaded use inside the bubbletea event loop only.
type exploreModel struct {
	g     *graph.Graph
	specs []graph.AlgorithmSpec

	view     exploreView
	cursor   int
	running  bool
	errText  string
	viewport viewport.Model
	ready    bool
}

func newExploreModel(g *graph.Graph) *exploreModel {
	return &exploreModel{
		g:     g,
		specs: graph.Algorithms(),
	}
}

func (m *exploreModel) Init() tea.Cmd { return nil }

func (m *exploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-4)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - 4
		}

	case analysisDoneMsg:
		m.running = false
		if msg.err != nil {
			m.errText = msg.err.Error()
			return m, nil
		}
		m.errText = ""
		m.viewport.SetContent(renderResult(msg.result))
		m.viewport.GotoTop()
		m.view = viewResult

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "esc":
			if m.view == viewResult {
				m.view = viewList
				return m, nil
			}
			return m, tea.Quit
		case "up", "k":
			if m.view == viewList && m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.view == viewList && m.cursor < len(m.specs)-1 {
				m.cursor++
			}
		case "enter":
			if m.view == viewList && !m.running {
				m.running = true
				m.errText = ""
				spec := m.specs[m.cursor]
				g := m.g
				return m, func() tea.Msg {
					result, err := graph.Execute(context.Background(), g, spec.Name, nil)
					return analysisDoneMsg{result: result, err: err}
				}
			}
		}
	}

	if m.view == viewResult {
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *exploreModel) View() string {
	var b strings.Builder

	stats := m.g.Stats()
	b.WriteString(exploreTitleStyle.Render(
		fmt.Sprintf("Discovery Explorer — %d nodes, %d edges", stats.Nodes, stats.Edges)))
	b.WriteString("\n\n")

	switch m.view {
	case viewList:
		for i, spec := range m.specs {
			line := fmt.Sprintf("  %s — %s", spec.Name, spec.Description)
			if i == m.cursor {
				line = exploreSelectedStyle.Render("> " + strings.TrimSpace(line))
			}
			b.WriteString(line + "\n")
		}
		if m.running {
			b.WriteString("\n  running...\n")
		}
		if m.errText != "" {
			b.WriteString("\n" + exploreErrorStyle.Render("  "+m.errText) + "\n")
		}
		b.WriteString("\n" + exploreHelpStyle.Render("  ↑/↓ select · enter run · q quit"))

	case viewResult:
		if m.ready {
			b.WriteString(m.viewport.View())
		}
		b.WriteString("\n" + exploreHelpStyle.Render("  ↑/↓ scroll · esc back · q quit"))
	}
	return b.String()
}

// renderResult formats an AlgorithmResult for the result viewport.
func renderResult(result *graph.AlgorithmResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  (%.1fms)\n\n", result.AlgorithmName, result.Metadata.ExecutionTimeMs)

	switch data := result.Data.(type) {
	case []graph.Component:
		fmt.Fprintf(&b, "%d components\n", len(data))
		for _, c := range data {
			fmt.Fprintf(&b, "\n%s (%d members)\n  %s\n", c.ID, c.Size, previewMembers(c.Members, 12))
		}
	case []graph.NodeCentrality:
		fmt.Fprintf(&b, "%d ranked nodes\n\n", len(data))
		for _, nc := range data {
			fmt.Fprintf(&b, "%-32s %.4f  %s\n", nc.NodeID, nc.Score, nc.ComponentID)
		}
	case []graph.ConceptGap:
		fmt.Fprintf(&b, "%d gaps\n", len(data))
		for _, gap := range data {
			fmt.Fprintf(&b, "\n%s <-> %s\n  confidence %.2f, %s, distance %d\n",
				gap.Source, gap.Target, gap.Confidence, gap.Type, gap.Distance)
			for _, bridge := range gap.Bridges {
				fmt.Fprintf(&b, "  bridge: %s (%.2f)\n", bridge.NodeID, bridge.Score)
			}
		}
	case []graph.ConceptCluster:
		fmt.Fprintf(&b, "%d clusters\n", len(data))
		for _, cluster := range data {
			fmt.Fprintf(&b, "\n%s: %d members, cohesion %.2f, %s\n  %s\n",
				cluster.ID, len(cluster.Members), cluster.Cohesion, cluster.Type, cluster.Description)
			for _, key := range cluster.KeyNodes {
				fmt.Fprintf(&b, "  key: %s (%s, %.2f)\n", key.NodeID, key.Role, key.Importance)
			}
		}
	default:
		fmt.Fprintf(&b, "%+v\n", result.Data)
	}
	return b.String()
}
