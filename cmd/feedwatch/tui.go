/*
 * Copyright 2026 ReportMate.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/reportmate/fleetfeed/pkg/models"
	"github.com/reportmate/fleetfeed/pkg/stream"
)

// Dracula theme colors.
const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaOrange     = "#FFB86C"
	draculaPink       = "#FF79C6"
	draculaRed        = "#FF5555"
	draculaYellow     = "#F1FA8C"
	draculaComment    = "#6272A4"
)

const maxRows = 30

type styles struct {
	header, device, meta, count lipgloss.Style
	kinds                       map[models.EventKind]lipgloss.Style
	status                      map[models.ConnectionStatus]lipgloss.Style
}

func newStyles() styles {
	return styles{
		header: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaForeground)).
			Bold(true),
		device: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaCyan)),
		meta: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment)),
		count: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPink)).
			Bold(true),
		kinds: map[models.EventKind]lipgloss.Style{
			models.KindSystem:  lipgloss.NewStyle().Foreground(lipgloss.Color(draculaCyan)),
			models.KindInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color(draculaForeground)),
			models.KindError:   lipgloss.NewStyle().Foreground(lipgloss.Color(draculaRed)).Bold(true),
			models.KindWarning: lipgloss.NewStyle().Foreground(lipgloss.Color(draculaOrange)),
			models.KindSuccess: lipgloss.NewStyle().Foreground(lipgloss.Color(draculaGreen)),
		},
		status: map[models.ConnectionStatus]lipgloss.Style{
			models.StatusConnecting:   lipgloss.NewStyle().Foreground(lipgloss.Color(draculaYellow)),
			models.StatusConnected:    lipgloss.NewStyle().Foreground(lipgloss.Color(draculaGreen)).Bold(true),
			models.StatusPolling:      lipgloss.NewStyle().Foreground(lipgloss.Color(draculaYellow)),
			models.StatusReconnecting: lipgloss.NewStyle().Foreground(lipgloss.Color(draculaOrange)),
			models.StatusError:        lipgloss.NewStyle().Foreground(lipgloss.Color(draculaRed)).Bold(true),
		},
	}
}

type feedUpdateMsg struct{}

type tickMsg time.Time

type feedModel struct {
	manager *stream.Manager
	styles  styles
	spin    spinner.Model

	health  models.ConnectionHealth
	bundles []models.Bundle
	width   int
}

func newFeedModel(manager *stream.Manager) feedModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaPink))

	return feedModel{
		manager: manager,
		styles:  newStyles(),
		spin:    sp,
		health:  manager.Health(),
	}
}

func (m feedModel) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.waitForUpdate(), tick())
}

func (m feedModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		<-m.manager.Updates()
		return feedUpdateMsg{}
	}
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m feedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case feedUpdateMsg:
		m.health = m.manager.Health()
		m.bundles = m.manager.Bundles()

		return m, m.waitForUpdate()
	case tickMsg:
		m.health = m.manager.Health()
		return m, tick()
	default:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)

		return m, cmd
	}

	return m, nil
}

func (m feedModel) View() string {
	var b strings.Builder

	statusStyle, ok := m.styles.status[m.health.Status]
	if !ok {
		statusStyle = m.styles.meta
	}

	b.WriteString(m.spin.View())
	b.WriteString(m.styles.header.Render(" ReportMate live feed  "))
	b.WriteString(statusStyle.Render(string(m.health.Status)))

	if !m.health.LastUpdate.IsZero() {
		b.WriteString(m.styles.meta.Render(
			fmt.Sprintf("  last update %s ago", time.Since(m.health.LastUpdate).Truncate(time.Second))))
	}

	if m.health.ConsecutiveErrors > 0 {
		b.WriteString(m.styles.kinds[models.KindError].Render(
			fmt.Sprintf("  errors: %d", m.health.ConsecutiveErrors)))
	}

	b.WriteString("\n\n")

	if len(m.bundles) == 0 {
		b.WriteString(m.styles.meta.Render("waiting for events..."))
		b.WriteString("\n")
	}

	rows := m.bundles
	if len(rows) > maxRows {
		rows = rows[:maxRows]
	}

	for _, bundle := range rows {
		b.WriteString(m.styles.meta.Render(bundle.Timestamp.Local().Format(time.TimeOnly)))
		b.WriteString("  ")
		b.WriteString(m.styles.device.Render(fmt.Sprintf("%-18s", bundle.Device)))
		b.WriteString("  ")

		if bundle.Count > 1 {
			b.WriteString(m.styles.count.Render(fmt.Sprintf("×%d ", bundle.Count)))
		}

		b.WriteString(m.renderKinds(bundle.BundledKinds))
		b.WriteString("  ")
		b.WriteString(bundle.Message)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.styles.meta.Render("q to quit"))
	b.WriteString("\n")

	return b.String()
}

func (m feedModel) renderKinds(kinds []models.EventKind) string {
	parts := make([]string, 0, len(kinds))

	for _, kind := range kinds {
		style, ok := m.styles.kinds[kind]
		if !ok {
			style = m.styles.meta
		}

		parts = append(parts, style.Render(string(kind)))
	}

	return strings.Join(parts, ",")
}

// runTUI starts the manager in the background and blocks in the bubbletea
// event loop until the user quits.
func runTUI(ctx context.Context, manager *stream.Manager) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		_ = manager.Start(ctx)
	}()

	defer func() {
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()

		cancel()
		_ = manager.Stop(stopCtx)
	}()

	program := tea.NewProgram(newFeedModel(manager), tea.WithAltScreen())

	_, err := program.Run()

	return err
}
