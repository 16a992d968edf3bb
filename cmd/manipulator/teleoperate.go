package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/tactilekit/manipulator/pkg/drivers/feetech"
	"github.com/tactilekit/manipulator/pkg/robot"
	"github.com/tactilekit/manipulator/pkg/teleop"
)

type TeleoperateCommand struct {
	Hz int `long:"hz" default:"60" description:"Control loop frequency"`
}

const (
	headerHeight = 2 // title + blank line
	legendHeight = 2 // legend row + blank
	footerHeight = 7 // log box height
	maxLogs      = 5 // number of log messages to show
	borderSize   = 2 // chart border
)

// motorPalette cycles through distinct colors for chart data sets.
var motorPalette = []string{
	"196", // red
	"208", // orange
	"226", // yellow
	"46",  // green
	"51",  // cyan
	"201", // magenta
	"33",  // blue
	"129", // purple
}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	alertStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
)

// actionLabels names each slot of the flattened action vector. Labels are
// prefixed with the arm name when more than one follower is configured.
func actionLabels(cfg *robot.Config) []string {
	var labels []string
	for _, arm := range cfg.FollowerArms {
		for _, name := range arm.MotorNames() {
			if len(cfg.FollowerArms) > 1 {
				labels = append(labels, arm.Name+"."+name)
			} else {
				labels = append(labels, name)
			}
		}
	}
	return labels
}

type teleopModel struct {
	ctrl         *teleop.Controller
	chart        *streamlinechart.Model
	labels       []string
	width        int      // terminal width
	height       int      // terminal height
	logs         []string // last N log messages
	quitting     bool
	tactileAlert bool
	lastAction   []float64 // track previous action to detect movement
}

func (m *teleopModel) addLog(msg string) {
	m.logs = append(m.logs, msg)
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// hasMovement checks if the action vector changed since the last state
func (m *teleopModel) hasMovement(action []float64) bool {
	if m.lastAction == nil || len(m.lastAction) != len(action) {
		return true // first reading, consider it movement
	}
	for i, v := range action {
		if v != m.lastAction[i] {
			return true
		}
	}
	return false
}

// Messages from the controller
type stateMsg teleop.State
type logMsg string

func waitForState(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return stateMsg(<-ctrl.States())
	}
}

func waitForLog(ctrl *teleop.Controller) tea.Cmd {
	return func() tea.Msg {
		return logMsg(<-ctrl.Logs())
	}
}

// chartSize calculates the size of the chart based on terminal dimensions
func (m *teleopModel) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 20 // default size before we know terminal size
	}
	width = m.width - borderSize - 2
	if width < 40 {
		width = 40
	}
	height = m.height - headerHeight - legendHeight - footerHeight - borderSize
	if height < 10 {
		height = 10
	}
	return width, height
}

func (m *teleopModel) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func initialTeleopModel(ctrl *teleop.Controller, labels []string) teleopModel {
	chart := streamlinechart.New(80, 20,
		streamlinechart.WithYRange(-180, 180),
	)

	for i, label := range labels {
		color := motorPalette[i%len(motorPalette)]
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(color))
		chart.SetDataSetStyles(label, runes.ThinLineStyle, style)
	}

	return teleopModel{
		ctrl:   ctrl,
		chart:  &chart,
		labels: labels,
	}
}

func (m teleopModel) Init() tea.Cmd {
	return tea.Batch(
		waitForState(m.ctrl),
		waitForLog(m.ctrl),
	)
}

func (m teleopModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case stateMsg:
		state := teleop.State(msg)
		m.tactileAlert = state.TactileAlert
		if state.Action != nil {
			// Only update chart if there's movement (freeze when idle)
			if m.hasMovement(state.Action) {
				for i, v := range state.Action {
					if i < len(m.labels) {
						m.chart.PushDataSet(m.labels[i], v)
					}
				}
				m.chart.DrawAll()
				m.lastAction = state.Action
			}
		}
		return m, waitForState(m.ctrl)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.ctrl)
	}

	return m, nil
}

func (m teleopModel) View() string {
	if m.quitting {
		return "Teleoperation stopped.\n"
	}

	var sb strings.Builder

	// Header
	sb.WriteString(titleStyle.Render("Manipulator Teleoperate"))
	sb.WriteString(fmt.Sprintf(" - %d Hz", m.ctrl.Hz()))
	if m.tactileAlert {
		sb.WriteString("  " + alertStyle.Render("TACTILE FAULT"))
	}
	if m.width > 0 {
		sb.WriteString(statusStyle.Render(fmt.Sprintf("  [%dx%d]", m.width, m.height)))
	}
	sb.WriteString("\n\n")

	// Chart
	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")

	// Legend
	sb.WriteString(m.renderLegend())
	sb.WriteString("\n")

	// Log box
	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(m.width - 4).
		Foreground(lipgloss.Color("9")) // bright red

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("Press 'q' to quit")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m teleopModel) renderLegend() string {
	var items []string
	for i, label := range m.labels {
		color := motorPalette[i%len(motorPalette)]
		colorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true)
		items = append(items, colorStyle.Render("━━")+" "+label)
	}
	return strings.Join(items, "  ")
}

func (c *TeleoperateCommand) Execute(args []string) error {
	cfg, err := robot.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'manipulator setup' first.")
		os.Exit(1)
	}

	m, err := robot.New(*cfg, robot.WithDeviceFactory(feetech.Factory()))
	if err != nil {
		log.Fatalf("Failed to create manipulator: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := m.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer m.Disconnect()

	fmt.Printf("Loaded configuration from %s (session %s)\n", robot.DefaultConfigFile, m.SessionID())

	// Record mode so each step returns the action vector the chart plots.
	ctrl := teleop.NewController(m, teleop.Config{Hz: c.Hz, Record: true})

	go func() {
		if err := ctrl.Start(ctx); err != nil && err != context.Canceled {
			log.Printf("Controller error: %v", err)
		}
	}()

	p := tea.NewProgram(initialTeleopModel(ctrl, actionLabels(cfg)), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("Error running program: %v", err)
	}

	return nil
}
