package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/tactilekit/manipulator/pkg/robot"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type SetupCommand struct {
	Type string `long:"type" default:"so101" description:"Robot type to configure"`
}

// defaultMotors is the SO-100/SO-101 servo layout: six STS3215 on IDs 1-6.
func defaultMotors() []robot.Motor {
	names := []string{"shoulder_pan", "shoulder_lift", "elbow_flex", "wrist_flex", "wrist_roll", "gripper"}
	motors := make([]robot.Motor, len(names))
	for i, name := range names {
		motors[i] = robot.Motor{Name: name, ID: i + 1, Model: "sts3215"}
	}
	return motors
}

func (c *SetupCommand) Execute(args []string) error {
	robotType := robot.RobotType(c.Type)
	if !robotType.Valid() {
		fmt.Fprintf(os.Stderr, "Unknown robot type %q\n", c.Type)
		os.Exit(1)
	}

	fmt.Println(headerStyle.Render("Manipulator Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━"))
	fmt.Println()

	// Step 1: Scan for arms
	config := scanForArms(robotType)

	// Step 2: Calibrate followers first, then leaders. Followers must hold
	// calibrated units before any leader position is mirrored onto them.
	for _, arm := range config.FollowerArms {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render(fmt.Sprintf("━━━ Calibrating follower arm %q ━━━", arm.Name)))
		fmt.Println()
		calibrateArm(config, arm, robot.RoleFollower)
	}
	for _, arm := range config.LeaderArms {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render(fmt.Sprintf("━━━ Calibrating leader arm %q ━━━", arm.Name)))
		fmt.Println()
		calibrateArm(config, arm, robot.RoleLeader)
	}

	if err := config.Save(); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", robot.DefaultConfigFile)
	fmt.Println()
	fmt.Println("Start teleoperation with: " + headerStyle.Render("manipulator teleoperate"))

	return nil
}

func scanForArms(robotType robot.RobotType) *robot.Config {
	fmt.Println("Scanning for robot arms...")
	fmt.Println()

	arms := findArms()

	if len(arms) == 0 {
		fmt.Println("No arms found.")
		fmt.Println("Make sure your arms are connected and powered on.")
		os.Exit(1)
	}

	fmt.Printf("Found %d arm(s). Let's identify them...\n\n", len(arms))

	// Identify each arm by wiggling it
	var leaderPort, followerPort string

	for _, arm := range arms {
		role := identifyArmWithWiggle(arm, leaderPort == "", followerPort == "")
		switch role {
		case "leader":
			leaderPort = arm.port
		case "follower":
			followerPort = arm.port
		}

		if leaderPort != "" && followerPort != "" {
			break
		}
	}

	fmt.Println()

	if leaderPort == "" || followerPort == "" {
		fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
		if leaderPort == "" {
			fmt.Println("Leader arm not identified.")
		}
		if followerPort == "" {
			fmt.Println("Follower arm not identified.")
		}
		fmt.Println()
		fmt.Println("Both leader and follower are required for teleoperation.")
		os.Exit(1)
	}

	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Arms identified:"))
	fmt.Printf("  Leader:   %s\n", leaderPort)
	fmt.Printf("  Follower: %s\n", followerPort)

	return &robot.Config{
		Type:           robotType,
		CalibrationDir: "calibration",
		LeaderArms: []robot.ArmConfig{
			{Name: "main", Bus: "feetech", Port: leaderPort, Motors: defaultMotors()},
		},
		FollowerArms: []robot.ArmConfig{
			{Name: "main", Bus: "feetech", Port: followerPort, Motors: defaultMotors()},
		},
	}
}

// calibrateArm records the range of motion of each joint and writes the
// calibration file the session controller loads on connect.
func calibrateArm(config *robot.Config, armConfig robot.ArmConfig, role robot.ArmRole) {
	fmt.Printf("Calibrating %s arm %q on %s\n", role, armConfig.Name, armConfig.Port)
	fmt.Println()

	bus, servos, err := connectToArm(armConfig.Port, len(armConfig.Motors))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to arm: %v\n", err)
		os.Exit(1)
	}
	defer bus.Close()

	servoMap := make(map[int]*feetech.Servo)
	for _, s := range servos {
		servoMap[s.ID] = feetech.NewServo(bus, s.ID, s.Model)
	}

	// Disable all servos so user can move arm freely
	ctx := context.Background()
	for _, servo := range servoMap {
		servo.Disable(ctx)
	}

	motors := armConfig.Motors

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Move each joint to its minimum AND maximum positions.")
	fmt.Println("Explore the full range of motion for all joints.")
	fmt.Println()

	curPositions := make(map[string]int)
	minPositions := make(map[string]int)
	maxPositions := make(map[string]int)
	for _, m := range motors {
		servo := servoMap[m.ID]
		pos, _ := servo.Position(ctx)
		curPositions[m.Name] = pos
		minPositions[m.Name] = pos
		maxPositions[m.Name] = pos
	}

	model := newCalibrationModel(motors, servoMap, curPositions, minPositions, maxPositions)
	p := tea.NewProgram(model)
	finalModel, err := p.Run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error running calibration: %v\n", err)
		os.Exit(1)
	}

	cm := finalModel.(calibrationModel)

	calibration := make(robot.CalibrationRecord)
	for _, m := range motors {
		calibration[m.Name] = robot.MotorCalibration{
			ID:       m.ID,
			RangeMin: cm.minPositions[m.Name],
			RangeMax: cm.maxPositions[m.Name],
		}
	}

	path := filepath.Join(config.CalibrationDir, robot.ArmID(armConfig.Name, role)+".json")
	if err := calibration.Save(path); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving calibration: %v\n", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("Calibration saved to %s\n", path)
}

type armInfo struct {
	port   string
	servos []feetech.FoundServo
	bus    *feetech.Bus
}

func findArms() []armInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var arms []armInfo

	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)

		bus, err := feetech.NewBus(feetech.BusConfig{
			Port:     port,
			BaudRate: 1_000_000,
			Protocol: feetech.ProtocolSTS,
			Timeout:  100 * time.Millisecond,
		})
		if err != nil {
			cancel()
			continue
		}

		servos, err := bus.Scan(ctx, 1, 6)
		cancel()

		if err != nil {
			bus.Close()
			continue
		}

		if isArm(servos, 6) {
			fmt.Printf("  Found arm on %s\n", port)
			arms = append(arms, armInfo{
				port:   port,
				servos: servos,
				bus:    bus,
			})
		} else {
			bus.Close()
		}
	}

	return arms
}

// isArm reports whether the scan found a full arm: n servos on IDs 1..n.
func isArm(servos []feetech.FoundServo, n int) bool {
	if len(servos) != n {
		return false
	}

	ids := make(map[int]bool)
	for _, s := range servos {
		ids[s.ID] = true
	}

	for i := 1; i <= n; i++ {
		if !ids[i] {
			return false
		}
	}

	return true
}

func identifyArmWithWiggle(arm armInfo, needLeader, needFollower bool) string {
	defer arm.bus.Close()

	ctx := context.Background()

	// Wiggle servo ID 1 (shoulder_pan)
	var servo *feetech.Servo
	for _, s := range arm.servos {
		if s.ID == 1 {
			servo = feetech.NewServo(arm.bus, s.ID, s.Model)
			break
		}
	}

	if servo == nil {
		return ""
	}

	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading position: %v\n", err)
		return ""
	}

	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling servo: %v\n", err)
		return ""
	}

	fmt.Printf("\n  Wiggling arm on %s...\n", arm.port)

	// Wiggle: single gentle, slow movement
	wiggleAmount := 30
	moveTimeMs := 500
	servo.SetPositionWithTime(ctx, originalPos+wiggleAmount, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	servo.SetPositionWithTime(ctx, originalPos-wiggleAmount, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)

	servo.SetPositionWithTime(ctx, originalPos, moveTimeMs)
	time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)

	servo.Disable(ctx)

	var options []huh.Option[string]
	if needLeader {
		options = append(options, huh.NewOption("Leader (the one you move by hand)", "leader"))
	}
	if needFollower {
		options = append(options, huh.NewOption("Follower (the one that follows)", "follower"))
	}
	options = append(options, huh.NewOption("Skip this arm", "skip"))

	var role string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title(fmt.Sprintf("Which arm is on %s?", arm.port)).
				Description("The arm that just wiggled").
				Options(options...).
				Value(&role),
		),
	)

	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}

	if role == "skip" {
		return ""
	}

	return role
}

func connectToArm(port string, motorCount int) (*feetech.Bus, []feetech.FoundServo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: 1_000_000,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	servos, err := bus.Scan(ctx, 1, motorCount)
	if err != nil {
		bus.Close()
		return nil, nil, err
	}

	if !isArm(servos, motorCount) {
		bus.Close()
		return nil, nil, fmt.Errorf("not a full arm (expected %d servos with IDs 1-%d)", motorCount, motorCount)
	}

	return bus, servos, nil
}

// Calibration TUI model
type calibrationModel struct {
	motors       []robot.Motor
	servoMap     map[int]*feetech.Servo
	curPositions map[string]int
	minPositions map[string]int
	maxPositions map[string]int
	quitting     bool
}

type tickMsg time.Time

func newCalibrationModel(
	motors []robot.Motor,
	servoMap map[int]*feetech.Servo,
	curPositions, minPositions, maxPositions map[string]int,
) calibrationModel {
	return calibrationModel{
		motors:       motors,
		servoMap:     servoMap,
		curPositions: curPositions,
		minPositions: minPositions,
		maxPositions: maxPositions,
	}
}

func (m calibrationModel) Init() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		// Read positions from servos
		ctx := context.Background()
		for _, motor := range m.motors {
			servo := m.servoMap[motor.ID]
			pos, err := servo.Position(ctx)
			if err != nil {
				continue
			}
			m.curPositions[motor.Name] = pos
			if pos < m.minPositions[motor.Name] {
				m.minPositions[motor.Name] = pos
			}
			if pos > m.maxPositions[motor.Name] {
				m.maxPositions[motor.Name] = pos
			}
		}
		return m, tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
			return tickMsg(t)
		})
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableMotorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCellStyle := lipgloss.NewStyle().Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.motors))
	ranges := make([]int, 0, len(m.motors))
	for _, motor := range m.motors {
		rangeSize := m.maxPositions[motor.Name] - m.minPositions[motor.Name]
		ranges = append(ranges, rangeSize)
		rows = append(rows, []string{
			motor.Name,
			fmt.Sprintf("%d", m.curPositions[motor.Name]),
			fmt.Sprintf("%d", m.minPositions[motor.Name]),
			fmt.Sprintf("%d", m.maxPositions[motor.Name]),
			fmt.Sprintf("%d", rangeSize),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Motor", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableMotorStyle
			case 1:
				return tableCurrentStyle
			case 4:
				if row >= 0 && row < len(ranges) && ranges[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return tableCellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}
