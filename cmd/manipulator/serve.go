package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/tactilekit/manipulator/pkg/drivers/feetech"
	"github.com/tactilekit/manipulator/pkg/monitor"
	"github.com/tactilekit/manipulator/pkg/robot"
)

type ServeCommand struct {
	Addr string `long:"addr" default:":8080" description:"Listen address for the monitor API"`
}

func (c *ServeCommand) Execute(args []string) error {
	cfg, err := robot.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "No configuration found. Run 'manipulator setup' first.")
		os.Exit(1)
	}

	m, err := robot.New(*cfg, robot.WithDeviceFactory(feetech.Factory()))
	if err != nil {
		log.Fatalf("Failed to create manipulator: %v", err)
	}

	ctx := context.Background()
	if err := m.Connect(ctx); err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer m.Disconnect()

	log.Printf("Session %s connected (%s), monitor on %s", m.SessionID(), m.RobotType(), c.Addr)

	// SIGINT/SIGTERM disconnect the manipulator before the process exits;
	// the listener dies with the process.
	if err := monitor.NewServer(m).Run(c.Addr); err != nil {
		log.Fatalf("Monitor server failed: %v", err)
	}

	return nil
}
