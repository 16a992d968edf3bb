// Package manipulator provides session control for teleoperated robot
// manipulators with arms, cameras, and tactile sensors.
//
// A session unifies an arbitrary number of leader and follower arms,
// cameras, and tactile sensors behind one connect/step/disconnect
// lifecycle. Leader motion is mirrored onto followers with an optional
// per-motor safety clamp, and every step can capture a synchronized
// observation frame across all devices.
//
// # Installation
//
//	go install github.com/tactilekit/manipulator/cmd/manipulator@latest
//
// # Usage
//
// First, run setup to detect and calibrate your robot arms:
//
//	manipulator setup
//
// Then start teleoperation:
//
//	manipulator teleoperate
//
// A read-only monitoring API for dashboards is available with:
//
//	manipulator serve
//
// # Packages
//
// The module is organized into the following packages:
//
//   - cmd/manipulator: CLI with setup, teleoperate, and serve commands
//   - pkg/robot: Session lifecycle, calibration, presets, capture, safety
//   - pkg/teleop: Fixed-rate teleoperation controller
//   - pkg/monitor: HTTP monitoring API
//   - pkg/drivers/feetech: Register-level Feetech STS servo bus driver
package manipulator
