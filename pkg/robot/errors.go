package robot

import "errors"

// Lifecycle and configuration errors. Callers are expected to test these
// with errors.Is; everything else is wrapped context.
var (
	// ErrAlreadyConnected is returned when Connect is called on a
	// manipulator that is already connected.
	ErrAlreadyConnected = errors.New("manipulator is already connected")

	// ErrNotConnected is returned by any operation that requires a
	// connected manipulator, including a second Disconnect.
	ErrNotConnected = errors.New("manipulator is not connected")

	// ErrNoDevices is returned by Connect when the configuration holds no
	// arms, cameras or tactile sensors at all.
	ErrNoDevices = errors.New("no devices configured")

	// ErrCalibrationMissing is returned when an arm has no calibration file
	// and no calibrator has been installed to produce one.
	ErrCalibrationMissing = errors.New("calibration missing")

	// ErrUnknownRobotType is returned for a robot type outside the
	// supported families.
	ErrUnknownRobotType = errors.New("unknown robot type")

	// ErrNoDriver is returned when a device config names a bus or device
	// kind the installed device factory has no constructor for.
	ErrNoDriver = errors.New("no driver registered")
)
