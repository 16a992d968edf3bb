package feetech

import "errors"

// ErrUnknownRegister is returned for register names outside the STS/SCS
// control table.
var ErrUnknownRegister = errors.New("unknown feetech register")

type register struct {
	addr byte
	size byte // bytes, 1 or 2
}

// controlTable maps register names to STS3215 memory addresses. Values are
// little-endian on the wire.
var controlTable = map[string]register{
	"ID":                   {5, 1},
	"Baud_Rate":            {6, 1},
	"Min_Angle_Limit":      {9, 2},
	"Max_Angle_Limit":      {11, 2},
	"P_Coefficient":        {21, 1},
	"D_Coefficient":        {22, 1},
	"I_Coefficient":        {23, 1},
	"Offset":               {31, 2},
	"Mode":                 {33, 1},
	"Torque_Enable":        {40, 1},
	"Acceleration":         {41, 1},
	"Goal_Position":        {42, 2},
	"Goal_Time":            {44, 2},
	"Goal_Speed":           {46, 2},
	"Lock":                 {55, 1},
	"Present_Position":     {56, 2},
	"Present_Speed":        {58, 2},
	"Present_Load":         {60, 2},
	"Present_Voltage":      {62, 1},
	"Present_Temperature":  {63, 1},
	"Moving":               {66, 1},
	"Present_Current":      {69, 2},
	"Maximum_Acceleration": {85, 1},
}

// positionRegisters are expressed in calibrated units (degrees, or percent
// for the gripper) at the MotorsBus boundary.
var positionRegisters = map[string]bool{
	"Goal_Position":    true,
	"Present_Position": true,
}
