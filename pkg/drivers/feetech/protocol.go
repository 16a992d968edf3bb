package feetech

import (
	"fmt"
	"io"
	"time"
)

// Instruction bytes of the SCS/STS servo protocol.
const (
	instPing      = 0x01
	instRead      = 0x02
	instWrite     = 0x03
	instSyncWrite = 0x83

	broadcastID = 0xFE
)

// wirePort is the serial port surface the bus needs. go.bug.st/serial's
// Port satisfies it; tests substitute a scripted port.
type wirePort interface {
	io.ReadWriteCloser
	SetReadTimeout(t time.Duration) error
}

// checksum is the protocol checksum: inverted low byte of the sum over id,
// length, instruction/error and parameters.
func checksum(body []byte) byte {
	var sum int
	for _, b := range body {
		sum += int(b)
	}
	return byte(^sum) & 0xFF
}

// buildPacket frames one instruction packet: 0xFF 0xFF id len instr params
// checksum.
func buildPacket(id, instr byte, params []byte) []byte {
	body := make([]byte, 0, len(params)+3)
	body = append(body, id, byte(len(params)+2), instr)
	body = append(body, params...)

	pkt := make([]byte, 0, len(body)+3)
	pkt = append(pkt, 0xFF, 0xFF)
	pkt = append(pkt, body...)
	pkt = append(pkt, checksum(body))
	return pkt
}

func (b *Bus) send(id, instr byte, params []byte) error {
	pkt := buildPacket(id, instr, params)
	if _, err := b.port.Write(pkt); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}

func (b *Bus) readN(n int) ([]byte, error) {
	buf := make([]byte, n)
	read := 0
	for read < n {
		k, err := b.port.Read(buf[read:])
		if err != nil {
			return nil, err
		}
		if k == 0 {
			return nil, fmt.Errorf("read timeout after %d of %d bytes", read, n)
		}
		read += k
	}
	return buf, nil
}

// recvStatus reads one status packet and returns its parameter bytes.
func (b *Bus) recvStatus(wantParams int) ([]byte, error) {
	// Resync on the 0xFF 0xFF header: stray bytes can precede it on a
	// half-duplex bus.
	var prev byte
	for i := 0; ; i++ {
		if i > 64 {
			return nil, fmt.Errorf("status header not found")
		}
		cur, err := b.readN(1)
		if err != nil {
			return nil, err
		}
		if prev == 0xFF && cur[0] == 0xFF {
			break
		}
		prev = cur[0]
	}

	head, err := b.readN(3) // id, length, error
	if err != nil {
		return nil, err
	}
	id, length, errByte := head[0], head[1], head[2]
	if int(length) != wantParams+2 {
		return nil, fmt.Errorf("status length %d, want %d", length, wantParams+2)
	}

	rest, err := b.readN(wantParams + 1) // params + checksum
	if err != nil {
		return nil, err
	}
	params, sum := rest[:wantParams], rest[wantParams]

	body := append([]byte{id, length, errByte}, params...)
	if want := checksum(body); sum != want {
		return nil, fmt.Errorf("status checksum 0x%02x, want 0x%02x", sum, want)
	}
	if errByte != 0 {
		return nil, fmt.Errorf("servo %d status error 0x%02x", id, errByte)
	}
	return params, nil
}

// readRegister reads one register from one servo.
func (b *Bus) readRegister(id byte, reg register) (int, error) {
	if err := b.send(id, instRead, []byte{reg.addr, reg.size}); err != nil {
		return 0, err
	}
	params, err := b.recvStatus(int(reg.size))
	if err != nil {
		return 0, err
	}
	value := int(params[0])
	if reg.size == 2 {
		value |= int(params[1]) << 8
	}
	return value, nil
}

// writeRegister writes one register on one servo. No read-back.
func (b *Bus) writeRegister(id byte, reg register, value int) error {
	params := []byte{reg.addr, byte(value)}
	if reg.size == 2 {
		params = append(params, byte(value>>8))
	}
	if err := b.send(id, instWrite, params); err != nil {
		return err
	}
	_, err := b.recvStatus(0)
	return err
}

// syncWrite writes the same register on many servos in one packet. Servos
// do not acknowledge sync writes.
func (b *Bus) syncWrite(reg register, ids []byte, values []int) error {
	params := []byte{reg.addr, reg.size}
	for i, id := range ids {
		params = append(params, id, byte(values[i]))
		if reg.size == 2 {
			params = append(params, byte(values[i]>>8))
		}
	}
	return b.send(broadcastID, instSyncWrite, params)
}
