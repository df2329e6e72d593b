//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"elslathe/core"
)

// SPIDriverComm implements core.RegisterComm over a shared SPI bus with one
// chip-select pin per driver address, the same 40-bit address+data framing
// the TMC5160/TMC5240 family shares.
type SPIDriverComm struct {
	spi    machine.SPI
	csPins map[uint8]machine.Pin
}

// NewSPIDriverComm binds a configured SPI peripheral to a set of per-address
// chip-select pins. The caller configures the SPI peripheral itself; Setup
// only arms the CS pins.
func NewSPIDriverComm(spi machine.SPI, csPins map[uint8]machine.Pin) *SPIDriverComm {
	return &SPIDriverComm{spi: spi, csPins: csPins}
}

// Setup configures every registered chip-select pin as an idle-high output.
func (c *SPIDriverComm) Setup() error {
	for _, cs := range c.csPins {
		cs.Configure(machine.PinConfig{Mode: machine.PinOutput})
		cs.High()
	}
	return nil
}

var _ core.RegisterComm = (*SPIDriverComm)(nil)

func (c *SPIDriverComm) WriteRegister(reg uint8, value uint32, address uint8) error {
	cs, ok := c.csPins[address]
	if !ok {
		return core.Fault{Kind: core.FaultStepperInit, Message: "unknown driver address"}
	}
	cs.Low()
	_, err := spiTransfer40(&c.spi, reg|0x80, value)
	cs.High()
	return err
}

func (c *SPIDriverComm) ReadRegister(reg uint8, address uint8) (uint32, error) {
	cs, ok := c.csPins[address]
	if !ok {
		return 0, core.Fault{Kind: core.FaultStepperInit, Message: "unknown driver address"}
	}

	cs.Low()
	if _, err := spiTransfer40(&c.spi, reg, 0); err != nil {
		cs.High()
		return 0, err
	}
	cs.High()

	time.Sleep(176 * time.Nanosecond)

	cs.Low()
	value, err := spiTransfer40(&c.spi, reg, 0)
	cs.High()
	return value, err
}

// spiTransfer40 sends the 1-byte address plus 4-byte big-endian data frame
// the TMC52xx register bus uses and returns the data bytes of the reply.
func spiTransfer40(spi *machine.SPI, addr uint8, txData uint32) (uint32, error) {
	tx := []byte{addr, byte(txData >> 24), byte(txData >> 16), byte(txData >> 8), byte(txData)}
	rx := make([]byte, 5)
	if err := spi.Tx(tx, rx); err != nil {
		return 0, err
	}
	return uint32(rx[1])<<24 | uint32(rx[2])<<16 | uint32(rx[3])<<8 | uint32(rx[4]), nil
}
