package lis3mdl

import (
	"errors"
	"math"
	"testing"
	"time"
)

type fakeI2C struct {
	regs   map[byte][]byte
	writes []writeOp
	reads  []byte
}

type writeOp struct {
	reg byte
	val byte
}

func (f *fakeI2C) ReadRegU8(reg byte) (byte, error) {
	b := f.regs[reg]
	if len(b) < 1 {
		return 0, errors.New("no reg")
	}
	return b[0], nil
}

func (f *fakeI2C) ReadReg(reg byte, dst []byte) error {
	f.reads = append(f.reads, reg)
	b := f.regs[reg]
	if len(b) < len(dst) {
		return errors.New("short reg")
	}
	copy(dst, b[:len(dst)])
	return nil
}

func (f *fakeI2C) WriteReg(reg, value byte) error {
	f.writes = append(f.writes, writeOp{reg: reg, val: value})
	return nil
}

func TestNew_WhoAmIMismatch(t *testing.T) {
	oldSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = oldSleep })

	f := &fakeI2C{regs: map[byte][]byte{regWhoAmI: {0x6C}}}
	if _, err := newWithIO(f); err == nil {
		t.Fatalf("expected error")
	}
}

func TestNew_EndsInContinuousMode(t *testing.T) {
	oldSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = oldSleep })

	f := &fakeI2C{regs: map[byte][]byte{regWhoAmI: {whoAmIVal}}}
	if _, err := newWithIO(f); err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	if len(f.writes) == 0 || f.writes[0] != (writeOp{regCtrl2, ctrl2SoftReset}) {
		t.Fatalf("first write=%v want soft reset", f.writes)
	}
	last := f.writes[len(f.writes)-1]
	if last != (writeOp{regCtrl3, ctrl3Continous}) {
		t.Fatalf("last write=%+v want continuous mode", last)
	}
}

func TestRead_ScalesToGauss(t *testing.T) {
	oldSleep := sleep
	sleep = func(time.Duration) {}
	t.Cleanup(func() { sleep = oldSleep })

	f := &fakeI2C{regs: map[byte][]byte{regWhoAmI: {whoAmIVal}}}
	// 6842 LSB = 1 gauss at +/-4 gauss.
	f.regs[regOutXL|autoIncrement] = []byte{
		0xBA, 0x1A, // x = 6842
		0x00, 0x00, // y
		0x46, 0xE5, // z = -6842
	}
	d, err := newWithIO(f)
	if err != nil {
		t.Fatalf("newWithIO: %v", err)
	}
	s, err := d.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if math.Abs(s.Mx-1) > 1e-9 || s.My != 0 || math.Abs(s.Mz+1) > 1e-9 {
		t.Fatalf("field=(%v,%v,%v) want (1,0,-1)", s.Mx, s.My, s.Mz)
	}
	if got := f.reads[len(f.reads)-1]; got != regOutXL|autoIncrement {
		t.Fatalf("read reg=0x%02X want auto-increment 0x%02X", got, regOutXL|autoIncrement)
	}
}
