//go:build linux

package clipboard

import (
	"encoding/binary"
	"errors"
	"os"
	"sync"
	"syscall"
	"time"
)

// ioctl constants from linux/uinput.h
const (
	uiSetEvbit  = 0x40045564 // UI_SET_EVBIT
	uiSetKeybit = 0x40045565 // UI_SET_KEYBIT
	uiDevCreate = 0x5501     // UI_DEV_CREATE
)

// input event types from linux/input-event-codes.h
const (
	evSyn = 0x00
	evKey = 0x01
)

const (
	busUSB = 0x03

	keyLeftCtrl  = 29
	keyLeftShift = 42
	keyV         = 47
)

type inputEvent struct {
	Time  syscall.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FfEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

// kbd is the virtual keyboard backing Paste and Type. Created once on
// first use and kept for the life of the daemon.
var (
	kbd     *os.File
	kbdOnce sync.Once
	kbdErr  error
)

func initKeyboard() error {
	kbdOnce.Do(func() {
		path := "/dev/uinput"
		if _, err := os.Stat(path); err != nil {
			path = "/dev/input/uinput"
			if _, err := os.Stat(path); err != nil {
				kbdErr = errors.New("uinput device not found, try: sudo modprobe uinput")
				return
			}
		}
		f, err := os.OpenFile(path, os.O_WRONLY|syscall.O_NONBLOCK, os.ModeDevice)
		if err != nil {
			kbdErr = err
			return
		}
		for _, bit := range []uintptr{evKey, evSyn} {
			if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetEvbit, bit); errno != 0 {
				kbdErr = errno
				f.Close()
				return
			}
		}
		// Register all standard keys so udev classifies this as a keyboard
		for i := uintptr(0); i < 256; i++ {
			if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiSetKeybit, i); errno != 0 {
				kbdErr = errno
				f.Close()
				return
			}
		}
		dev := uinputUserDev{}
		copy(dev.Name[:], "murmur-kbd")
		dev.ID.Bustype = busUSB
		dev.ID.Vendor = 0x6d75 // "mu"
		dev.ID.Product = 0x726d
		dev.ID.Version = 1
		if err := binary.Write(f, binary.LittleEndian, &dev); err != nil {
			kbdErr = err
			f.Close()
			return
		}
		if _, _, errno := syscall.Syscall(syscall.SYS_IOCTL, f.Fd(), uiDevCreate, 0); errno != 0 {
			kbdErr = errno
			f.Close()
			return
		}
		kbd = f
		// Give compositor time to recognize the new input device
		time.Sleep(200 * time.Millisecond)
	})
	return kbdErr
}

func writeEvent(typ, code uint16, value int32) error {
	ev := inputEvent{Type: typ, Code: code, Value: value}
	return binary.Write(kbd, binary.LittleEndian, &ev)
}

func syn() error {
	return writeEvent(evSyn, 0, 0)
}

func press(code uint16) error {
	if err := writeEvent(evKey, code, 1); err != nil {
		return err
	}
	return syn()
}

func release(code uint16) error {
	if err := writeEvent(evKey, code, 0); err != nil {
		return err
	}
	return syn()
}

// Paste sends Ctrl+V through the virtual keyboard.
func Paste() error {
	if err := initKeyboard(); err != nil {
		return err
	}
	if err := press(keyLeftCtrl); err != nil {
		return err
	}
	// Let compositor register modifier state
	time.Sleep(5 * time.Millisecond)
	if err := press(keyV); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)
	if err := release(keyV); err != nil {
		return err
	}
	time.Sleep(5 * time.Millisecond)
	return release(keyLeftCtrl)
}

func keyTap(code uint16, shift bool) error {
	if shift {
		if err := press(keyLeftShift); err != nil {
			return err
		}
	}
	if err := press(code); err != nil {
		return err
	}
	if err := release(code); err != nil {
		return err
	}
	if shift {
		return release(keyLeftShift)
	}
	return nil
}
