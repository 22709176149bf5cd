// Package keyboard reads raw terminal input and translates it into the
// character codes KEYIN expects (§6.2), the interactive counterpart to the
// headless stdin key source in package vm. Grounded on
// IntuitionAmiga-IntuitionEngine's terminal_host.go: raw mode via
// golang.org/x/term, a goroutine polling a non-blocking fd, byte-at-a-time
// delivery through a channel.
package keyboard

import (
	"os"
	"sync"
	"syscall"
	"time"

	"golang.org/x/term"
)

// Source puts stdin in raw mode and feeds translated character codes to a
// channel a vm.Host can read from via vm.StdinKeySource.
type Source struct {
	fd       int
	oldState *term.State
	codes    chan uint16
	stopCh   chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// Open puts the terminal connected to stdin into raw mode and starts
// reading. Codes is buffered so a burst of keystrokes isn't dropped while
// the VM is mid-tick.
func Open() (*Source, error) {
	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	if err := syscall.SetNonblock(fd, true); err != nil {
		_ = term.Restore(fd, oldState)
		return nil, err
	}

	s := &Source{
		fd:       fd,
		oldState: oldState,
		codes:    make(chan uint16, 16),
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Codes is the channel to hand to vm.StdinKeySource.
func (s *Source) Codes() <-chan uint16 { return s.codes }

func (s *Source) run() {
	defer close(s.done)
	defer close(s.codes)

	buf := make([]byte, 1)
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}

		n, err := syscall.Read(s.fd, buf)
		if n > 0 {
			if code, ok := CharCode(buf[0]); ok {
				select {
				case s.codes <- code:
				case <-s.stopCh:
					return
				}
			}
			continue
		}
		if err == syscall.EAGAIN || err == syscall.EWOULDBLOCK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		if err != nil {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// Close restores the terminal and stops the reader goroutine.
func (s *Source) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.done
	_ = term.Restore(s.fd, s.oldState)
}

// CharCode maps a raw input byte to the §6.2 character table (A-Z=0-25,
// 0-9=26-35, !?+-*.,=36-42); bytes outside that table are not
// representable on the text/keyboard subsystem and are dropped.
func CharCode(b byte) (uint16, bool) {
	switch {
	case b >= 'a' && b <= 'z':
		return uint16(b - 'a'), true
	case b >= 'A' && b <= 'Z':
		return uint16(b - 'A'), true
	case b >= '0' && b <= '9':
		return uint16(26 + (b - '0')), true
	}
	switch b {
	case '!':
		return 36, true
	case '?':
		return 37, true
	case '+':
		return 38, true
	case '-':
		return 39, true
	case '*':
		return 40, true
	case '.':
		return 41, true
	case ',':
		return 42, true
	}
	return 0, false
}
