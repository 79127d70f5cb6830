package serialmux

import (
	"bytes"
	"errors"
	"sync"
)

// ErrPortClosed is returned by FakePort once closed.
var ErrPortClosed = errors.New("serial port closed")

// FakePort is an in-memory SerialPorter for tests. Reads block until data
// is fed or the port is closed; writes are captured.
type FakePort struct {
	mu      sync.Mutex
	cond    *sync.Cond
	rx      bytes.Buffer
	tx      bytes.Buffer
	closed  bool
	WriteFn func(p []byte) (int, error) // optional override for Write
}

// NewFakePort creates an open, empty port.
func NewFakePort() *FakePort {
	p := &FakePort{}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// Feed makes data available to Read.
func (p *FakePort) Feed(data string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rx.WriteString(data)
	p.cond.Broadcast()
}

func (p *FakePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for !p.closed && p.rx.Len() == 0 {
		p.cond.Wait()
	}
	if p.closed {
		return 0, ErrPortClosed
	}
	return p.rx.Read(b)
}

func (p *FakePort) Write(b []byte) (int, error) {
	if p.WriteFn != nil {
		return p.WriteFn(b)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, ErrPortClosed
	}
	return p.tx.Write(b)
}

func (p *FakePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.cond.Broadcast()
	return nil
}

// Written returns everything written so far.
func (p *FakePort) Written() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tx.String()
}
