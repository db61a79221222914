// Package adc reads analog channels from the quadrant photodetector front-end.
package adc

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/cjeanneret/SunTracker/internal/debug"
)

// Channels is the number of single-ended inputs on the converter.
const Channels = 4

// Reader samples one analog channel and returns its raw conversion count.
type Reader interface {
	ReadChannel(channel int) (int, error)
	Close() error
}

// ErrChannel is returned for a channel index outside [0, Channels).
var ErrChannel = errors.New("adc channel out of range")

// MockReader returns scripted values. Used for development on PC or testing.
type MockReader struct {
	mu     sync.Mutex
	values [Channels]int
	faults map[int]int // remaining failures per channel
}

// NewMockReader creates a mock converter returning the given counts.
func NewMockReader(values [Channels]int) *MockReader {
	return &MockReader{values: values, faults: make(map[int]int)}
}

// Set replaces the counts returned for every channel.
func (m *MockReader) Set(values [Channels]int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = values
}

// FailNext makes the next n reads of channel fail with an I/O error.
func (m *MockReader) FailNext(channel, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.faults[channel] += n
}

func (m *MockReader) ReadChannel(channel int) (int, error) {
	if channel < 0 || channel >= Channels {
		return 0, errors.Wrapf(ErrChannel, "channel %d", channel)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.faults[channel] > 0 {
		m.faults[channel]--
		return 0, errors.Errorf("i/o error on channel %d", channel)
	}
	debug.ADC(channel, m.values[channel])
	return m.values[channel], nil
}

func (m *MockReader) Close() error {
	debug.Trace("ADC Close (mock)")
	return nil
}
