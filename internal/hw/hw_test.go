package hw

import (
	"errors"
	"strings"
	"testing"

	"github.com/cjeanneret/SunTracker/internal/hw/adc"
	"github.com/cjeanneret/SunTracker/internal/hw/gpio"
)

func TestNew_MockPlatform(t *testing.T) {
	p, err := New(Options{Mock: true, MockChannels: [adc.Channels]int{1, 2, 3, 4}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	var _ Driver = p

	v, err := p.ReadChannel(3)
	if err != nil || v != 4 {
		t.Errorf("ReadChannel(3) = %d, %v; want 4, nil", v, err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

type closeFailReader struct{ adc.MockReader }

func (c *closeFailReader) Close() error { return errors.New("adc close failed") }

func TestPlatform_CloseAttemptsBoth(t *testing.T) {
	g := &gpio.MockDriver{}
	_ = g.WritePin(31, gpio.High)
	p := NewPlatform(g, &closeFailReader{})

	err := p.Close()
	if err == nil || !strings.Contains(err.Error(), "adc close failed") {
		t.Errorf("Close error = %v, want adc failure", err)
	}
	if !g.Closed() {
		t.Error("GPIO driver should be closed even when the ADC fails")
	}
	if pins := g.HighPins(); len(pins) != 0 {
		t.Errorf("GPIO lines still asserted: %v", pins)
	}
}
