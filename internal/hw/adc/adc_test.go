package adc

import (
	"errors"
	"testing"

	"periph.io/x/conn/v3/physic"
)

func TestMockReader_ReturnsValues(t *testing.T) {
	m := NewMockReader([Channels]int{1, 2, 3, 4})
	for ch := 0; ch < Channels; ch++ {
		v, err := m.ReadChannel(ch)
		if err != nil {
			t.Fatalf("ReadChannel(%d): %v", ch, err)
		}
		if v != ch+1 {
			t.Errorf("ReadChannel(%d) = %d, want %d", ch, v, ch+1)
		}
	}
}

func TestMockReader_FailNext(t *testing.T) {
	m := NewMockReader([Channels]int{10, 20, 30, 40})
	m.FailNext(2, 2)

	for i := 0; i < 2; i++ {
		if _, err := m.ReadChannel(2); err == nil {
			t.Errorf("read %d: expected scripted failure", i)
		}
	}
	v, err := m.ReadChannel(2)
	if err != nil || v != 30 {
		t.Errorf("after faults: got %d, %v; want 30, nil", v, err)
	}
}

func TestMockReader_ChannelRange(t *testing.T) {
	m := NewMockReader([Channels]int{})
	for _, ch := range []int{-1, Channels} {
		if _, err := m.ReadChannel(ch); !errors.Is(err, ErrChannel) {
			t.Errorf("ReadChannel(%d) error = %v, want ErrChannel", ch, err)
		}
	}
}

func TestParseGain(t *testing.T) {
	cases := []struct {
		in   string
		want Gain
	}{
		{"2/3", GainTwoThirds},
		{"1", Gain1},
		{" 2 ", Gain2},
		{"4", Gain4},
		{"8", Gain8},
		{"16", Gain16},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			g, err := ParseGain(tc.in)
			if err != nil {
				t.Fatalf("ParseGain(%q): %v", tc.in, err)
			}
			if g != tc.want {
				t.Errorf("ParseGain(%q) = %v, want %v", tc.in, g, tc.want)
			}
			if g.String() != tc.want.String() {
				t.Errorf("String() = %q", g.String())
			}
		})
	}
}

func TestParseGain_Unsupported(t *testing.T) {
	for _, in := range []string{"3", "0.5", "", "32"} {
		if _, err := ParseGain(in); !errors.Is(err, ErrUnsupportedGain) {
			t.Errorf("ParseGain(%q) error = %v, want ErrUnsupportedGain", in, err)
		}
	}
}

func TestGain_FullScale(t *testing.T) {
	if got := Gain1.FullScale(); got != 4096*physic.MilliVolt {
		t.Errorf("Gain1.FullScale() = %v", got)
	}
	if got := Gain16.FullScale(); got != 256*physic.MilliVolt {
		t.Errorf("Gain16.FullScale() = %v", got)
	}
	if Gain(42).Valid() {
		t.Error("Gain(42) should be invalid")
	}
}
