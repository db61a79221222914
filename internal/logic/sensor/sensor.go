// Package sensor turns the four quadrant photodetector channels into
// pointing error terms.
package sensor

import (
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"golang.org/x/time/rate"

	"github.com/cjeanneret/SunTracker/internal/debug"
	"github.com/cjeanneret/SunTracker/internal/hw/adc"
)

// Frame is one sample of the photodetector.
type Frame struct {
	Raw        [adc.Channels]int
	Corrected  [adc.Channels]int
	Vertical   int // (c0+c2) - (c1+c3)
	Horizontal int // (c1+c2) - (c0+c3)
	Total      int // c0+c1+c2+c3
}

// biasTable holds the additive offset of each channel per amplifier gain,
// measured on the ADS1115 front-end with the detector covered.
var biasTable = map[adc.Gain][adc.Channels]int{
	adc.GainTwoThirds: {4, 23, -4, 29},
	adc.Gain1:         {6, 34, -7, 43},
	adc.Gain2:         {11, 67, -14, 86},
	adc.Gain4:         {22, 133, -28, 171},
	adc.Gain8:         {44, 265, -57, 341},
	adc.Gain16:        {87, 531, -114, 684},
}

// Bias returns the correction table for a gain.
func Bias(g adc.Gain) ([adc.Channels]int, bool) {
	b, ok := biasTable[g]
	return b, ok
}

// Reader samples the detector. A failing channel keeps its previous value.
type Reader struct {
	analog adc.Reader
	gain   adc.Gain
	bias   [adc.Channels]int
	last   [adc.Channels]int
	faults int
	warn   rate.Sometimes
}

// NewReader validates the gain and binds the converter.
func NewReader(analog adc.Reader, gain adc.Gain) (*Reader, error) {
	bias, ok := Bias(gain)
	if !ok {
		return nil, errors.Wrapf(adc.ErrUnsupportedGain, "gain %v", gain)
	}
	return &Reader{
		analog: analog,
		gain:   gain,
		bias:   bias,
		warn:   rate.Sometimes{First: 3, Interval: 30 * time.Second},
	}, nil
}

// Gain returns the amplifier setting the bias table was chosen for.
func (r *Reader) Gain() adc.Gain {
	return r.gain
}

// Faults returns how many channel reads failed since creation.
func (r *Reader) Faults() int {
	return r.faults
}

// ReadFrame samples all channels. It never fails: a channel read error is
// logged and replaced by the last good value of that channel.
func (r *Reader) ReadFrame() Frame {
	var f Frame
	for ch := 0; ch < adc.Channels; ch++ {
		v, err := r.analog.ReadChannel(ch)
		if err != nil {
			r.faults++
			held := r.last[ch]
			r.warn.Do(func() {
				debug.Warn("ADC channel %d read failed, holding %d (%d faults so far): %v", ch, held, r.faults, err)
			})
			v = held
		}
		r.last[ch] = v
		f.Raw[ch] = v
		f.Corrected[ch] = v + r.bias[ch]
	}

	c := f.Corrected
	f.Vertical = (c[0] + c[2]) - (c[1] + c[3])
	f.Horizontal = (c[1] + c[2]) - (c[0] + c[3])
	f.Total = lo.Sum(c[:])
	return f
}
