package renderer

// DelayLine is a variable delay line read with cubic Hermite
// (Catmull-Rom) interpolation, used per spec §4.5 step 2b for the
// per-wavefront residual ITD/distance delay.
type DelayLine struct {
	buf   []float32
	write int
}

// NewDelayLine allocates a delay line supporting delays up to maxDelaySamples.
func NewDelayLine(maxDelaySamples int) *DelayLine {
	// +4 guard samples for the 4-tap interpolation kernel's reach.
	return &DelayLine{buf: make([]float32, maxDelaySamples+4)}
}

// Push writes one new sample, advancing the ring.
func (d *DelayLine) Push(sample float32) {
	d.buf[d.write] = sample
	d.write = (d.write + 1) % len(d.buf)
}

// Read returns the interpolated sample at fractional delay
// delaySamples behind the most recently pushed sample.
func (d *DelayLine) Read(delaySamples float64) float32 {
	n := len(d.buf)
	if delaySamples < 0 {
		delaySamples = 0
	}
	maxDelay := float64(n - 4)
	if delaySamples > maxDelay {
		delaySamples = maxDelay
	}

	base := int(delaySamples)
	frac := delaySamples - float64(base)

	idx := func(offset int) float32 {
		i := (d.write - 1 - base - offset + 4*n) % n
		return d.buf[i]
	}

	p0 := idx(-1)
	p1 := idx(0)
	p2 := idx(1)
	p3 := idx(2)

	return catmullRom(p0, p1, p2, p3, float32(frac))
}

// catmullRom interpolates between p1 and p2 at fraction t in [0,1],
// using p0/p3 as the surrounding tangent-defining samples.
func catmullRom(p0, p1, p2, p3, t float32) float32 {
	t2 := t * t
	t3 := t2 * t
	return 0.5 * ((2 * p1) +
		(-p0+p2)*t +
		(2*p0-5*p1+4*p2-p3)*t2 +
		(-p0+3*p1-3*p2+p3)*t3)
}
