// ABOUTME: Real-time pacer for page production
// ABOUTME: Sleeps until each page is due and snaps forward after stalls
package broadcast

import (
	"runtime"
	"time"

	"github.com/quartz-radio/quartz/pkg/audio"
)

// spinThreshold is the tail of each wait spent spinning instead of sleeping.
const spinThreshold = time.Millisecond

// Pump paces a PageEncoder so pages leave no faster than real time.
type Pump struct {
	encoder  *PageEncoder
	nextDue  time.Time
	window   time.Duration
	observer Observer

	now   func() time.Time
	sleep func(time.Time)
}

// NewPump creates a pump whose schedule starts now. window bounds how far
// the schedule may fall behind the wall clock.
func NewPump(encoder *PageEncoder, window time.Duration, observer Observer) *Pump {
	if observer == nil {
		observer = nopObserver{}
	}
	p := &Pump{
		encoder:  encoder,
		window:   window,
		observer: observer,
		now:      time.Now,
		sleep:    sleepUntil,
	}
	p.nextDue = p.now()
	return p
}

// Step waits until the next page is due, then encodes it. Errors are those
// of PageEncoder.Next.
func (p *Pump) Step(src audio.Source) (Page, error) {
	now := p.now()
	if behind := now.Sub(p.nextDue); behind > p.window {
		// stalled longer than the backlog, drop the missed time
		p.nextDue = now.Add(-p.window)
		p.observer.PacingStall(behind)
	}
	if p.nextDue.After(now) {
		p.sleep(p.nextDue)
	}

	page, err := p.encoder.Next(src)
	p.nextDue = p.nextDue.Add(page.Duration)
	return page, err
}

// NextDue returns the time the next page becomes due.
func (p *Pump) NextDue() time.Time {
	return p.nextDue
}

// sleepUntil sleeps coarsely, then spins through the last millisecond for
// sub-millisecond accuracy.
func sleepUntil(deadline time.Time) {
	if d := time.Until(deadline) - spinThreshold; d > 0 {
		time.Sleep(d)
	}
	for time.Now().Before(deadline) {
		runtime.Gosched()
	}
}
