package periphio

import (
	"context"
	"fmt"
	"time"

	"periph.io/x/conn/v3/gpio"

	"github.com/GeVanCo/pi4j-v2/digital"
)

// edgePollTimeout bounds each WaitForEdge call so the watch goroutine
// notices a release within one interval even when the pin never fires.
const edgePollTimeout = 500 * time.Millisecond

func stateToLevel(s digital.State) gpio.Level {
	return gpio.Level(s == digital.High)
}

func levelToState(l gpio.Level) digital.State {
	if l == gpio.High {
		return digital.High
	}
	return digital.Low
}

func pullToBias(p digital.Pull) gpio.Pull {
	switch p {
	case digital.PullDown:
		return gpio.PullDown
	case digital.PullUp:
		return gpio.PullUp
	default:
		return gpio.Float
	}
}

// outputDriver drives one GPIO line as an output.
type outputDriver struct {
	pin gpio.PinIO
}

func (d *outputDriver) Init(context.Context) error { return nil }

func (d *outputDriver) Apply(s digital.State) error {
	if err := d.pin.Out(stateToLevel(s)); err != nil {
		return fmt.Errorf("writing %s to pin %s: %w", s, d.pin.Name(), err)
	}
	return nil
}

func (d *outputDriver) Release(context.Context) error {
	if err := d.pin.Halt(); err != nil {
		return fmt.Errorf("halting pin %s: %w", d.pin.Name(), err)
	}
	return nil
}

// inputDriver observes one GPIO line through edge detection.
//
// periph.io exposes edges as a blocking WaitForEdge call rather than a
// callback, so the driver runs a watch goroutine that polls with a finite
// timeout and reports the settled level after each edge. A non-zero
// debounce sleeps before the settle read, collapsing contact bounce into
// the final level.
type inputDriver struct {
	pin      gpio.PinIO
	pull     digital.Pull
	debounce time.Duration

	stop chan struct{}
	done chan struct{}
}

func (d *inputDriver) Init(_ context.Context, watch func(digital.State)) error {
	if err := d.pin.In(pullToBias(d.pull), gpio.BothEdges); err != nil {
		return fmt.Errorf("claiming pin %s as input: %w", d.pin.Name(), err)
	}

	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.watchLoop(watch, d.stop)
	return nil
}

func (d *inputDriver) Read() (digital.State, error) {
	return levelToState(d.pin.Read()), nil
}

// Release stops the watch goroutine, then halts the pin. Halting also
// interrupts a WaitForEdge in flight, so the goroutine exits promptly
// rather than after a full poll timeout.
func (d *inputDriver) Release(ctx context.Context) error {
	if d.stop == nil {
		return nil
	}
	close(d.stop)
	d.stop = nil

	haltErr := d.pin.Halt()

	select {
	case <-d.done:
	case <-ctx.Done():
		return fmt.Errorf("waiting for watch on pin %s to stop: %w", d.pin.Name(), ctx.Err())
	}

	if haltErr != nil {
		return fmt.Errorf("halting pin %s: %w", d.pin.Name(), haltErr)
	}
	return nil
}

func (d *inputDriver) watchLoop(watch func(digital.State), stop <-chan struct{}) {
	defer close(d.done)

	for {
		fired := d.pin.WaitForEdge(edgePollTimeout)

		select {
		case <-stop:
			return
		default:
		}

		if !fired {
			continue
		}

		if d.debounce > 0 {
			time.Sleep(d.debounce)
		}
		watch(levelToState(d.pin.Read()))
	}
}
