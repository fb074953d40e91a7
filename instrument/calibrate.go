package instrument

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"
	"github.com/Southclaws/fault/ftag"

	"go-harp/debug"
	"go-harp/errs"
	"go-harp/sensor"
)

// ErrUnstableCalibration means some sensor moved too much while calibrating,
// most likely because it was touched.
var ErrUnstableCalibration = errors.New("instrument: unstable calibration")

// Calibrator derives trigger levels from an untouched warm-up window.
type Calibrator struct {
	Samples  int
	Interval time.Duration
	// Margin is subtracted from each sensor's lowest reading
	Margin int
	// MaxRange rejects sensors whose max-min exceeds it; 0 disables the check
	MaxRange int
}

// DefaultCalibrator samples for half a second at the default tick rate
func DefaultCalibrator() Calibrator {
	return Calibrator{
		Samples:  50,
		Interval: DefaultTick,
		Margin:   5,
	}
}

// UnstableError lists the sensors that failed the range check. The levels
// returned alongside it are still usable.
type UnstableError struct {
	Sensors []int
	Ranges  []int
}

func (e *UnstableError) Error() string {
	return fmt.Sprintf("calibration unstable on sensors %v (ranges %v)", e.Sensors, e.Ranges)
}

func (e *UnstableError) Unwrap() error {
	return ErrUnstableCalibration
}

// Calibrate takes Samples readings Interval apart and returns
// min(samples)-Margin per sensor. The instrument must not be touched
// meanwhile.
func (c Calibrator) Calibrate(ctx context.Context, r sensor.Reader) ([]int, error) {
	if c.Samples <= 0 {
		return nil, fault.New("calibration needs at least one sample", ftag.With(errs.Config))
	}

	n := r.Len()
	lo := make([]int, n)
	hi := make([]int, n)

	var tick <-chan time.Time
	if c.Interval > 0 {
		ticker := time.NewTicker(c.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for s := 0; s < c.Samples; s++ {
		if tick != nil {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-tick:
			}
		} else if err := ctx.Err(); err != nil {
			return nil, err
		}

		vals, err := r.ReadFiltered()
		if err != nil {
			return nil, fault.Wrap(err, fmsg.With(fmt.Sprintf("calibration sample %d", s)))
		}
		for i := 0; i < n && i < len(vals); i++ {
			if s == 0 || vals[i] < lo[i] {
				lo[i] = vals[i]
			}
			if s == 0 || vals[i] > hi[i] {
				hi[i] = vals[i]
			}
		}
	}

	levels := make([]int, n)
	for i := range levels {
		levels[i] = lo[i] - c.Margin
	}
	debug.Log("calibrate", "levels=%v", levels)

	if c.MaxRange > 0 {
		unstable := &UnstableError{}
		for i := range levels {
			if rng := hi[i] - lo[i]; rng > c.MaxRange {
				unstable.Sensors = append(unstable.Sensors, i)
				unstable.Ranges = append(unstable.Ranges, rng)
			}
		}
		if len(unstable.Sensors) > 0 {
			debug.Log("calibrate", "%v", unstable)
			return levels, fault.Wrap(unstable,
				fmsg.WithDesc("range check", fmt.Sprintf("Sensors %v moved during calibration, press r to recalibrate", unstable.Sensors)),
				ftag.With(errs.Calibration),
			)
		}
	}

	return levels, nil
}
