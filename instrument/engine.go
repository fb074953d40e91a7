package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/Southclaws/fault"
	"github.com/Southclaws/fault/fmsg"

	"go-harp/debug"
	"go-harp/midi"
	"go-harp/sensor"
)

// DefaultTick is the sense/decide/dispatch period
const DefaultTick = 10 * time.Millisecond

// Frame is what one tick saw and did. Display code reads it; nothing flows
// back into the engine.
type Frame struct {
	At          time.Time
	Readings    []int
	Levels      []int
	Touched     TouchSet
	ChipTouched []bool // the chips' own detector, when enabled
	Context     *Context
	Policy      Policy
	Events      []midi.Event
	Sounding    []int
	Calibrating bool
	Warning     error // non-fatal, e.g. unstable calibration
}

// Options configures an Engine
type Options struct {
	Tick       time.Duration
	Calibrator Calibrator
	// ChipTouch also reads the chips' own touch flags each tick
	ChipTouch bool
	Now       func() time.Time
}

// Engine runs the tick loop. All of its state except the mapper is owned by
// the goroutine calling Run.
type Engine struct {
	reader sensor.Reader
	mapper *Mapper
	sched  *Scheduler
	det    *Detector
	opts   Options

	levels  []int
	warning error

	recal  chan struct{}
	frames chan Frame
}

// NewEngine wires the core together
func NewEngine(reader sensor.Reader, mapper *Mapper, sched *Scheduler, opts Options) *Engine {
	if opts.Tick <= 0 {
		opts.Tick = DefaultTick
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Engine{
		reader: reader,
		mapper: mapper,
		sched:  sched,
		det:    NewDetector(reader.Len()),
		opts:   opts,
		recal:  make(chan struct{}, 1),
		frames: make(chan Frame, 1),
	}
}

// Frames delivers the latest frame; older unread frames are dropped
func (e *Engine) Frames() <-chan Frame {
	return e.frames
}

// Levels returns the trigger levels in use
func (e *Engine) Levels() []int {
	return e.levels
}

// SetLevels installs trigger levels directly, skipping calibration
func (e *Engine) SetLevels(levels []int) {
	e.levels = levels
	e.det.Reset()
}

// Recalibrate asks the tick loop to calibrate again before its next tick
func (e *Engine) Recalibrate() {
	select {
	case e.recal <- struct{}{}:
	default:
	}
}

// Run calibrates, then ticks until ctx is done or a transport fails. Every
// sounding note is released on the way out.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.calibrate(ctx); err != nil {
		return e.shutdown(err)
	}

	ticker := time.NewTicker(e.opts.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return e.shutdown(nil)
		case <-e.recal:
			if err := e.sched.ReleaseAll(e.opts.Now()); err != nil {
				return e.shutdown(err)
			}
			if err := e.calibrate(ctx); err != nil {
				return e.shutdown(err)
			}
		case <-ticker.C:
			if err := e.Step(e.opts.Now()); err != nil {
				return e.shutdown(err)
			}
		}
	}
}

// Step runs one tick: expire stale notes, read, detect, dispatch, publish.
func (e *Engine) Step(now time.Time) error {
	if err := e.sched.Expire(now); err != nil {
		return fault.Wrap(err, fmsg.With("expire stale notes"))
	}

	readings, err := e.reader.ReadFiltered()
	if err != nil {
		return fault.Wrap(err, fmsg.With("read sensors"))
	}

	var chip []bool
	if e.opts.ChipTouch {
		if chip, err = e.reader.ReadTouched(); err != nil {
			return fault.Wrap(err, fmsg.With("read chip touch flags"))
		}
	}

	edges := e.det.Step(readings, e.levels)
	musical := e.mapper.Context()
	if err := e.sched.Dispatch(musical, edges, now); err != nil {
		return fault.Wrap(err, fmsg.With("dispatch notes"))
	}

	e.publish(Frame{
		At:          now,
		Readings:    readings,
		Levels:      e.levels,
		Touched:     append(TouchSet(nil), e.det.Current()...),
		ChipTouched: chip,
		Context:     musical,
		Policy:      e.sched.Policy(),
		Events:      e.sched.Drain(),
		Sounding:    e.sched.Sounding(),
		Warning:     e.warning,
	})
	return nil
}

func (e *Engine) calibrate(ctx context.Context) error {
	e.publish(Frame{
		At:          e.opts.Now(),
		Context:     e.mapper.Context(),
		Policy:      e.sched.Policy(),
		Calibrating: true,
	})

	levels, err := e.opts.Calibrator.Calibrate(ctx, e.reader)
	e.warning = nil
	if errors.Is(err, ErrUnstableCalibration) {
		e.warning = err
		err = nil
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fault.Wrap(err, fmsg.With("calibrate"))
	}
	e.SetLevels(levels)
	return nil
}

func (e *Engine) shutdown(cause error) error {
	relErr := e.sched.ReleaseAll(e.opts.Now())
	if relErr != nil {
		debug.Log("engine", "release on shutdown: %v", relErr)
	}
	if cause != nil {
		debug.Log("engine", "stopped: %v", cause)
		return cause
	}
	return relErr
}

// publish keeps only the newest frame in the channel
func (e *Engine) publish(f Frame) {
	select {
	case e.frames <- f:
		return
	default:
	}
	select {
	case <-e.frames:
	default:
	}
	select {
	case e.frames <- f:
	default:
	}
	debug.LogEvery(500, "frame", "display lagging, dropped frames")
}
