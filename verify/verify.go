// Package verify holds the intake verification flow: the per-reminder state
// machine and the capability-bounded verifier that confirms the user actually
// took the pill.
package verify

import (
	"context"
	"errors"
	"time"
)

// Gesture detection tuning.  The hand-tracking model reports normalized
// coordinates; a fingertip within DistanceThreshold of the mouth line for
// RequiredFrames consecutive frames counts as a confirmed intake.
const (
	MouthYPosition    = 0.3
	DistanceThreshold = 0.40
	RequiredFrames    = 15
)

// Verifier asynchronously confirms a pill intake.  Verify blocks until the
// intake is confirmed or ctx ends.
type Verifier interface {
	Verify(ctx context.Context) error
}

// Sampler reports the current fingertip position as a normalized vertical
// coordinate.  The real implementation samples a hand-tracking model; tests
// and demos drive it from a script.
type Sampler func() (y float64, ok bool)

// GestureVerifier watches a hand-position sampler and completes once the
// hand has been held at the mouth for enough consecutive frames.
type GestureVerifier struct {
	sampler    Sampler
	frameEvery time.Duration
}

func NewGestureVerifier(sampler Sampler, frameEvery time.Duration) *GestureVerifier {
	return &GestureVerifier{
		sampler:    sampler,
		frameEvery: frameEvery,
	}
}

func (v *GestureVerifier) Verify(ctx context.Context) error {
	ticker := time.NewTicker(v.frameEvery)
	defer ticker.Stop()

	progress := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		y, ok := v.sampler()
		if !ok {
			// No hand in frame; progress resets.
			progress = 0
			continue
		}

		distance := y - MouthYPosition
		if distance < 0 {
			distance = -distance
		}

		if distance < DistanceThreshold {
			progress++
			if progress >= RequiredFrames {
				return nil
			}
		} else {
			progress = 0
		}
	}
}

// State is the reminder view's position in the intake flow.
type State int

const (
	StateIdle State = iota
	StateReminding
	StateVerifying
	StateRecorded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReminding:
		return "reminding"
	case StateVerifying:
		return "verifying"
	case StateRecorded:
		return "recorded"
	}
	return "unknown"
}

// Recorder persists a confirmed intake.  *dblayer.DB satisfies it.
type Recorder interface {
	RecordPillTaken(ctx context.Context, scheduleID string, wasReminded bool) error
}

// Alarm is the looping audio alert played while a reminder is active.
type Alarm interface {
	Start()
	Stop()
}

// NopAlarm is an Alarm that does nothing.
type NopAlarm struct{}

func (NopAlarm) Start() {}
func (NopAlarm) Stop()  {}

var (
	ErrNotReminding    = errors.New("no reminder is active")
	ErrAlreadyRecorded = errors.New("intake already recorded")
)

// Flow drives one reminder through idle -> reminding -> verifying ->
// recorded.  It is not safe for concurrent use; the web UI serializes
// access per request.
type Flow struct {
	scheduleID string
	recorder   Recorder
	verifier   Verifier
	alarm      Alarm

	state        State
	soundEnabled bool
}

func NewFlow(scheduleID string, recorder Recorder, verifier Verifier, alarm Alarm) *Flow {
	if alarm == nil {
		alarm = NopAlarm{}
	}
	return &Flow{
		scheduleID:   scheduleID,
		recorder:     recorder,
		verifier:     verifier,
		alarm:        alarm,
		state:        StateIdle,
		soundEnabled: true,
	}
}

func (f *Flow) State() State { return f.state }

// Begin activates the reminder and starts the looping alert.
func (f *Flow) Begin() {
	if f.state != StateIdle {
		return
	}
	f.state = StateReminding
	if f.soundEnabled {
		f.alarm.Start()
	}
}

// ToggleSound mutes or unmutes the looping alert.
func (f *Flow) ToggleSound() {
	f.soundEnabled = !f.soundEnabled
	if !f.soundEnabled {
		f.alarm.Stop()
	} else if f.state == StateReminding {
		f.alarm.Start()
	}
}

// TakePillVerified runs the camera verifier and records the intake once it
// completes.  On verifier or recording failure the flow stays where it is so
// the user can retry.
func (f *Flow) TakePillVerified(ctx context.Context) error {
	if f.state == StateRecorded {
		return ErrAlreadyRecorded
	}
	if f.state != StateReminding {
		return ErrNotReminding
	}

	f.alarm.Stop()
	f.state = StateVerifying

	if err := f.verifier.Verify(ctx); err != nil {
		f.backToReminding()
		return err
	}

	return f.record(ctx)
}

// TakePillManual records the intake without camera verification.
func (f *Flow) TakePillManual(ctx context.Context) error {
	if f.state == StateRecorded {
		return ErrAlreadyRecorded
	}
	if f.state != StateReminding {
		return ErrNotReminding
	}

	return f.record(ctx)
}

// backToReminding returns a failed attempt to the reminding state and
// resumes the alert, which TakePillVerified silenced for the camera pass.
func (f *Flow) backToReminding() {
	f.state = StateReminding
	if f.soundEnabled {
		f.alarm.Start()
	}
}

func (f *Flow) record(ctx context.Context) error {
	// wasReminded is true whenever the flow got past Begin; the reminder
	// view only exists because a reminder fired.
	if err := f.recorder.RecordPillTaken(ctx, f.scheduleID, true); err != nil {
		// Remain available for retry.
		if f.state == StateVerifying {
			f.backToReminding()
		}
		return err
	}

	f.state = StateRecorded
	f.alarm.Stop()
	return nil
}
