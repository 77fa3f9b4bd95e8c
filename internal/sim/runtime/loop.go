package runtime

import (
	"context"
	"time"
)

// Run drives the fixed-timestep loop until ctx is canceled or Stop is called.
// Designations and observer membership changes are buffered and applied at
// tick boundaries, so the sim state never sees a mid-tick mutation.
func (s *Sim) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.cfg.TickRateHz)
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var pending []designateReq

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case req := <-s.designate:
			pending = append(pending, req)
		case req := <-s.observerJoin:
			s.handleObserverJoin(req)
		case id := <-s.observerLeave:
			delete(s.observers, id)
		case <-ticker.C:
			s.step(dt, pending)
			pending = pending[:0]
		}
	}
}

// StepOnce advances the sim a single tick outside Run. Used by deterministic
// tests and the replay tooling; never call it while Run is active.
func (s *Sim) StepOnce(dt float64) {
	s.step(dt, s.drainDesignations())
}

func (s *Sim) drainDesignations() []designateReq {
	var out []designateReq
	for {
		select {
		case req := <-s.designate:
			out = append(out, req)
		default:
			return out
		}
	}
}
