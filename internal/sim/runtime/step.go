package runtime

import (
	"encoding/json"
	"time"

	"voxelcolony/internal/observerproto"
	"voxelcolony/internal/sim/colony"
)

func (s *Sim) step(dt float64, designations []designateReq) {
	start := time.Now()
	nowTick := s.tick.Load()
	s.audits = s.audits[:0]

	// Designations land at the tick boundary, before any worker moves.
	for _, d := range designations {
		var id uint64
		switch d.kind {
		case colony.KindPlace:
			id = s.queue.AddPlace(d.pos, d.material)
		case colony.KindStairs:
			id = s.queue.AddStairs(d.pos)
		default:
			id = s.queue.Add(d.pos, colony.KindDig)
		}
		if d.resp != nil {
			d.resp <- id
		}
	}

	s.crew.UpdateAll(dt, s.store, s.queue)

	if s.tickLogger != nil && nowTick%uint64(s.cfg.TickLogEveryTicks) == 0 {
		_ = s.tickLogger.WriteTick(TickLogEntry{
			Tick:           nowTick,
			DurationMicros: time.Since(start).Microseconds(),
			Workers:        len(s.crew.Workers()),
			Pending:        s.queue.PendingCount(),
			InProgress:     s.queue.InProgressCount(),
		})
	}

	if len(s.observers) > 0 {
		s.broadcastFrame(nowTick)
	}

	s.tick.Add(1)
}

func (s *Sim) buildFrame(nowTick uint64) observerproto.FrameMsg {
	workers := s.crew.Workers()
	frame := observerproto.FrameMsg{
		Type:            observerproto.TypeFrame,
		ProtocolVersion: observerproto.Version,
		Tick:            nowTick,
		Workers:         make([]observerproto.WorkerState, 0, len(workers)),
		Tasks: observerproto.TaskCounts{
			Pending:    s.queue.PendingCount(),
			InProgress: s.queue.InProgressCount(),
			Active:     s.queue.ActiveCount(),
		},
	}
	for _, w := range workers {
		frame.Workers = append(frame.Workers, observerproto.WorkerState{
			ID:         w.ID,
			Pos:        [3]float64{w.X, w.Y, w.Z},
			Cell:       w.Cell().ToArray(),
			State:      w.State.String(),
			TaskID:     w.TaskID,
			LastReason: w.Diag.LastReason,
		})
	}
	for _, t := range s.queue.Tasks() {
		frame.Board = append(frame.Board, observerproto.TaskState{
			ID:             t.ID,
			Pos:            t.Pos.ToArray(),
			Kind:           string(t.Kind),
			Status:         string(t.Status),
			Material:       t.Material,
			AssignedWorker: t.AssignedWorker,
		})
	}
	for _, a := range s.audits {
		frame.Audits = append(frame.Audits, observerproto.AuditEntry{
			Tick:   a.Tick,
			Worker: a.Worker,
			Pos:    a.Pos,
			From:   a.From,
			To:     a.To,
			Action: a.Action,
		})
	}
	return frame
}

func (s *Sim) broadcastFrame(nowTick uint64) {
	raw, err := json.Marshal(s.buildFrame(nowTick))
	if err != nil {
		return
	}
	for _, obs := range s.observers {
		select {
		case obs.out <- raw:
		default:
			// Slow observer: drop this frame rather than stall the tick.
		}
	}
}
