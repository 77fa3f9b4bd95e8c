package runtime

import (
	"context"
	"encoding/json"
	"fmt"

	"voxelcolony/internal/observerproto"
	"voxelcolony/internal/sim/colony"
	"voxelcolony/internal/sim/encoding"
	"voxelcolony/internal/sim/world"
)

// Designate queues a player designation and waits for the assigned task id.
// The id comes back once the sim applies the request at a tick boundary.
func (s *Sim) Designate(ctx context.Context, kind colony.TaskKind, pos world.Vec3i, material uint16) (uint64, error) {
	resp := make(chan uint64, 1)
	req := designateReq{kind: kind, pos: pos, material: material, resp: resp}
	select {
	case s.designate <- req:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.stop:
		return 0, fmt.Errorf("sim stopped")
	}
	select {
	case id := <-resp:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.stop:
		return 0, fmt.Errorf("sim stopped")
	}
}

// ObserverJoin registers a frame receiver. The returned id releases it via
// ObserverLeave. out should be buffered; full receivers miss frames instead
// of stalling the loop.
func (s *Sim) ObserverJoin(ctx context.Context, out chan []byte, surface bool) (uint64, error) {
	resp := make(chan uint64, 1)
	select {
	case s.observerJoin <- observerJoinReq{out: out, surface: surface, resp: resp}:
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.stop:
		return 0, fmt.Errorf("sim stopped")
	}
	select {
	case id := <-resp:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-s.stop:
		return 0, fmt.Errorf("sim stopped")
	}
}

func (s *Sim) ObserverLeave(id uint64) {
	select {
	case s.observerLeave <- id:
	case <-s.stop:
	}
}

func (s *Sim) handleObserverJoin(req observerJoinReq) {
	s.nextObsID++
	obs := &observerState{id: s.nextObsID, out: req.out}
	s.observers[obs.id] = obs
	if req.surface {
		if raw, err := json.Marshal(s.buildSurface()); err == nil {
			select {
			case obs.out <- raw:
			default:
			}
		}
	}
	req.resp <- obs.id
}

func (s *Sim) buildSurface() observerproto.SurfaceMsg {
	msg := observerproto.SurfaceMsg{
		Type:            observerproto.TypeSurface,
		ProtocolVersion: observerproto.Version,
		Tick:            s.tick.Load(),
	}
	for _, k := range s.store.LoadedChunkKeys() {
		ch := s.store.ChunkAt(k)
		msg.Chunks = append(msg.Chunks, observerproto.SurfaceChunk{
			CX:        k.CX,
			CZ:        k.CZ,
			BlocksRLE: encoding.EncodeRLE(ch.Blocks),
		})
	}
	return msg
}

// Bootstrap builds the observer bootstrap document. Safe to call from any
// goroutine: it reads only immutable world parameters and the atomic tick.
func (s *Sim) Bootstrap() observerproto.BootstrapResponse {
	gen := s.store.Gen()
	return observerproto.BootstrapResponse{
		ProtocolVersion: observerproto.Version,
		WorldID:         s.cfg.WorldID,
		Tick:            s.tick.Load(),
		WorldParams: observerproto.WorldParams{
			TickRateHz: s.cfg.TickRateHz,
			ChunkSize:  [3]int{world.ChunkSize, world.ChunkSize, gen.Height},
			SizeX:      gen.SizeX,
			SizeZ:      gen.SizeZ,
			Height:     gen.Height,
			Seed:       gen.Seed,
		},
		BlockPalette: world.BlockPalette(),
	}
}
