package entity

import (
	"context"
	"fmt"

	"github.com/joshp123/omhome/internal/resource"
)

var coverStates = map[string]string{
	resource.ShutterDown:      CoverClosed,
	resource.ShutterGoingDown: CoverClosing,
	resource.ShutterUp:        CoverOpen,
	resource.ShutterGoingUp:   CoverOpening,
	resource.ShutterStop:      CoverPaused,
}

func coverState(state *State, snap *resource.Snapshot) {
	sh, ok := snap.Shutter(state.ID)
	if !ok {
		return
	}
	state.Available = true

	cover := &CoverState{State: CoverUnknown, SupportsPosition: sh.Has(resource.CapabilityPosition)}
	if mapped, ok := coverStates[sh.Status.State]; ok {
		cover.State = mapped
	}
	if sh.Status.Position != nil {
		position := resource.InvertPosition(*sh.Status.Position)
		cover.Position = &position
		cover.Closed = boolPtr(position == 0)
	}
	state.Cover = cover
}

func (s *Service) OpenCover(ctx context.Context, key string) error {
	return s.moveCover(ctx, key, resource.OpMoveUp, resource.ShutterGoingUp)
}

func (s *Service) CloseCover(ctx context.Context, key string) error {
	return s.moveCover(ctx, key, resource.OpMoveDown, resource.ShutterGoingDown)
}

func (s *Service) StopCover(ctx context.Context, key string) error {
	return s.moveCover(ctx, key, resource.OpStop, resource.ShutterStop)
}

func (s *Service) moveCover(ctx context.Context, key string, op resource.Operation, next string) error {
	d, err := s.available(key, PlatformCover)
	if err != nil {
		return err
	}
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: op}
	return s.execute(ctx, cmd, func(snap *resource.Snapshot) bool {
		return snap.PatchShutter(d.ID, func(sh *resource.Shutter) {
			sh.Status.State = next
		})
	})
}

// SetCoverPosition moves a cover to position, where 100 is fully open.
func (s *Service) SetCoverPosition(ctx context.Context, key string, position int) error {
	d, err := s.target(key, PlatformCover)
	if err != nil {
		return err
	}
	sh, ok := s.source.Data().Shutter(d.ID)
	if !ok {
		return notFound(key)
	}
	if !sh.Has(resource.CapabilityPosition) {
		return unsupported(d, "set_position")
	}
	if position < 0 || position > 100 {
		return fmt.Errorf("position %d: %w", position, ErrInvalidValue)
	}

	vendor := resource.InvertPosition(position)
	cmd := resource.Command{Kind: d.Kind, ID: d.ID, Op: resource.OpChangePosition, Number: resource.Number(float64(vendor))}
	return s.execute(ctx, cmd, func(snap *resource.Snapshot) bool {
		return snap.PatchShutter(d.ID, func(sh *resource.Shutter) {
			sh.Status.Position = intPtr(vendor)
		})
	})
}
