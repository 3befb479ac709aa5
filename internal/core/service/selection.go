package service

import (
	"context"

	"github.com/yndnr/onvifmesh-go/internal/core/domain"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// SelectDevice makes id the viewed device. The previous stream is stopped
// before the new one is started. If the device is known to need credentials
// a login prompt is raised instead and its ID returned.
func (s *FleetService) SelectDevice(ctx context.Context, id string) (string, error) {
	s.fleetMu.Lock()
	defer s.fleetMu.Unlock()

	if s.closed {
		return "", domain.ErrShuttingDown
	}
	d, ok := s.deviceByID(id)
	if !ok || !d.IsValid() {
		return "", domain.ErrDeviceNotFound.WithDetails(id)
	}

	if prev := s.selected; prev != nil && prev != d {
		prev.SetSelected(false)
	}
	d.SetSelected(true)
	s.selected = d
	s.publish(d, "row.selected", func(v *presenter.View) { v.SetSelected(d.ID) })

	if d.AuthState() == domain.AuthRequired {
		err := s.submit(stepStopStream, s.stopStream)
		return s.raiseLoginPrompt(d, "device requires credentials"), err
	}

	// Play is queued by the stop step so the two never race on the player.
	err := s.submit(stepStopStream, func(ctx context.Context) string {
		outcome := s.stopStream(ctx)
		s.submitStep(stepPlayStream, d, s.playStream)
		return outcome
	})
	return "", err
}

// ClearSelection deselects the viewed device and stops the stream.
func (s *FleetService) ClearSelection(ctx context.Context) error {
	s.fleetMu.Lock()
	defer s.fleetMu.Unlock()

	if s.closed {
		return domain.ErrShuttingDown
	}
	if s.selected != nil {
		s.selected.SetSelected(false)
		s.selected = nil
	}
	s.publish(nil, "row.selected", func(v *presenter.View) { v.SetSelected("") })
	return s.submit(stepStopStream, s.stopStream)
}

// ChangeProfile selects another media profile of a device. When the index
// changes the stream is stopped and the device redisplayed with the new
// profile; profiles are not reloaded.
func (s *FleetService) ChangeProfile(ctx context.Context, id string, index int) error {
	d, ok := s.deviceByID(id)
	if !ok {
		return domain.ErrDeviceNotFound.WithDetails(id)
	}
	if !d.AddRef() {
		return domain.ErrInvalidated.WithDetails(id)
	}
	defer d.Unref()

	changed, err := d.SetProfileIndex(index)
	if err != nil || !changed {
		return err
	}

	s.publishRow(d, "row.profile", func(r *presenter.Row) { r.ProfileIndex = index })
	if d.Selected() {
		s.player.Stop()
		s.publishPlayer(d, presenter.Player{Status: presenter.PlayerStopped, DeviceID: d.ID})
	}
	s.submitStep(stepReload, d, func(ctx context.Context, d *domain.Device) string {
		return s.reload(ctx, d, true, false)
	})
	return nil
}
