package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/onvifmesh-go/internal/core/domain"
	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
	"github.com/yndnr/onvifmesh-go/internal/storage"
)

// AddDevice adds a device by its service URL and returns the normalised
// endpoint. The device joins the fleet once it has answered; if it rejects
// creds an add prompt is raised instead.
func (s *FleetService) AddDevice(ctx context.Context, rawURL string, creds onvif.Credentials) (string, error) {
	if s.isClosed() {
		return "", domain.ErrShuttingDown
	}

	client, err := s.factory(rawURL)
	if err != nil {
		return "", domain.ErrInvalidEndpoint.WithDetails(rawURL).WithCause(err)
	}
	endpoint := client.Endpoint()
	if s.devices.Contains(endpoint) {
		_ = client.Close()
		return "", domain.ErrDeviceExists.WithDetails(endpoint)
	}
	client.SetCredentials(creds)

	err = s.submitDroppable(stepManualAdd, func(ctx context.Context) string {
		return s.addClient(ctx, client)
	}, s.dropClient(client))
	if err != nil {
		_ = client.Close()
		return "", err
	}
	return endpoint, nil
}

// addClient authenticates a client that is not part of the fleet yet and
// admits it on success.
func (s *FleetService) addClient(ctx context.Context, client onvif.Client) string {
	var scopes onvif.Scopes

	cctx, cancel := s.callCtx(ctx)
	err := client.Authenticate(cctx)
	if err == nil {
		scopes, err = client.Scopes(cctx)
	}
	cancel()

	switch {
	case err == nil:
	case errors.Is(err, onvif.ErrNotAuthorized):
		s.raiseAddPrompt(client, "device requires credentials")
		return OutcomeAuth
	default:
		_ = client.Close()
		derr := domain.FromProtocol(err)
		s.logger.Warn("manual add failed", "endpoint", client.Endpoint(), "error", derr)
		s.notice("error", fmt.Sprintf("adding %s failed: %v", client.Endpoint(), derr))
		return OutcomeFailed
	}

	s.fleetMu.Lock()
	if s.closed {
		s.fleetMu.Unlock()
		_ = client.Close()
		return OutcomeSkipped
	}
	d, err := s.admitLocked(client, domain.SourceManual, scopes)
	s.fleetMu.Unlock()
	if err != nil {
		s.notice("warning", fmt.Sprintf("adding %s failed: %v", client.Endpoint(), err))
		return OutcomeFailed
	}

	s.persistDevice(ctx, d, scopes)
	return OutcomeOK
}

// dropClient closes a client whose add item never ran.
func (s *FleetService) dropClient(client onvif.Client) func() {
	return func() {
		_ = client.Close()
		s.logger.Debug("manual add dropped", "endpoint", client.Endpoint())
	}
}

func (s *FleetService) persistDevice(ctx context.Context, d *domain.Device, scopes onvif.Scopes) {
	if s.inventory == nil {
		return
	}
	rec := storage.DeviceRecord{
		Endpoint: d.Endpoint,
		AddedAt:  time.Now().UTC(),
		Scopes:   scopes,
	}
	if err := s.inventory.SaveDevice(ctx, rec); err != nil {
		s.logger.Warn("device not stored", "endpoint", d.Endpoint, "error", err)
		return
	}
	s.persistCredentials(ctx, d.Endpoint, d.Credentials())
}

func (s *FleetService) raiseAddPrompt(client onvif.Client, reason string) {
	if s.isClosed() {
		_ = client.Close()
		return
	}
	id, err := domain.GenerateID(domain.PromptIDPrefix)
	if err != nil {
		s.logger.Error("prompt id", "error", err)
		_ = client.Close()
		return
	}

	p := presenter.Prompt{
		ID:        id,
		Kind:      presenter.PromptAdd,
		Endpoint:  client.Endpoint(),
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	s.prompts.Set(id, &pendingPrompt{prompt: p, client: client})
	s.publishPrompt("prompt.add", id, func(v *presenter.View) { v.AddPrompt(p) })
}

// AnswerPrompt supplies credentials for a pending prompt. A login prompt
// reloads its device with the new credentials; an add prompt retries the
// manual add.
func (s *FleetService) AnswerPrompt(ctx context.Context, id string, creds onvif.Credentials) error {
	if s.isClosed() {
		return domain.ErrShuttingDown
	}
	p, ok := s.prompts.Pop(id)
	if !ok {
		return domain.ErrPromptNotFound.WithDetails(id)
	}
	s.publishPrompt("prompt.answered", id, func(v *presenter.View) { v.RemovePrompt(id) })

	if d := p.device; d != nil {
		if !d.IsValid() {
			return domain.ErrInvalidated.WithDetails(d.ID)
		}
		d.SetCredentials(creds)
		s.submitStep(stepReload, d, func(ctx context.Context, d *domain.Device) string {
			return s.reload(ctx, d, false, true)
		})
		return nil
	}

	p.client.SetCredentials(creds)
	err := s.submitDroppable(stepAddCredentials, func(ctx context.Context) string {
		return s.addClient(ctx, p.client)
	}, s.dropClient(p.client))
	if err != nil {
		_ = p.client.Close()
		return err
	}
	return nil
}

// CancelPrompt discards a pending prompt. Cancelling an add prompt abandons
// the device.
func (s *FleetService) CancelPrompt(ctx context.Context, id string) error {
	p, ok := s.prompts.Pop(id)
	if !ok {
		return domain.ErrPromptNotFound.WithDetails(id)
	}
	if p.client != nil {
		_ = p.client.Close()
	}
	s.publishPrompt("prompt.cancelled", id, func(v *presenter.View) { v.RemovePrompt(id) })
	return nil
}

// RemoveDevice drops a device from the fleet and forgets it in the
// inventory.
func (s *FleetService) RemoveDevice(ctx context.Context, id string) error {
	s.fleetMu.Lock()
	d, ok := s.deviceByID(id)
	if !ok {
		s.fleetMu.Unlock()
		return domain.ErrDeviceNotFound.WithDetails(id)
	}
	s.devices.Remove(d.Endpoint)
	wasSelected := s.selected == d
	if wasSelected {
		s.selected = nil
	}
	s.fleetMu.Unlock()

	if wasSelected {
		s.player.Stop()
		s.publish(nil, "player", func(v *presenter.View) {
			v.SetPlayer(presenter.Player{Status: presenter.PlayerStopped})
		})
	}
	var stale []string
	s.prompts.DeleteFunc(func(pid string, p *pendingPrompt) bool {
		if p.device == d {
			stale = append(stale, pid)
			return true
		}
		return false
	})
	for _, pid := range stale {
		s.publishPrompt("prompt.cancelled", pid, func(v *presenter.View) { v.RemovePrompt(pid) })
	}
	s.publishPrompt("row.removed", id, func(v *presenter.View) { v.RemoveRow(id) })

	if s.inventory != nil {
		if err := s.inventory.DeleteDevice(ctx, d.Endpoint); err != nil {
			return domain.ErrStorageError.WithCause(err)
		}
	}
	s.logger.Info("device removed", "device_id", id, "endpoint", d.Endpoint)
	return nil
}

// publishPrompt posts an update that is not bound to a device.
func (s *FleetService) publishPrompt(kind, subject string, apply func(v *presenter.View)) {
	if err := s.presenter.Post(presenter.Update{Kind: kind, Subject: subject, Apply: apply}); err != nil {
		s.logger.Debug("update not posted", "kind", kind, "error", err)
	}
}
