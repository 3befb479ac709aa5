package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yndnr/onvifmesh-go/internal/core/domain"
	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
)

// Step names, used as work item names, log fields and metric labels.
const (
	stepLookupHostname = "lookup_hostname"
	stepDisplay        = "display_device"
	stepLoadThumbnail  = "load_thumbnail"
	stepLoadProfiles   = "load_profiles"
	stepPlayStream     = "play_stream"
	stepStopStream     = "stop_stream"
	stepRetryStream    = "retry_stream"
	stepReload         = "reload_device"
	stepDiscover       = "discover"
	stepManualAdd      = "manual_add"
	stepAddCredentials = "add_credentials"
)

// displayRow queues the hostname lookup and the display step for d.
func (s *FleetService) displayRow(d *domain.Device, skipProfiles bool) {
	s.submitStep(stepLookupHostname, d, s.lookupHostname)
	s.submitStep(stepDisplay, d, func(ctx context.Context, d *domain.Device) string {
		return s.display(ctx, d, skipProfiles)
	})
}

func (s *FleetService) lookupHostname(ctx context.Context, d *domain.Device) string {
	cctx, cancel := s.callCtx(ctx)
	name, err := s.resolver.LookupHostname(cctx, d.Host())
	cancel()

	if !d.IsValid() {
		return OutcomeStale
	}
	if err != nil {
		s.logger.Debug("hostname lookup failed", "device_id", d.ID, "host", d.Host(), "error", err)
		return OutcomeSkipped
	}

	d.SetHostname(name)
	s.publishRow(d, "row.hostname", func(r *presenter.Row) {
		r.Hostname = name
		if r.Name == "" {
			r.Name = name
		}
	})
	return OutcomeOK
}

// display authenticates d, then queues profile and thumbnail loading. The
// first display of a device always authenticates so that the thumbnail
// step sees a definite authorization state.
func (s *FleetService) display(ctx context.Context, d *domain.Device, skipProfiles bool) string {
	client := d.Client()

	cctx, cancel := s.callCtx(ctx)
	if client.LastError() != nil || !skipProfiles {
		_ = client.Authenticate(cctx)
	}
	cancel()

	if !d.IsValid() {
		return OutcomeStale
	}

	auth := d.AuthState()
	failure := failureText(d)
	s.publishRow(d, "row.auth", func(r *presenter.Row) {
		r.Auth = string(auth)
		r.Failure = failure
	})

	if !skipProfiles && auth == domain.AuthOK {
		s.submitStep(stepLoadProfiles, d, s.loadProfiles)
	}
	s.submitStep(stepLoadThumbnail, d, s.loadThumbnail)

	switch auth {
	case domain.AuthOK:
		return OutcomeOK
	case domain.AuthRequired:
		return OutcomeAuth
	default:
		return OutcomeFailed
	}
}

func (s *FleetService) loadThumbnail(ctx context.Context, d *domain.Device) string {
	client := d.Client()
	thumb := presenter.Thumbnail{UpdatedAt: time.Now()}
	outcome := OutcomeOK

	switch onvif.Classify(client.LastError()) {
	case nil:
		cctx, cancel := s.callCtx(ctx)
		snap, err := client.Snapshot(cctx, d.ProfileIndex())
		cancel()
		switch {
		case err == nil:
			thumb.State = presenter.ThumbnailImage
			thumb.ContentType = snap.ContentType
			thumb.Data = snap.Data
			thumb.Size = len(snap.Data)
		case errors.Is(err, onvif.ErrNotAuthorized):
			thumb.State = presenter.ThumbnailLocked
			outcome = OutcomeAuth
		default:
			s.logger.Debug("snapshot failed", "device_id", d.ID, "error", err)
			thumb.State = presenter.ThumbnailWarning
			outcome = OutcomeFailed
		}
	case onvif.ErrNotAuthorized:
		thumb.State = presenter.ThumbnailLocked
		outcome = OutcomeAuth
	default:
		thumb.State = presenter.ThumbnailWarning
		outcome = OutcomeFailed
	}

	if !d.IsValid() {
		return OutcomeStale
	}

	s.publishRow(d, "row.thumbnail", func(r *presenter.Row) {
		r.Thumbnail = thumb
		if thumb.State == presenter.ThumbnailLocked {
			r.Auth = string(domain.AuthRequired)
		}
	})
	return outcome
}

func (s *FleetService) loadProfiles(ctx context.Context, d *domain.Device) string {
	client := d.Client()
	if errors.Is(client.LastError(), onvif.ErrNotAuthorized) {
		return OutcomeSkipped
	}

	cctx, cancel := s.callCtx(ctx)
	profiles, err := client.Profiles(cctx)
	cancel()

	if !d.IsValid() {
		return OutcomeStale
	}
	if err != nil {
		failure := domain.FromProtocol(err).Error()
		auth := d.AuthState()
		s.publishRow(d, "row.profiles", func(r *presenter.Row) {
			r.Failure = failure
			r.Auth = string(auth)
		})
		if auth == domain.AuthRequired {
			return OutcomeAuth
		}
		return OutcomeFailed
	}

	d.SetProfiles(profiles)
	index := d.ProfileIndex()
	s.publishRow(d, "row.profiles", func(r *presenter.Row) {
		r.Profiles = profiles
		r.ProfileIndex = index
	})
	return OutcomeOK
}

// playStream resolves the stream of the selected profile and starts the
// player. It runs as its own step and inline from reload.
func (s *FleetService) playStream(ctx context.Context, d *domain.Device) string {
	if !d.Selected() {
		return OutcomeSkipped
	}
	s.publishPlayer(d, presenter.Player{Status: presenter.PlayerLoading, DeviceID: d.ID})

	client := d.Client()
	cctx, cancel := s.callCtx(ctx)
	defer cancel()

	if client.LastError() != nil {
		_ = client.Authenticate(cctx)
	}
	if err := client.LastError(); err != nil {
		return s.playFailed(d, err)
	}

	uri, err := client.StreamURI(cctx, d.ProfileIndex())
	if err != nil {
		return s.playFailed(d, err)
	}

	if !d.IsValid() {
		return OutcomeStale
	}
	s.player.SetSource(uri, d.Credentials())

	if !d.IsValid() {
		return OutcomeStale
	}
	if !d.Selected() {
		return OutcomeSkipped
	}
	if err := s.player.Play(); err != nil {
		s.logger.WarnContext(ctx, "player refused to start", "error", err)
		s.publishPlayer(d, presenter.Player{Status: presenter.PlayerStopped, DeviceID: d.ID, Error: err.Error()})
		return OutcomeFailed
	}

	s.streamFailures.Store(0)
	s.logger.InfoContext(ctx, "stream started", "url", uri)
	s.publishPlayer(d, presenter.Player{Status: presenter.PlayerPlaying, DeviceID: d.ID, URL: uri})
	return OutcomeOK
}

// streamFailed runs when the player loses the stream. It schedules a
// retry_stream step for the selected device after StreamRetryDelay, up to
// StreamRetries times per play.
func (s *FleetService) streamFailed(err error) {
	s.fleetMu.Lock()
	d, closed := s.selected, s.closed
	s.fleetMu.Unlock()
	if d == nil || closed || !d.IsValid() {
		return
	}

	attempt := int(s.streamFailures.Add(1))
	if attempt > s.cfg.StreamRetries {
		s.logger.Warn("stream failed", "device_id", d.ID, "retries", attempt-1, "error", err)
		s.publishPlayer(d, presenter.Player{Status: presenter.PlayerStopped, DeviceID: d.ID, Error: err.Error()})
		s.notice("error", fmt.Sprintf("stream of %s failed: %v", d.Endpoint, err))
		return
	}

	s.logger.Info("stream failed, retrying",
		"device_id", d.ID,
		"attempt", attempt,
		"delay", s.cfg.StreamRetryDelay,
		"error", err)
	s.publishPlayer(d, presenter.Player{Status: presenter.PlayerLoading, DeviceID: d.ID, Error: err.Error()})
	time.AfterFunc(s.cfg.StreamRetryDelay, func() {
		s.submitStep(stepRetryStream, d, s.retryStream)
	})
}

// retryStream reopens the player source while d is still selected.
func (s *FleetService) retryStream(ctx context.Context, d *domain.Device) string {
	if !d.Selected() {
		return OutcomeSkipped
	}
	if err := s.player.Retry(); err != nil {
		s.logger.WarnContext(ctx, "stream retry refused", "error", err)
		s.publishPlayer(d, presenter.Player{Status: presenter.PlayerStopped, DeviceID: d.ID, Error: err.Error()})
		return OutcomeFailed
	}
	url := s.player.Status().URL
	s.logger.InfoContext(ctx, "stream restarted", "url", url)
	s.publishPlayer(d, presenter.Player{Status: presenter.PlayerPlaying, DeviceID: d.ID, URL: url})
	return OutcomeOK
}

func (s *FleetService) playFailed(d *domain.Device, err error) string {
	if !d.IsValid() {
		return OutcomeStale
	}
	derr := domain.FromProtocol(err)
	s.publishPlayer(d, presenter.Player{Status: presenter.PlayerStopped, DeviceID: d.ID, Error: derr.Error()})

	if errors.Is(err, onvif.ErrNotAuthorized) {
		if d.Selected() {
			s.raiseLoginPrompt(d, "stream requires credentials")
		}
		return OutcomeAuth
	}
	s.publishRow(d, "row.failure", func(r *presenter.Row) { r.Failure = derr.Error() })
	return OutcomeFailed
}

func (s *FleetService) publishPlayer(d *domain.Device, p presenter.Player) {
	s.publish(d, "player", func(v *presenter.View) { v.SetPlayer(p) })
}

// stopStream stops the player. It is not bound to any device.
func (s *FleetService) stopStream(context.Context) string {
	s.player.Stop()
	s.publish(nil, "player", func(v *presenter.View) {
		v.SetPlayer(presenter.Player{Status: presenter.PlayerStopped})
	})
	return OutcomeOK
}

// reload redisplays d after its credentials or selected profile changed.
// persist stores the credentials once they are accepted.
func (s *FleetService) reload(ctx context.Context, d *domain.Device, skipProfiles, persist bool) string {
	client := d.Client()

	cctx, cancel := s.callCtx(ctx)
	if client.LastError() != nil {
		_ = client.Authenticate(cctx)
	}
	cancel()

	if !d.IsValid() {
		return OutcomeStale
	}
	if errors.Is(client.LastError(), onvif.ErrNotAuthorized) {
		s.raiseLoginPrompt(d, "credentials rejected")
		return OutcomeAuth
	}

	auth := d.AuthState()
	s.publishRow(d, "row.reload", func(r *presenter.Row) {
		r.Thumbnail = presenter.Thumbnail{State: presenter.ThumbnailPending, UpdatedAt: time.Now()}
		r.Auth = string(auth)
		r.Failure = ""
	})
	s.displayRow(d, skipProfiles)

	if persist {
		s.persistCredentials(ctx, d.Endpoint, d.Credentials())
	}
	if client.LastError() == nil {
		return s.playStream(ctx, d)
	}
	return OutcomeFailed
}

// raiseLoginPrompt asks for credentials of a registered device. A newer
// prompt replaces an older one for the same device.
func (s *FleetService) raiseLoginPrompt(d *domain.Device, reason string) string {
	id, err := domain.GenerateID(domain.PromptIDPrefix)
	if err != nil {
		s.logger.Error("prompt id", "error", err)
		return ""
	}

	s.prompts.DeleteFunc(func(_ string, p *pendingPrompt) bool {
		return p.device == d
	})

	p := presenter.Prompt{
		ID:        id,
		Kind:      presenter.PromptLogin,
		DeviceID:  d.ID,
		Endpoint:  d.Endpoint,
		Reason:    reason,
		CreatedAt: time.Now(),
	}
	s.prompts.Set(id, &pendingPrompt{prompt: p, device: d})
	// Scan and RemoveDevice invalidate before they purge device prompts, so
	// a device seen valid here has its prompt purged by them later.
	if !d.IsValid() {
		s.prompts.Delete(id)
		return ""
	}
	s.publish(d, "prompt.login", func(v *presenter.View) { v.AddPrompt(p) })
	return id
}

func (s *FleetService) persistCredentials(ctx context.Context, endpoint string, creds onvif.Credentials) {
	if s.inventory == nil || !s.inventory.CanStoreCredentials() || creds.IsZero() {
		return
	}
	if err := s.inventory.SaveCredentials(ctx, endpoint, creds); err != nil {
		s.logger.Warn("credentials not stored", "endpoint", endpoint, "error", err)
	}
}
