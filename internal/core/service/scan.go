package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/yndnr/onvifmesh-go/internal/core/domain"
	"github.com/yndnr/onvifmesh-go/internal/onvif"
	"github.com/yndnr/onvifmesh-go/internal/presenter"
	"github.com/yndnr/onvifmesh-go/internal/storage"
	"github.com/yndnr/onvifmesh-go/internal/telemetry/logger"
	"github.com/yndnr/onvifmesh-go/pkg/guard"
)

// Scan rebuilds the fleet. Everything belonging to the previous scan is
// invalidated before discovery starts: pending steps are dropped from the
// queue and running steps find their device invalid at the next check.
func (s *FleetService) Scan(ctx context.Context) error {
	if !s.limiter.Allow() {
		return domain.ErrRateLimited.WithDetails("scan")
	}

	s.fleetMu.Lock()
	defer s.fleetMu.Unlock()

	if s.closed {
		return domain.ErrShuttingDown
	}

	s.player.Stop()
	if s.selected != nil {
		s.selected.SetSelected(false)
		s.selected = nil
	}

	s.scan.Invalidate()
	dropped := s.pool.Clear()
	removed := s.devices.Clear()

	s.prompts.DeleteFunc(func(_ string, p *pendingPrompt) bool {
		return p.device != nil
	})
	s.publish(nil, "rows.reset", func(v *presenter.View) {
		v.ResetRows()
		v.SetPlayer(presenter.Player{Status: presenter.PlayerStopped})
	})

	scan := new(guard.Guard)
	s.scan = scan
	s.metrics.ObserveScan()

	s.logger.Info("scan started",
		"request_id", logger.RequestIDFromContext(ctx),
		"removed_devices", removed,
		"dropped_items", dropped)

	return s.submit(stepDiscover, func(ctx context.Context) string {
		return s.discover(ctx, scan)
	})
}

// discover runs one discovery round for scan, then restores inventory
// devices. Matches arriving after scan was superseded are ignored.
func (s *FleetService) discover(ctx context.Context, scan *guard.Guard) string {
	if !scan.AddRef() {
		return OutcomeStale
	}
	defer scan.Unref()

	err := s.discoverer.Discover(ctx, s.cfg.DiscoveryRepeat, s.cfg.DiscoveryTimeout, func(m onvif.Match) {
		s.admitDiscovered(scan, m)
	})
	if !scan.IsValid() {
		return OutcomeStale
	}

	s.restoreInventory(ctx, scan)

	if err != nil {
		s.logger.Warn("discovery failed", "error", err)
		s.notice("warning", "discovery failed: "+err.Error())
		return OutcomeFailed
	}
	s.notice("info", fmt.Sprintf("scan finished, %d devices", s.devices.Count()))
	return OutcomeOK
}

func (s *FleetService) admitDiscovered(scan *guard.Guard, m onvif.Match) {
	u, err := onvif.ParseEndpoint(m.Endpoint)
	if err != nil {
		s.logger.Debug("ignoring discovery match", "endpoint", m.Endpoint, "error", err)
		return
	}
	endpoint := u.String()

	s.fleetMu.Lock()
	defer s.fleetMu.Unlock()

	if s.closed || !scan.IsValid() || s.devices.Contains(endpoint) {
		return
	}
	client, err := s.factory(endpoint)
	if err != nil {
		s.logger.Debug("ignoring discovery match", "endpoint", endpoint, "error", err)
		return
	}
	if _, err := s.admitLocked(client, domain.SourceDiscovery, m.Scopes); err != nil {
		s.logger.Debug("discovered device not admitted", "endpoint", endpoint, "error", err)
	}
}

// restoreInventory re-adds stored devices the discovery round did not find,
// with their stored credentials.
func (s *FleetService) restoreInventory(ctx context.Context, scan *guard.Guard) {
	if s.inventory == nil {
		return
	}
	recs, err := s.inventory.ListDevices(ctx)
	if err != nil {
		s.logger.Warn("inventory unavailable", "error", err)
		return
	}

	for _, rec := range recs {
		if !scan.IsValid() {
			return
		}
		if s.devices.Contains(rec.Endpoint) {
			continue
		}
		creds := s.storedCredentials(ctx, rec.Endpoint)

		client, err := s.factory(rec.Endpoint)
		if err != nil {
			s.logger.Warn("inventory record skipped", "endpoint", rec.Endpoint, "error", err)
			continue
		}
		client.SetCredentials(creds)

		s.fleetMu.Lock()
		if s.closed || !scan.IsValid() {
			s.fleetMu.Unlock()
			_ = client.Close()
			return
		}
		_, err = s.admitLocked(client, domain.SourceInventory, rec.Scopes)
		s.fleetMu.Unlock()
		if err != nil {
			s.logger.Debug("inventory device not admitted", "endpoint", rec.Endpoint, "error", err)
		}
	}
}

func (s *FleetService) storedCredentials(ctx context.Context, endpoint string) onvif.Credentials {
	if !s.inventory.CanStoreCredentials() {
		return onvif.Credentials{}
	}
	creds, err := s.inventory.LoadCredentials(ctx, endpoint)
	if err != nil {
		if !errors.Is(err, storage.ErrKeyNotFound) {
			s.logger.Warn("stored credentials unreadable", "endpoint", endpoint, "error", err)
		}
		return onvif.Credentials{}
	}
	return creds
}

// admitLocked registers a device for client and queues its first display.
// The caller holds fleetMu. On failure client is closed.
func (s *FleetService) admitLocked(client onvif.Client, source domain.Source, scopes onvif.Scopes) (*domain.Device, error) {
	d, err := domain.NewDevice(client, source, scopes, func(d *domain.Device) {
		s.logger.Debug("device released", "device_id", d.ID, "endpoint", d.Endpoint)
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if _, ok := s.devices.AddUnique(d); !ok {
		d.Invalidate()
		return nil, domain.ErrDeviceExists.WithDetails(d.Endpoint)
	}

	row := presenter.Row{
		ID:       d.ID,
		Endpoint: d.Endpoint,
		Source:   string(source),
		Host:     d.Host(),
		Name:     d.DisplayName(),
		Hardware: scopes.Hardware,
		Location: scopes.Location,
	}
	s.publish(d, "row.added", func(v *presenter.View) { v.UpsertRow(row) })
	s.displayRow(d, false)

	s.logger.Info("device added",
		"device_id", d.ID,
		"endpoint", d.Endpoint,
		"source", source)
	return d, nil
}
