// Package player defines the stream player collaborator.
//
// Decoding and rendering live outside this service. The fleet only tells a
// Player which source to open and when to start or stop; Virtual keeps that
// state and reports transitions so the admin API can show what is playing.
// A player whose stream breaks reports it through the OnFailure callbacks;
// the fleet answers with a delayed Retry.
package player

import (
	"errors"
	"sync"

	"github.com/yndnr/onvifmesh-go/internal/onvif"
)

// ErrNoSource is returned by Play when no source has been set.
var ErrNoSource = errors.New("player: no source")

// State is the playback state.
type State string

const (
	StateStopped State = "stopped"
	StatePlaying State = "playing"
	StateFailed  State = "failed"
)

// Status is a snapshot of a player.
type Status struct {
	State    State  `json:"state"`
	URL      string `json:"url,omitempty"`
	Username string `json:"username,omitempty"`
	Plays    uint64 `json:"plays"`
	Error    string `json:"error,omitempty"`
}

// Player opens a stream URL with device credentials.
type Player interface {
	SetSource(url string, creds onvif.Credentials)
	Play() error
	Stop()
	// Retry reopens the current source after a failure.
	Retry() error
	Status() Status
	// OnFailure registers fn to be called when playback fails.
	OnFailure(fn func(err error))
}

// Listener is notified after every state transition.
type Listener func(Status)

// Virtual is a Player that tracks state without decoding anything.
type Virtual struct {
	mu       sync.Mutex
	url      string
	creds    onvif.Credentials
	state    State
	plays    uint64
	err      error
	listener Listener
	failure  []func(error)
}

var _ Player = (*Virtual)(nil)

// NewVirtual creates a stopped player.
func NewVirtual(listener Listener) *Virtual {
	return &Virtual{state: StateStopped, listener: listener}
}

// SetSource sets the URL and credentials used by the next Play.
func (v *Virtual) SetSource(url string, creds onvif.Credentials) {
	v.mu.Lock()
	v.url = url
	v.creds = creds
	v.mu.Unlock()
}

// Play starts playback of the current source.
func (v *Virtual) Play() error {
	v.mu.Lock()
	if v.url == "" {
		v.mu.Unlock()
		return ErrNoSource
	}
	v.state = StatePlaying
	v.plays++
	v.err = nil
	st := v.statusLocked()
	l := v.listener
	v.mu.Unlock()

	if l != nil {
		l(st)
	}
	return nil
}

// Stop stops playback. Stopping a stopped player still notifies.
func (v *Virtual) Stop() {
	v.mu.Lock()
	v.state = StateStopped
	v.err = nil
	st := v.statusLocked()
	l := v.listener
	v.mu.Unlock()

	if l != nil {
		l(st)
	}
}

// Retry reopens the current source.
func (v *Virtual) Retry() error {
	return v.Play()
}

// Fail marks playback as failed and runs the OnFailure callbacks. It is
// the entry point for whatever decodes the stream.
func (v *Virtual) Fail(err error) {
	v.mu.Lock()
	v.state = StateFailed
	v.err = err
	st := v.statusLocked()
	l := v.listener
	callbacks := append([]func(error){}, v.failure...)
	v.mu.Unlock()

	if l != nil {
		l(st)
	}
	for _, fn := range callbacks {
		fn(err)
	}
}

// OnFailure registers fn to be called after Fail.
func (v *Virtual) OnFailure(fn func(err error)) {
	v.mu.Lock()
	v.failure = append(v.failure, fn)
	v.mu.Unlock()
}

// Status returns the current state.
func (v *Virtual) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statusLocked()
}

func (v *Virtual) statusLocked() Status {
	st := Status{
		State:    v.state,
		URL:      v.url,
		Username: v.creds.Username,
		Plays:    v.plays,
	}
	if v.err != nil {
		st.Error = v.err.Error()
	}
	return st
}
