package presenter

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/onvifmesh-go/pkg/guard"
)

func startPresenter(t *testing.T, buffer int) *Presenter {
	t.Helper()
	p := New(buffer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	go p.Run(context.Background())
	t.Cleanup(p.Stop)
	return p
}

func flush(t *testing.T, p *Presenter) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Flush(ctx))
}

func TestPresenter_AppliesInOrder(t *testing.T) {
	p := startPresenter(t, 8)

	require.NoError(t, p.Post(Update{Kind: "row.added", Subject: "dev-1", Apply: func(v *View) {
		v.UpsertRow(Row{ID: "dev-1", Name: "Lobby"})
	}}))
	require.NoError(t, p.Post(Update{Kind: "row.hostname", Subject: "dev-1", Apply: func(v *View) {
		v.Row("dev-1").Hostname = "lobby-cam"
	}}))
	flush(t, p)

	snap := p.Snapshot()
	assert.EqualValues(t, 2, snap.Version)
	row, ok := snap.Row("dev-1")
	require.True(t, ok)
	assert.Equal(t, "lobby-cam", row.Hostname)
	assert.Equal(t, ThumbnailPending, row.Thumbnail.State)
}

func TestPresenter_DropsUpdatesForInvalidOwner(t *testing.T) {
	p := startPresenter(t, 8)

	var owner guard.Guard
	owner.Invalidate()

	require.NoError(t, p.Post(Update{Kind: "row.added", Subject: "dev-1", Owner: &owner, Apply: func(v *View) {
		v.UpsertRow(Row{ID: "dev-1"})
	}}))
	flush(t, p)

	_, ok := p.Snapshot().Row("dev-1")
	assert.False(t, ok)
	assert.EqualValues(t, 1, p.Stats().Stale)
}

func TestPresenter_SnapshotIsImmutable(t *testing.T) {
	p := startPresenter(t, 8)

	require.NoError(t, p.Post(Update{Apply: func(v *View) { v.UpsertRow(Row{ID: "a", Name: "one"}) }}))
	flush(t, p)
	before := p.Snapshot()

	require.NoError(t, p.Post(Update{Apply: func(v *View) { v.Row("a").Name = "two" }}))
	flush(t, p)

	row, _ := before.Row("a")
	assert.Equal(t, "one", row.Name)
	row, _ = p.Snapshot().Row("a")
	assert.Equal(t, "two", row.Name)
}

func TestPresenter_PromptsAndReset(t *testing.T) {
	p := startPresenter(t, 8)

	require.NoError(t, p.Post(Update{Apply: func(v *View) {
		v.UpsertRow(Row{ID: "dev-1"})
		v.UpsertRow(Row{ID: "dev-2"})
		v.SetSelected("dev-2")
		v.AddPrompt(Prompt{ID: "prm-1", Kind: PromptLogin, DeviceID: "dev-1"})
		v.AddPrompt(Prompt{ID: "prm-2", Kind: PromptLogin, DeviceID: "dev-1"})
		v.AddPrompt(Prompt{ID: "prm-3", Kind: PromptAdd, Endpoint: "http://192.0.2.9/onvif/device_service"})
	}}))
	flush(t, p)

	snap := p.Snapshot()
	require.Len(t, snap.Prompts, 2, "a newer login prompt replaces the older one")
	assert.Equal(t, "prm-2", snap.Prompts[0].ID)
	row, _ := snap.Row("dev-2")
	assert.True(t, row.Selected)

	require.NoError(t, p.Post(Update{Apply: func(v *View) { v.ResetRows() }}))
	flush(t, p)

	snap = p.Snapshot()
	assert.Empty(t, snap.Rows)
	require.Len(t, snap.Prompts, 1, "add prompts survive a reset")
	assert.Equal(t, PromptAdd, snap.Prompts[0].Kind)
}

func TestPresenter_Subscribe(t *testing.T) {
	p := startPresenter(t, 8)

	events, cancel := p.Subscribe("ws-1", 4)
	defer cancel()

	require.NoError(t, p.Post(Update{Kind: "row.added", Subject: "dev-1", Apply: func(v *View) {
		v.UpsertRow(Row{ID: "dev-1", Name: "Gate"})
	}}))

	select {
	case ev := <-events:
		assert.Equal(t, "row.added", ev.Kind)
		require.NotNil(t, ev.Row)
		assert.Equal(t, "Gate", ev.Row.Name)
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
	}

	cancel()
	_, open := <-events
	assert.False(t, open)
}

func TestPresenter_SlowSubscriberDoesNotBlock(t *testing.T) {
	p := startPresenter(t, 64)

	_, cancel := p.Subscribe("slow", 1)
	defer cancel()

	for i := 0; i < 20; i++ {
		require.NoError(t, p.Post(Update{Kind: "tick", Apply: func(*View) {}}))
	}
	flush(t, p)
	assert.EqualValues(t, 20, p.Stats().Applied)
}

func TestPresenter_PostAfterStop(t *testing.T) {
	p := New(1, nil)
	go p.Run(context.Background())
	p.Stop()

	assert.ErrorIs(t, p.Post(Update{Apply: func(*View) {}}), ErrStopped)
	assert.False(t, p.TryPost(Update{Apply: func(*View) {}}))
}

func TestPresenter_StopWithoutRun(t *testing.T) {
	p := New(1, nil)
	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop blocked without Run")
	}
}

func TestPresenter_TryPostDropsWhenFull(t *testing.T) {
	p := New(1, nil)

	assert.True(t, p.TryPost(Update{Apply: func(*View) {}}))
	assert.False(t, p.TryPost(Update{Apply: func(*View) {}}))
	assert.EqualValues(t, 1, p.Stats().Dropped)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(context.Background())
	}()
	flush(t, p)
	p.Stop()
	wg.Wait()
}
