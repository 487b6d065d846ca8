package navigate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/tourscope/internal/record"
	"github.com/tomtom215/tourscope/internal/tour"
)

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		BaseInterval:   time.Millisecond,
		Multiplier:     1.1,
		MaxInterval:    10 * time.Millisecond,
		MaxRetries:     3,
		MaxElapsedTime: 200 * time.Millisecond,
	}
}

func TestActivate_PanoramaSelectsIndex(t *testing.T) {
	f := tour.NewFake()
	d := New(f, fastRetryConfig())

	idx := 2
	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		Type: record.TypePanorama, Index: &idx,
	})
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)
	assert.Equal(t, 2, f.SelectedIndex["main"])
}

func TestActivate_PanoramaWithoutIndexFails(t *testing.T) {
	f := tour.NewFake()
	d := New(f, fastRetryConfig())

	outcome, err := d.Activate(context.Background(), record.IndexRecord{Type: record.TypePanorama})
	assert.Error(t, err)
	assert.Equal(t, Failed, outcome)
}

func TestActivate_ContainerTogglesKnownContainer(t *testing.T) {
	f := tour.NewFake()
	f.Containers["sidebar"] = &tour.Container{Name: "sidebar"}
	d := New(f, fastRetryConfig())

	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		Type: record.TypeContainer, ContainerName: "sidebar",
	})
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)
	assert.True(t, f.Containers["sidebar"].Visible)
}

func TestActivate_ContainerNotFoundFails(t *testing.T) {
	f := tour.NewFake()
	d := New(f, fastRetryConfig())

	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		Type: record.TypeContainer, ContainerName: "missing",
	})
	assert.Error(t, err)
	assert.Equal(t, Failed, outcome)
}

func TestActivate_ChildElementRetriesThenSucceeds(t *testing.T) {
	f := tour.NewFake()
	f.TriggerFailures["child-1"] = 2
	d := New(f, fastRetryConfig())

	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		Type: record.TypeHotspot, ID: "child-1",
	})
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)
	assert.Contains(t, f.Triggered, "child-1")
}

func TestActivate_ChildElementExhaustsRetriesAndFails(t *testing.T) {
	f := tour.NewFake()
	f.TriggerFailures["stuck"] = 1000
	d := New(f, fastRetryConfig())

	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		Type: record.TypeHotspot, ID: "stuck",
	})
	assert.Error(t, err)
	assert.Equal(t, Failed, outcome)
}

func TestActivate_StandaloneResolvesByIDBeforeTriggering(t *testing.T) {
	f := tour.NewFake()
	f.KnownIDs["sheet-1"] = true
	d := New(f, fastRetryConfig())

	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		IsStandalone: true, ID: "sheet-1",
	})
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)
}

func TestActivate_StandaloneUnresolvedFailsWithoutTriggering(t *testing.T) {
	f := tour.NewFake()
	d := New(f, fastRetryConfig())

	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		IsStandalone: true, ID: "ghost",
	})
	assert.Error(t, err)
	assert.Equal(t, Failed, outcome)
	assert.Empty(t, f.Triggered)
}

func TestActivate_CanceledContextYieldsRetryLater(t *testing.T) {
	f := tour.NewFake()
	f.TriggerFailures["child-1"] = 1000
	d := New(f, fastRetryConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcome, err := d.Activate(ctx, record.IndexRecord{Type: record.TypeHotspot, ID: "child-1"})
	assert.Error(t, err)
	assert.Equal(t, RetryLater, outcome)
}

func TestActivate_FiniteCameraTakesShortcutWithoutPlaylistMutation(t *testing.T) {
	f := tour.NewFake()
	d := New(f, fastRetryConfig())

	idx := 3
	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		Type:       record.TypeHotspot,
		ID:         "child-1",
		Label:      "Front Desk",
		MediaIndex: &idx,
		Camera:     &record.Camera{Yaw: 1.5, Pitch: 0.2, FOV: 70},
	})
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)

	assert.Contains(t, f.LocationHash, "media-index=3")
	assert.Empty(t, f.SelectedIndex, "camera shortcut must not select a playlist index")
	assert.Empty(t, f.Triggered, "camera shortcut must not trigger a click")
}

func TestActivate_NonFiniteCameraFallsThroughToChildActivation(t *testing.T) {
	f := tour.NewFake()
	d := New(f, fastRetryConfig())

	idx := 3
	outcome, err := d.Activate(context.Background(), record.IndexRecord{
		Type:       record.TypeHotspot,
		ID:         "child-1",
		MediaIndex: &idx,
		Camera:     nil,
	})
	require.NoError(t, err)
	assert.Equal(t, Triggered, outcome)
	assert.Contains(t, f.Triggered, "child-1")
}

func TestCameraShortcutURL_RequiresMediaIndex(t *testing.T) {
	_, ok := CameraShortcutURL(record.IndexRecord{})
	assert.False(t, ok)
}

func TestCameraShortcutURL_IncludesCameraWhenFinite(t *testing.T) {
	idx := 3
	url, ok := CameraShortcutURL(record.IndexRecord{
		MediaIndex: &idx,
		Label:      "Front Desk",
		Camera:     &record.Camera{Yaw: 1.5, Pitch: 0.2, FOV: 70},
	})
	require.True(t, ok)
	assert.Contains(t, url, "media-index=3")
	assert.Contains(t, url, "focus-overlay-name=Front+Desk")
	assert.Contains(t, url, "yaw=1.5")
	assert.Contains(t, url, "fov=70")
}
