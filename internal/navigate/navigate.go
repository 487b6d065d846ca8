// Package navigate implements the Navigation Dispatcher (spec §4.H):
// it turns a selected IndexRecord into tour activation calls, retrying
// failed element triggers with exponential backoff. It never panics or
// returns a fatal error from Activate — every outcome, including
// exhausted retries, is reported as a typed Outcome (spec §9: "must
// never throw from user interaction code").
package navigate

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/tomtom215/tourscope/internal/engineerr"
	"github.com/tomtom215/tourscope/internal/logging"
	"github.com/tomtom215/tourscope/internal/metrics"
	"github.com/tomtom215/tourscope/internal/record"
	"github.com/tomtom215/tourscope/internal/tour"
)

// Outcome classifies how an activation attempt finished (spec §9).
type Outcome int

const (
	Triggered Outcome = iota
	RetryLater
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Triggered:
		return "triggered"
	case RetryLater:
		return "retry_later"
	default:
		return "failed"
	}
}

// RetryConfig mirrors the Configuration Core's elementTriggering
// section (spec §4.H.4).
type RetryConfig struct {
	BaseInterval    time.Duration
	Multiplier      float64
	MaxInterval     time.Duration
	MaxRetries      uint64
	MaxElapsedTime  time.Duration
}

// DefaultRetryConfig matches spec §4.H.4's documented defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		BaseInterval:   300 * time.Millisecond,
		Multiplier:     1.5,
		MaxInterval:    5 * time.Second,
		MaxRetries:     6,
		MaxElapsedTime: 20 * time.Second,
	}
}

// Dispatcher activates IndexRecords against a tour.Adapter.
type Dispatcher struct {
	adapter tour.Adapter
	retry   RetryConfig
}

// New constructs a Dispatcher bound to adapter.
func New(adapter tour.Adapter, retry RetryConfig) *Dispatcher {
	return &Dispatcher{adapter: adapter, retry: retry}
}

// Activate dispatches rec per its type (spec §4.H.3), in precedence order:
//
//	finite camera + media index -> location-hash deep link, no mutation
//	Panorama, 3DModel           -> synchronous SelectIndex
//	3DHotspot, 3DModelObject,
//	  other child elements      -> SelectIndex then TriggerClick retry
//	Container                   -> ToggleContainer
//	standalone (sheets/business)-> best-effort lookup by id, then as above
//
// The first TriggerClick attempt follows SelectIndex immediately; there
// is no fixed delay before it, only the backoff between retries.
//
// Activate always returns a non-nil Outcome; it never panics.
func (d *Dispatcher) Activate(ctx context.Context, rec record.IndexRecord) (outcome Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn().Interface("panic", r).Str("record_id", rec.ID).Msg("navigate: recovered from panic during activation")
			outcome, err = Failed, fmt.Errorf("navigate: panic during activation: %v", r)
		}
		metrics.NavigationRetries.WithLabelValues(outcome.String()).Inc()
	}()

	if rec.Camera.Finite() && rec.MediaIndex != nil {
		return d.activateCameraShortcut(rec)
	}

	if rec.IsStandalone {
		return d.activateStandalone(ctx, rec)
	}

	switch rec.Type {
	case record.TypePanorama, record.Type3DModel:
		return d.activatePlaylistSelect(ctx, rec)
	case record.TypeContainer:
		return d.activateContainer(ctx, rec)
	default:
		return d.activateChild(ctx, rec)
	}
}

// activateCameraShortcut takes spec §4.H.3's highest-precedence path:
// a finite camera deep-links via the location hash with no playlist
// selection and no element trigger.
func (d *Dispatcher) activateCameraShortcut(rec record.IndexRecord) (Outcome, error) {
	fragment, ok := CameraShortcutURL(rec)
	if !ok {
		return Failed, engineerr.New(engineerr.KindActivationFailure, "camera shortcut has no media index").WithContext("id", rec.ID)
	}
	d.adapter.SetLocationHash(fragment)
	return Triggered, nil
}

func (d *Dispatcher) activatePlaylistSelect(ctx context.Context, rec record.IndexRecord) (Outcome, error) {
	if rec.Index == nil {
		return Failed, engineerr.New(engineerr.KindActivationFailure, "record has no playlist index").WithContext("id", rec.ID)
	}
	source := "main"
	if rec.Source == record.SourceRoot {
		source = "root"
	}
	if err := d.adapter.SelectIndex(ctx, source, *rec.Index); err != nil {
		return Failed, engineerr.Wrap(engineerr.KindActivationFailure, "select index failed", err).WithContext("id", rec.ID)
	}
	return Triggered, nil
}

func (d *Dispatcher) activateContainer(ctx context.Context, rec record.IndexRecord) (Outcome, error) {
	ok, err := d.adapter.ToggleContainer(ctx, rec.ContainerName)
	if err != nil {
		return Failed, engineerr.Wrap(engineerr.KindActivationFailure, "toggle container failed", err).WithContext("name", rec.ContainerName)
	}
	if !ok {
		return Failed, engineerr.New(engineerr.KindActivationFailure, "container not found").WithContext("name", rec.ContainerName)
	}
	return Triggered, nil
}

// activateChild selects the parent panorama/model (if known), then
// retries TriggerClick with exponential backoff (spec §4.H.4).
func (d *Dispatcher) activateChild(ctx context.Context, rec record.IndexRecord) (Outcome, error) {
	if rec.ParentIndex != nil {
		source := "main"
		if rec.Source == record.SourceRoot {
			source = "root"
		}
		if err := d.adapter.SelectIndex(ctx, source, *rec.ParentIndex); err != nil {
			logging.Warn().Err(err).Str("id", rec.ID).Msg("navigate: parent select failed; attempting trigger anyway")
		}
	}
	return d.triggerWithRetry(ctx, rec.ID)
}

// activateStandalone resolves a business/sheets-only record to a live
// node by id before falling back to the child activation path; if the
// tour has no matching node, it fails without ever calling TriggerClick.
func (d *Dispatcher) activateStandalone(ctx context.Context, rec record.IndexRecord) (Outcome, error) {
	if rec.ID == "" || !d.adapter.FindByID(ctx, rec.ID) {
		return Failed, engineerr.New(engineerr.KindActivationFailure, "standalone record has no matching tour node").WithContext("id", rec.ID)
	}
	return d.triggerWithRetry(ctx, rec.ID)
}

// triggerWithRetry wraps adapter.TriggerClick in cenkalti/backoff's
// exponential policy (base 300ms, factor 1.5, capped interval, bounded
// retry count and elapsed time); the same "retry a flaky external
// call with bounded exponential backoff" shape the teacher applies to
// its sync clients' upstream calls, here applied to DOM-level
// activation instead of an HTTP fetch.
func (d *Dispatcher) triggerWithRetry(ctx context.Context, id string) (Outcome, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = d.retry.BaseInterval
	policy.Multiplier = d.retry.Multiplier
	policy.MaxInterval = d.retry.MaxInterval
	policy.MaxElapsedTime = d.retry.MaxElapsedTime

	bounded := backoff.WithMaxRetries(policy, d.retry.MaxRetries)
	ctxPolicy := backoff.WithContext(bounded, ctx)

	attempts := 0
	operation := func() error {
		attempts++
		return d.adapter.TriggerClick(ctx, id)
	}

	err := backoff.Retry(operation, ctxPolicy)
	if err == nil {
		return Triggered, nil
	}
	if ctx.Err() != nil {
		return RetryLater, engineerr.Wrap(engineerr.KindActivationFailure, "activation cancelled", ctx.Err()).WithContext("id", id, "attempts", attempts)
	}
	return Failed, engineerr.Wrap(engineerr.KindActivationFailure, "trigger retries exhausted", err).WithContext("id", id, "attempts", attempts)
}

// CameraShortcutURL builds the #media-index=M&focus-overlay-name=...
// URL fragment spec §4.H.1 describes for deep-linking to an element
// with a finite camera.
func CameraShortcutURL(rec record.IndexRecord) (string, bool) {
	if rec.MediaIndex == nil {
		return "", false
	}
	fragment := "media-index=" + strconv.Itoa(*rec.MediaIndex)
	if rec.Label != "" {
		fragment += "&focus-overlay-name=" + url.QueryEscape(rec.Label)
	}
	if rec.Camera.Finite() {
		fragment += "&yaw=" + strconv.FormatFloat(rec.Camera.Yaw, 'f', -1, 64)
		fragment += "&pitch=" + strconv.FormatFloat(rec.Camera.Pitch, 'f', -1, 64)
		if rec.Camera.FOV != 0 {
			fragment += "&fov=" + strconv.FormatFloat(rec.Camera.FOV, 'f', -1, 64)
		}
	}
	return "#" + fragment, true
}
