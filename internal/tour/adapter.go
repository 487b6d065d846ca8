// Package tour abstracts the duck-typed tour runtime (spec §6, §9
// "Polymorphism via duck typing on tour nodes") behind a small
// capability interface. The Indexer and Navigation Dispatcher depend
// only on Adapter; tests stub it, and a real embedding binds it once
// against the live tour (e.g. a JS/WASM bridge).
package tour

import "context"

// Item is a playlist entry (spec §6: PlaylistItem).
type Item struct {
	ID    string
	Class string // e.g. "PanoramaPlayListItem", "Model3DPlayListItem"
	Media Media
}

// Media is the media payload of a playlist item.
type Media struct {
	ID        string
	Data      map[string]any
	Thumbnail string
	FirstFrame string
	Preview   string
	Objects   []Object // 3D model sub-objects
}

// Object is a 3D model sub-object (sprite hotspot or model-object mesh).
type Object struct {
	ID            string
	Class         string
	Label         string
	IsSprite      bool
	IsModelObject bool
}

// Overlay is an interactive element anchored inside a panorama.
type Overlay struct {
	ID       string
	Label    string
	Text     string
	Class    string
	ParentID string
	Data     map[string]any
	Items    []OverlayItem // overlay.items[0].{yaw,pitch,hfov}
}

// OverlayItem carries the camera angles for a hotspot overlay.
type OverlayItem struct {
	Yaw   float64
	Pitch float64
	HFOV  float64
}

// Container is a named, toggleable UI group.
type Container struct {
	Name    string
	Visible bool
}

// Adapter is the capability surface the Indexer and Navigation
// Dispatcher consume (spec §9's TourAdapter redesign item and §6's
// external interface list).
type Adapter interface {
	// ListMainItems returns tour.mainPlayList's items.
	ListMainItems(ctx context.Context) ([]Item, error)

	// ListRootItems returns tour.locManager.rootPlayer.mainPlayList's
	// items, if the tour exposes a root player; ok is false otherwise.
	ListRootItems(ctx context.Context) (items []Item, ok bool, err error)

	// Overlays enumerates a panorama's overlays via the fallback
	// chain the live adapter implements (spec §4.F eight-strategy
	// cascade); the in-memory index never re-derives that cascade.
	Overlays(ctx context.Context, mediaID string, mediaIndex int) ([]Overlay, error)

	// SelectIndex sets mainPlayList/rootPlayer selectedIndex (spec §4.H.3).
	SelectIndex(ctx context.Context, source string, index int) error

	// TriggerClick attempts element.trigger("click") style activation
	// by id, used by the retry state machine (spec §4.H.4).
	TriggerClick(ctx context.Context, id string) error

	// FindByID resolves an id to a triggerable node, across
	// player.getById / tour.get / player.get / getAllIDs+getById
	// (spec §4.H.4); ok is false if unresolved.
	FindByID(ctx context.Context, id string) (ok bool)

	// ToggleContainer flips a named container's visibility (spec §4.H.3).
	ToggleContainer(ctx context.Context, name string) (ok bool, err error)

	// SetLocationHash assigns window.location.hash for the camera
	// shortcut (spec §4.H.1).
	SetLocationHash(hash string)
}
