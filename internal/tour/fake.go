package tour

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Adapter used by tests across internal/indexer,
// internal/navigate, and internal/engine, mirroring the hand-rolled
// fake clients the teacher builds for its sync package tests rather
// than reaching for a mocking framework.
type Fake struct {
	mu sync.Mutex

	MainItems []Item
	RootItems []Item
	HasRoot   bool

	// OverlaysByMedia maps mediaID -> overlays, simulating whichever
	// of the eight detection strategies the live tour would satisfy.
	OverlaysByMedia map[string][]Overlay

	Containers map[string]*Container

	// Recorded calls, for assertions.
	SelectedIndex   map[string]int
	Triggered       []string
	TriggerFailures map[string]int // id -> number of remaining failures before success
	KnownIDs        map[string]bool
	LocationHash    string
}

// NewFake returns an empty Fake ready for a test to populate.
func NewFake() *Fake {
	return &Fake{
		OverlaysByMedia: map[string][]Overlay{},
		Containers:      map[string]*Container{},
		SelectedIndex:   map[string]int{},
		TriggerFailures: map[string]int{},
		KnownIDs:        map[string]bool{},
	}
}

func (f *Fake) ListMainItems(ctx context.Context) ([]Item, error) {
	return f.MainItems, nil
}

func (f *Fake) ListRootItems(ctx context.Context) ([]Item, bool, error) {
	return f.RootItems, f.HasRoot, nil
}

func (f *Fake) Overlays(ctx context.Context, mediaID string, mediaIndex int) ([]Overlay, error) {
	return f.OverlaysByMedia[mediaID], nil
}

func (f *Fake) SelectIndex(ctx context.Context, source string, index int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.SelectedIndex[source] = index
	return nil
}

func (f *Fake) TriggerClick(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if remaining, ok := f.TriggerFailures[id]; ok && remaining > 0 {
		f.TriggerFailures[id] = remaining - 1
		return fmt.Errorf("trigger failed for %s (simulated)", id)
	}
	f.Triggered = append(f.Triggered, id)
	return nil
}

func (f *Fake) FindByID(ctx context.Context, id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.KnownIDs[id]
}

func (f *Fake) ToggleContainer(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.Containers[name]
	if !ok {
		return false, nil
	}
	c.Visible = !c.Visible
	return true, nil
}

func (f *Fake) SetLocationHash(hash string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LocationHash = hash
}
