package tour

import (
	"context"
	"fmt"

	"github.com/tomtom215/tourscope/internal/logging"
)

// DuckNode is the minimal shape every tour object (playlist, item,
// media, overlay) exposes in the live runtime: a generic getter plus a
// method-call dispatcher. A real embedding backs this with whatever
// bridge it has to the tour's actual JS objects (e.g. a syscall/js
// wrapper); this package's tests use Fake rather than Live. This is the
// concrete form of the "duck typing on tour nodes" the spec's §9
// redesign note asks to abstract behind an adapter.
type DuckNode interface {
	Get(key string) (any, bool)
	Call(method string, args ...any) (any, error)
}

// Live adapts a DuckNode-based tour root into the Adapter interface
// the Indexer and Navigation Dispatcher consume. It implements every
// fallback chain spec §4.F and §6 name: main-playlist resolution,
// the eight-strategy overlay cascade, and the activation dispatch
// methods (trigger/click/onClick, getById/get/getAllIDs+getById).
type Live struct {
	root DuckNode
}

// NewLive builds a Live adapter over a tour root DuckNode.
func NewLive(root DuckNode) *Live {
	return &Live{root: root}
}

func asNode(v any, ok bool) (DuckNode, bool) {
	if !ok || v == nil {
		return nil, false
	}
	n, ok := v.(DuckNode)
	return n, ok
}

func asNodes(v any, ok bool) ([]DuckNode, bool) {
	if !ok || v == nil {
		return nil, false
	}
	nodes, ok := v.([]DuckNode)
	return nodes, ok
}

// mainPlayList resolves tour.mainPlayList via the robust fallback
// chain spec §4.F describes: direct attribute, then
// getByClassName("PlayList") filtered by id "mainPlayList".
func (l *Live) mainPlayList(ctx context.Context) (DuckNode, bool) {
	if pl, ok := asNode(l.root.Get("mainPlayList")); ok {
		return pl, true
	}
	if lists, ok := asNodes(l.root.Call("getByClassName", "PlayList")); ok {
		for _, candidate := range lists {
			if id, ok := candidate.Get("id"); ok && id == "mainPlayList" {
				return candidate, true
			}
		}
	}
	return nil, false
}

// ListMainItems implements Adapter.
func (l *Live) ListMainItems(ctx context.Context) ([]Item, error) {
	pl, ok := l.mainPlayList(ctx)
	if !ok {
		return nil, fmt.Errorf("tour: mainPlayList not resolvable")
	}
	return itemsFromPlayList(pl)
}

// rootPlayer resolves tour.locManager.rootPlayer via the same
// "try alternate tour references" fallback the spec names.
func (l *Live) rootPlayer(ctx context.Context) (DuckNode, bool) {
	if locManager, ok := asNode(l.root.Get("locManager")); ok {
		if rp, ok := asNode(locManager.Get("rootPlayer")); ok {
			return rp, true
		}
	}
	if rp, ok := asNode(l.root.Get("rootPlayer")); ok {
		return rp, true
	}
	return nil, false
}

// ListRootItems implements Adapter.
func (l *Live) ListRootItems(ctx context.Context) ([]Item, bool, error) {
	rp, ok := l.rootPlayer(ctx)
	if !ok {
		return nil, false, nil
	}
	pl, ok := asNode(rp.Get("mainPlayList"))
	if !ok {
		return nil, false, nil
	}
	items, err := itemsFromPlayList(pl)
	if err != nil {
		return nil, false, err
	}
	return items, true, nil
}

func itemsFromPlayList(pl DuckNode) ([]Item, error) {
	raw, ok := pl.Get("items")
	if !ok {
		return nil, fmt.Errorf("tour: playlist has no items")
	}
	nodes, ok := raw.([]DuckNode)
	if !ok {
		return nil, fmt.Errorf("tour: playlist items not a node sequence")
	}
	items := make([]Item, 0, len(nodes))
	for _, n := range nodes {
		items = append(items, itemFromNode(n))
	}
	return items, nil
}

func itemFromNode(n DuckNode) Item {
	item := Item{}
	if id, ok := n.Get("id"); ok {
		item.ID, _ = id.(string)
	}
	if class, ok := n.Get("class"); ok {
		item.Class, _ = class.(string)
	}
	if mediaNode, ok := asNode(n.Get("media")); ok {
		item.Media = mediaFromNode(mediaNode)
	}
	return item
}

func mediaFromNode(n DuckNode) Media {
	media := Media{}
	if id, ok := n.Get("id"); ok {
		media.ID, _ = id.(string)
	}
	if data, ok := n.Get("data"); ok {
		media.Data, _ = data.(map[string]any)
	}
	if objs, ok := asNodes(n.Get("objects")); ok {
		for _, o := range objs {
			media.Objects = append(media.Objects, objectFromNode(o))
		}
	}
	return media
}

func objectFromNode(n DuckNode) Object {
	obj := Object{}
	if id, ok := n.Get("id"); ok {
		obj.ID, _ = id.(string)
	}
	if class, ok := n.Get("class"); ok {
		obj.Class, _ = class.(string)
	}
	if label, ok := n.Get("label"); ok {
		obj.Label, _ = label.(string)
	}
	return obj
}

// Overlays implements the eight-strategy detection cascade from spec
// §4.F, short-circuiting on the first strategy that yields a non-empty
// sequence:
//  1. media.overlays() getter call
//  2. media "overlays" property
//  3. item "overlays" property
//  4. item.overlaysByTags()
//  5. getByClassName("SpriteModel3DObject") filtered by parent
//  6. unowned sprites fallback, index 0 only
//  7. other 3D classes
//  8. generic PanoramaOverlay filtered by parent media id
func (l *Live) Overlays(ctx context.Context, mediaID string, mediaIndex int) ([]Overlay, error) {
	strategies := []func() ([]Overlay, bool){
		func() ([]Overlay, bool) { return l.overlaysViaCall(mediaID) },
		func() ([]Overlay, bool) { return l.overlaysViaMediaProperty(mediaID) },
		func() ([]Overlay, bool) { return l.overlaysViaItemProperty(mediaID) },
		func() ([]Overlay, bool) { return l.overlaysViaTags(mediaID) },
		func() ([]Overlay, bool) { return l.overlaysViaClassFilteredByParent(mediaID, "SpriteModel3DObject") },
		func() ([]Overlay, bool) { return l.unownedSpritesFallback(mediaIndex) },
		func() ([]Overlay, bool) { return l.overlaysViaOther3DClasses(mediaID) },
		func() ([]Overlay, bool) { return l.overlaysViaClassFilteredByParent(mediaID, "PanoramaOverlay") },
	}
	for i, strategy := range strategies {
		if overlays, ok := strategy(); ok && len(overlays) > 0 {
			logging.Debug().Int("strategy", i+1).Str("media_id", mediaID).Int("count", len(overlays)).
				Msg("overlay detection strategy matched")
			return overlays, nil
		}
	}
	return nil, nil
}

func (l *Live) mediaByID(mediaID string) (DuckNode, bool) {
	return asNode(l.root.Call("get", mediaID))
}

func (l *Live) overlaysViaCall(mediaID string) ([]Overlay, bool) {
	media, ok := l.mediaByID(mediaID)
	if !ok {
		return nil, false
	}
	nodes, ok := asNodes(media.Call("overlays"))
	if !ok {
		return nil, false
	}
	return overlaysFromNodes(nodes), true
}

func (l *Live) overlaysViaMediaProperty(mediaID string) ([]Overlay, bool) {
	media, ok := l.mediaByID(mediaID)
	if !ok {
		return nil, false
	}
	nodes, ok := asNodes(media.Get("overlays"))
	if !ok {
		return nil, false
	}
	return overlaysFromNodes(nodes), true
}

func (l *Live) overlaysViaItemProperty(mediaID string) ([]Overlay, bool) {
	item, ok := asNode(l.root.Call("get", mediaID))
	if !ok {
		return nil, false
	}
	nodes, ok := asNodes(item.Get("overlays"))
	if !ok {
		return nil, false
	}
	return overlaysFromNodes(nodes), true
}

func (l *Live) overlaysViaTags(mediaID string) ([]Overlay, bool) {
	item, ok := asNode(l.root.Call("get", mediaID))
	if !ok {
		return nil, false
	}
	nodes, ok := asNodes(item.Call("overlaysByTags"))
	if !ok {
		return nil, false
	}
	return overlaysFromNodes(nodes), true
}

func (l *Live) overlaysViaClassFilteredByParent(mediaID, class string) ([]Overlay, bool) {
	nodes, ok := asNodes(l.root.Call("getByClassName", class))
	if !ok {
		return nil, false
	}
	var filtered []DuckNode
	for _, n := range nodes {
		if parent, ok := n.Get("parent"); ok && parent == mediaID {
			filtered = append(filtered, n)
		}
	}
	if len(filtered) == 0 {
		return nil, false
	}
	return overlaysFromNodes(filtered), true
}

func (l *Live) unownedSpritesFallback(mediaIndex int) ([]Overlay, bool) {
	if mediaIndex != 0 {
		return nil, false
	}
	nodes, ok := asNodes(l.root.Call("getByClassName", "SpriteModel3DObject"))
	if !ok {
		return nil, false
	}
	var unowned []DuckNode
	for _, n := range nodes {
		if _, hasParent := n.Get("parent"); !hasParent {
			unowned = append(unowned, n)
		}
	}
	if len(unowned) == 0 {
		return nil, false
	}
	return overlaysFromNodes(unowned), true
}

func (l *Live) overlaysViaOther3DClasses(mediaID string) ([]Overlay, bool) {
	for _, class := range []string{"Model3DObject", "InnerModel3DObject"} {
		if overlays, ok := l.overlaysViaClassFilteredByParent(mediaID, class); ok {
			return overlays, true
		}
	}
	return nil, false
}

func overlaysFromNodes(nodes []DuckNode) []Overlay {
	overlays := make([]Overlay, 0, len(nodes))
	for _, n := range nodes {
		overlays = append(overlays, overlayFromNode(n))
	}
	return overlays
}

func overlayFromNode(n DuckNode) Overlay {
	ov := Overlay{}
	if id, ok := n.Get("id"); ok {
		ov.ID, _ = id.(string)
	}
	if label, ok := n.Get("label"); ok {
		ov.Label, _ = label.(string)
	}
	if class, ok := n.Get("class"); ok {
		ov.Class, _ = class.(string)
	}
	if parent, ok := n.Get("parent"); ok {
		ov.ParentID, _ = parent.(string)
	}
	if data, ok := n.Get("data"); ok {
		ov.Data, _ = data.(map[string]any)
	}
	if items, ok := asNodes(n.Get("items")); ok {
		for _, item := range items {
			oi := OverlayItem{HFOV: 70}
			if yaw, ok := item.Get("yaw"); ok {
				oi.Yaw, _ = yaw.(float64)
			}
			if pitch, ok := item.Get("pitch"); ok {
				oi.Pitch, _ = pitch.(float64)
			}
			if hfov, ok := item.Get("hfov"); ok {
				if f, ok := hfov.(float64); ok {
					oi.HFOV = f
				}
			}
			ov.Items = append(ov.Items, oi)
		}
	}
	return ov
}

// SelectIndex implements Adapter.
func (l *Live) SelectIndex(ctx context.Context, source string, index int) error {
	var pl DuckNode
	var ok bool
	if source == "root" {
		if rp, hasRoot := l.rootPlayer(ctx); hasRoot {
			pl, ok = asNode(rp.Get("mainPlayList"))
		}
	}
	if !ok {
		pl, ok = l.mainPlayList(ctx)
		if !ok {
			return fmt.Errorf("tour: no playlist resolvable for source %q", source)
		}
	}
	_, err := pl.Call("set", "selectedIndex", index)
	return err
}

// TriggerClick implements the trigger/click/onClick cascade from spec
// §4.H.4: try element.trigger("click"), then .click(), then .onClick().
func (l *Live) TriggerClick(ctx context.Context, id string) error {
	node, ok := l.resolveNode(id)
	if !ok {
		return fmt.Errorf("tour: element %q not resolvable", id)
	}
	for _, attempt := range []func() (any, error){
		func() (any, error) { return node.Call("trigger", "click") },
		func() (any, error) { return node.Call("click") },
		func() (any, error) { return node.Call("onClick") },
	} {
		if _, err := attempt(); err == nil {
			return nil
		}
	}
	return fmt.Errorf("tour: all trigger strategies failed for %q", id)
}

// FindByID implements the getById/get/getAllIDs+getById cascade.
func (l *Live) FindByID(ctx context.Context, id string) bool {
	_, ok := l.resolveNode(id)
	return ok
}

func (l *Live) resolveNode(id string) (DuckNode, bool) {
	if player, ok := asNode(l.root.Get("player")); ok {
		if n, ok := asNode(player.Call("getById", id)); ok {
			return n, true
		}
	}
	if n, ok := asNode(l.root.Call("get", id)); ok {
		return n, true
	}
	if player, ok := asNode(l.root.Get("player")); ok {
		if n, ok := asNode(player.Call("get", id)); ok {
			return n, true
		}
		if allIDs, ok := asNodes(player.Call("getAllIDs")); ok {
			for _, candidate := range allIDs {
				if candidateID, ok := candidate.Get("id"); ok && candidateID == id {
					return candidate, true
				}
			}
		}
	}
	return nil, false
}

// ToggleContainer implements Adapter: invoke toggleContainer(name) on
// the tour menu, falling back to flipping getByClassName("Container").
func (l *Live) ToggleContainer(ctx context.Context, name string) (bool, error) {
	if menu, ok := asNode(l.root.Get("menu")); ok {
		if _, err := menu.Call("toggleContainer", name); err == nil {
			return true, nil
		}
	}
	nodes, ok := asNodes(l.root.Call("getByClassName", "Container"))
	if !ok {
		return false, nil
	}
	for _, n := range nodes {
		if nodeName, ok := n.Get("name"); ok && nodeName == name {
			visible, _ := n.Get("visible")
			v, _ := visible.(bool)
			_, err := n.Call("set", "visible", !v)
			return err == nil, err
		}
	}
	return false, nil
}

// SetLocationHash implements Adapter. In the real embedding this
// assigns window.location.hash; here it is delegated to the root node
// so the binding layer decides how to reach the browser.
func (l *Live) SetLocationHash(hash string) {
	_, _ = l.root.Call("setLocationHash", hash)
}
