// Package taxonomy implements the Type Classifier (spec §4.A): a pure,
// deterministic map from an opaque tour node's attributes to a
// closed-taxonomy element-type tag, following the precedence order of
// spec §3.1. It performs no I/O, mirroring the teacher's detection
// engine's ordered, side-effect-free rule dispatch
// (internal/detection/engine.go) translated from "evaluate every rule
// against an event" to "evaluate every rule against a node until one
// matches".
package taxonomy

import (
	"strings"

	"github.com/tomtom215/tourscope/internal/record"
)

// Node is the minimal attribute surface the classifier needs from a
// tour node. The indexer's tour.Adapter fills this in from whatever
// duck-typed shape the live tour exposes.
type Node struct {
	Class           string
	Label           string
	ID              string
	Projected       bool
	PolygonVertices int
	HasVideo        bool
	HasImage        bool
	HasObjects      bool // 3D model playlist item with sub-objects
	IsModelObject   bool // inner/model-object class inside a 3D model
}

// classNameTable maps known tour class names directly to a taxonomy
// tag; spec §3.1 "class-name table lookup".
var classNameTable = map[string]record.Type{
	"PanoramaPlayListItem":     record.TypePanorama,
	"Model3DPlayListItem":      record.Type3DModel,
	"HotspotPanoramaOverlay":   record.TypeHotspot,
	"PolygonPanoramaOverlay":   record.TypePolygon,
	"VideoPanoramaOverlay":     record.TypeVideo,
	"WebFramePanoramaOverlay":  record.TypeWebframe,
	"ImagePanoramaOverlay":     record.TypeImage,
	"TextPanoramaOverlay":      record.TypeText,
	"ProjectedImageOverlay":    record.TypeProjectedImage,
	"SpriteModel3DObject":      record.Type3DHotspot,
	"Model3DObject":            record.Type3DModelObject,
	"InnerModel3DObject":       record.Type3DModelObject,
	"PanoramaOverlay":          record.TypeElement,
	"Container":                record.TypeContainer,
}

// labelPatternTable matches on substrings of a (lowercased) label when
// the class name is unrecognized; spec §3.1 "label-pattern table".
var labelPatternTable = []struct {
	pattern string
	tag     record.Type
}{
	{"hotspot", record.TypeHotspot},
	{"video", record.TypeVideo},
	{"webframe", record.TypeWebframe},
	{"image", record.TypeImage},
	{"text", record.TypeText},
	{"polygon", record.TypePolygon},
	{"panorama", record.TypePanorama},
	{"model", record.Type3DModel},
}

// Diagnostic describes why a node fell through to Element, for the
// engine's diagnostics sink (SPEC_FULL.md §4).
type Diagnostic struct {
	NodeID  string
	Class   string
	Label   string
	Message string
}

// Result is the outcome of classifying a single node.
type Result struct {
	Type       record.Type
	Diagnostic *Diagnostic
}

// Classify applies the §3.1 precedence order, highest first:
//  1. explicit projected==true -> ProjectedImage
//  2. polygon vertices (>2), disambiguated by video/image payload
//  3. id/label contains "sprite" -> 3DHotspot
//  4. class-name table lookup
//  5. property-based heuristics (3D model objects)
//  6. label-pattern table
//  7. default Element (with diagnostic)
//
// Classify is pure: identical input always yields identical output
// (spec §8 idempotence law for classification).
func Classify(n Node) Result {
	if n.Projected {
		return Result{Type: record.TypeProjectedImage}
	}

	if n.PolygonVertices > 2 {
		switch {
		case n.HasVideo:
			return Result{Type: record.TypeVideo}
		case n.HasImage:
			return Result{Type: record.TypeImage}
		default:
			return Result{Type: record.TypePolygon}
		}
	}

	lowerLabel := strings.ToLower(n.Label)
	lowerID := strings.ToLower(n.ID)
	if strings.Contains(lowerID, "sprite") || strings.Contains(lowerLabel, "sprite") {
		return Result{Type: record.Type3DHotspot}
	}

	if tag, ok := classNameTable[n.Class]; ok {
		return Result{Type: tag}
	}

	if n.HasObjects {
		return Result{Type: record.Type3DModel}
	}
	if n.IsModelObject {
		return Result{Type: record.Type3DModelObject}
	}

	for _, entry := range labelPatternTable {
		if strings.Contains(lowerLabel, entry.pattern) {
			return Result{Type: entry.tag}
		}
	}

	return Result{
		Type: record.TypeElement,
		Diagnostic: &Diagnostic{
			NodeID:  n.ID,
			Class:   n.Class,
			Label:   n.Label,
			Message: "unknown class, defaulted to Element",
		},
	}
}
