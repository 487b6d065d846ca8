package taxonomy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tomtom215/tourscope/internal/record"
)

func TestClassify_PrecedenceTable(t *testing.T) {
	cases := []struct {
		name string
		node Node
		want record.Type
	}{
		{"projected wins over everything", Node{Projected: true, Class: "PanoramaPlayListItem"}, record.TypeProjectedImage},
		{"polygon with video payload", Node{PolygonVertices: 4, HasVideo: true}, record.TypeVideo},
		{"polygon with image payload", Node{PolygonVertices: 4, HasImage: true}, record.TypeImage},
		{"polygon with no payload", Node{PolygonVertices: 4}, record.TypePolygon},
		{"sprite id beats class table", Node{ID: "obj-sprite-1", Class: "Model3DObject"}, record.Type3DHotspot},
		{"sprite label beats class table", Node{Label: "Sprite Marker", Class: "Model3DObject"}, record.Type3DHotspot},
		{"class name table hit", Node{Class: "HotspotPanoramaOverlay"}, record.TypeHotspot},
		{"has objects falls to 3d model", Node{Class: "Unknown", HasObjects: true}, record.Type3DModel},
		{"is model object falls to model object", Node{Class: "Unknown", IsModelObject: true}, record.Type3DModelObject},
		{"label pattern table hit", Node{Class: "Unknown", Label: "Intro Video Clip"}, record.TypeVideo},
		{"unknown defaults to element with diagnostic", Node{Class: "Unknown", Label: "???", ID: "n1"}, record.TypeElement},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.node)
			assert.Equal(t, tc.want, got.Type)
		})
	}
}

func TestClassify_DefaultEmitsDiagnostic(t *testing.T) {
	result := Classify(Node{ID: "n1", Class: "Mystery", Label: "nonsense"})
	if assert.NotNil(t, result.Diagnostic) {
		assert.Equal(t, "n1", result.Diagnostic.NodeID)
		assert.Equal(t, "Mystery", result.Diagnostic.Class)
	}
}

func TestClassify_RecognizedPathsEmitNoDiagnostic(t *testing.T) {
	result := Classify(Node{Class: "PanoramaPlayListItem"})
	assert.Nil(t, result.Diagnostic)
}

func TestClassify_IsPure(t *testing.T) {
	n := Node{Class: "HotspotPanoramaOverlay", Label: "a hotspot"}
	first := Classify(n)
	second := Classify(n)
	assert.Equal(t, first.Type, second.Type)
}
