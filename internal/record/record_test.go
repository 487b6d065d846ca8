package record

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestType_Valid(t *testing.T) {
	assert.True(t, TypePanorama.Valid())
	assert.False(t, Type("bogus").Valid())
}

func TestCamera_Finite(t *testing.T) {
	assert.True(t, (&Camera{Yaw: 1, Pitch: 2}).Finite())
	assert.False(t, (&Camera{Yaw: math.NaN(), Pitch: 2}).Finite())
	assert.False(t, (&Camera{Yaw: math.Inf(1), Pitch: 2}).Finite())
	assert.False(t, (*Camera)(nil).Finite())
}

func TestIndexRecord_Validate(t *testing.T) {
	rec := &IndexRecord{Type: TypePanorama, Label: "Lobby"}
	assert.NoError(t, rec.Validate())
}

func TestIndexRecord_Validate_InvalidType(t *testing.T) {
	rec := &IndexRecord{Type: "bogus", Label: "Lobby"}
	assert.Error(t, rec.Validate())
}

func TestIndexRecord_Validate_EmptyLabel(t *testing.T) {
	rec := &IndexRecord{Type: TypePanorama}
	assert.Error(t, rec.Validate())
}

func TestIndexRecord_Validate_StandaloneWithItemRejected(t *testing.T) {
	rec := &IndexRecord{Type: TypePanorama, Label: "Lobby", IsStandalone: true, Item: "opaque"}
	assert.Error(t, rec.Validate())
}

func TestIndexRecord_Validate_NegativeBoostRejected(t *testing.T) {
	rec := &IndexRecord{Type: TypePanorama, Label: "Lobby", Boost: -1}
	assert.Error(t, rec.Validate())
}

func TestIndexRecord_GroupKey_DefaultsToOwnType(t *testing.T) {
	rec := &IndexRecord{Type: TypeHotspot}
	assert.Equal(t, TypeHotspot, rec.GroupKey("", false))
}

func TestIndexRecord_GroupKey_OverrideWhenRequested(t *testing.T) {
	rec := &IndexRecord{Type: TypeHotspot}
	assert.Equal(t, Type("CustomType"), rec.GroupKey("CustomType", true))
}

func TestIndexRecord_GroupKey_StandaloneBusinessSource(t *testing.T) {
	rec := &IndexRecord{Type: TypeElement, Source: SourceBusiness, IsStandalone: true}
	assert.Equal(t, TypeBusiness, rec.GroupKey("", false))
}
