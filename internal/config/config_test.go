package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_DocumentedDefaultsPassValidation(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.True(t, cfg.AutoHide.Enabled)
	assert.Equal(t, 768, cfg.MobileBreakpoint)
	assert.Equal(t, "auto", cfg.Appearance.Theme)
	assert.Equal(t, 50, cfg.Appearance.MaxResults)
	assert.Equal(t, "top-left", cfg.SearchBar.Position)
	assert.Equal(t, 2, cfg.SearchSettings.MinSearchChars)
	assert.Equal(t, 0.4, cfg.SearchSettings.Threshold)
	assert.Equal(t, 6, int(cfg.ElementTriggering.MaxRetries))
	assert.Equal(t, 5*60*1000*1000*1000, int(cfg.GoogleSheets.CacheTTL))
}

func TestValidate_InvalidThemeRejected(t *testing.T) {
	cfg := Default()
	cfg.Appearance.Theme = "neon"
	assert.Error(t, cfg.Validate())
}

func TestValidate_InvalidSearchBarPositionRejected(t *testing.T) {
	cfg := Default()
	cfg.SearchBar.Position = "center"
	assert.Error(t, cfg.Validate())
}

func TestValidate_MaxResultsOutOfRangeRejected(t *testing.T) {
	cfg := Default()
	cfg.Appearance.MaxResults = 0
	assert.Error(t, cfg.Validate())

	cfg2 := Default()
	cfg2.Appearance.MaxResults = 501
	assert.Error(t, cfg2.Validate())
}

func TestValidate_ThresholdOutOfRangeRejected(t *testing.T) {
	cfg := Default()
	cfg.SearchSettings.Threshold = 1.5
	assert.Error(t, cfg.Validate())
}

func TestValidate_MinMatchCharLengthBelowOneRejected(t *testing.T) {
	cfg := Default()
	cfg.SearchSettings.MinMatchCharLength = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_ElementTriggeringMultiplierBelowOneRejected(t *testing.T) {
	cfg := Default()
	cfg.ElementTriggering.Multiplier = 0.5
	assert.Error(t, cfg.Validate())
}

func TestNormalizeLists_TrimsDedupesAndDropsEmpty(t *testing.T) {
	cfg := Default()
	cfg.Filter.ValueWhitelist = []string{" Lobby ", "lobby", "", "Kitchen"}
	cfg.Filter.TagBlacklist = []string{"tag1", "tag1", " tag2"}

	cfg.normalizeLists()

	assert.ElementsMatch(t, []string{"Lobby", "Kitchen"}, cfg.Filter.ValueWhitelist)
	assert.ElementsMatch(t, []string{"tag1", "tag2"}, cfg.Filter.TagBlacklist)
}

func TestEnvTransform_SectionWithSuffix(t *testing.T) {
	assert.Equal(t, "search_settings.threshold", envTransform("SEARCH_SETTINGS_THRESHOLD"))
	assert.Equal(t, "auto_hide.enabled", envTransform("AUTO_HIDE_ENABLED"))
	assert.Equal(t, "element_triggering.max_retries", envTransform("ELEMENT_TRIGGERING_MAX_RETRIES"))
	assert.Equal(t, "google_sheets.cache_ttl", envTransform("GOOGLE_SHEETS_CACHE_TTL"))
}

func TestEnvTransform_BareSectionName(t *testing.T) {
	assert.Equal(t, "appearance", envTransform("APPEARANCE"))
}

func TestEnvTransform_UnknownSectionLowercasedVerbatim(t *testing.T) {
	assert.Equal(t, "mobile_breakpoint", envTransform("MOBILE_BREAKPOINT"))
}

func TestValidator_ReturnsSameInstance(t *testing.T) {
	assert.Same(t, Validator(), Validator())
}
