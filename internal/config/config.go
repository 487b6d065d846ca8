// Package config implements the Configuration Core (spec §4.I): a
// nested settings tree loaded defaults-first, then overridden by an
// optional file and environment variables, validated with
// go-playground/validator, merged field-by-field on live updates, and
// hashed for idempotence detection — the same layering the teacher
// builds with koanf (internal/config/koanf.go) and the same singleton
// validator pattern it uses for request validation
// (internal/validation/validator.go), here applied to the tour
// search settings tree instead of HTTP request bodies.
package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/tourscope/internal/filter"
)

// AutoHide controls when the search bar hides itself (spec §6).
type AutoHide struct {
	Enabled    bool `koanf:"enabled" validate:"-"`
	OnActivate bool `koanf:"on_activate" validate:"-"`
}

// SearchBar mirrors the spec's searchBar appearance group.
type SearchBar struct {
	Placeholder string `koanf:"placeholder" validate:"max=200"`
	Position    string `koanf:"position" validate:"oneof=top-left top-right bottom-left bottom-right"`
}

// Appearance mirrors the spec's appearance/display group.
type Appearance struct {
	Theme           string `koanf:"theme" validate:"oneof=light dark auto"`
	MaxResults      int    `koanf:"max_results" validate:"min=1,max=500"`
	ShowThumbnails  bool   `koanf:"show_thumbnails" validate:"-"`
}

// DisplayLabels mirrors spec §4.B's label.Options, wire-shaped for
// koanf/validator.
type DisplayLabels struct {
	OnlySubtitles  bool   `koanf:"only_subtitles" validate:"-"`
	UseSubtitles   bool   `koanf:"use_subtitles" validate:"-"`
	UseTags        bool   `koanf:"use_tags" validate:"-"`
	UseElementType bool   `koanf:"use_element_type" validate:"-"`
	CustomText     string `koanf:"custom_text" validate:"max=100"`
}

// IncludeContent mirrors spec §4.C's TypeToggles, as a flat settable map.
type IncludeContent struct {
	Toggles map[string]bool `koanf:"toggles" validate:"-"`
}

// FilterSettings mirrors spec §4.C's Config, wire-shaped for koanf.
type FilterSettings struct {
	SkipEmptyLabels          bool     `koanf:"skip_empty_labels" validate:"-"`
	MinLabelLength           int      `koanf:"min_label_length" validate:"min=0,max=200"`
	ValueWhitelist           []string `koanf:"value_whitelist" validate:"-"`
	ValueBlacklist           []string `koanf:"value_blacklist" validate:"-"`
	ElementTypeWhitelist     []string `koanf:"element_type_whitelist" validate:"-"`
	ElementTypeBlacklist     []string `koanf:"element_type_blacklist" validate:"-"`
	ElementLabelWhitelist    []string `koanf:"element_label_whitelist" validate:"-"`
	ElementLabelBlacklist    []string `koanf:"element_label_blacklist" validate:"-"`
	TagWhitelist             []string `koanf:"tag_whitelist" validate:"-"`
	TagBlacklist             []string `koanf:"tag_blacklist" validate:"-"`
	CompletelyBlank          bool     `koanf:"completely_blank" validate:"-"`
	UnlabeledWithSubtitles   bool     `koanf:"unlabeled_with_subtitles" validate:"-"`
	UnlabeledWithTags        bool     `koanf:"unlabeled_with_tags" validate:"-"`
	IncludeUnknownTypes      bool     `koanf:"include_unknown_types" validate:"-"`
	CascadeParentRejection   bool     `koanf:"cascade_parent_rejection" validate:"-"`
}

// ThumbnailSettings mirrors the spec's thumbnailSettings group.
type ThumbnailSettings struct {
	Enabled     bool   `koanf:"enabled" validate:"-"`
	FallbackURL string `koanf:"fallback_url" validate:"omitempty,uri"`
}

// Animations mirrors the spec's animations group.
type Animations struct {
	Enabled  bool          `koanf:"enabled" validate:"-"`
	Duration time.Duration `koanf:"duration" validate:"min=0"`
}

// SearchSettings mirrors spec §4.G.1's query Options.
type SearchSettings struct {
	MinSearchChars     int     `koanf:"min_search_chars" validate:"min=0,max=20"`
	Threshold          float64 `koanf:"threshold" validate:"min=0,max=1"`
	Distance           int     `koanf:"distance" validate:"min=0"`
	Location           int     `koanf:"location" validate:"min=0"`
	IgnoreLocation     bool    `koanf:"ignore_location" validate:"-"`
	MinMatchCharLength int     `koanf:"min_match_char_length" validate:"min=1"`
	UseExtendedSearch  bool    `koanf:"use_extended_search" validate:"-"`
	DebounceDesktopMS  int     `koanf:"debounce_desktop_ms" validate:"min=0"`
	DebounceMobileMS   int     `koanf:"debounce_mobile_ms" validate:"min=0"`
}

// BusinessData mirrors spec §4.D's business data source settings.
type BusinessData struct {
	Enabled                bool   `koanf:"enabled" validate:"-"`
	URL                    string `koanf:"url" validate:"omitempty"`
	UseBusinessElementType bool   `koanf:"use_business_element_type" validate:"-"`
	ReplaceTourData        bool   `koanf:"replace_tour_data" validate:"-"`
}

// GoogleSheets mirrors spec §4.D's spreadsheet source settings.
type GoogleSheets struct {
	Enabled                  bool   `koanf:"enabled" validate:"-"`
	Source                   string `koanf:"source" validate:"omitempty"`
	APIKeyParam              string `koanf:"api_key_param" validate:"-"`
	APIKey                   string `koanf:"api_key" validate:"-"`
	CacheTTL                 time.Duration `koanf:"cache_ttl" validate:"min=0"`
	IncludeStandaloneEntries bool   `koanf:"include_standalone_entries" validate:"-"`
	ReplaceElementTypeSheets bool   `koanf:"replace_element_type_sheets" validate:"-"`
}

// ElementTriggering mirrors spec §4.H.4's retry settings.
type ElementTriggering struct {
	BaseIntervalMS int     `koanf:"base_interval_ms" validate:"min=1"`
	Multiplier     float64 `koanf:"multiplier" validate:"min=1"`
	MaxIntervalMS  int     `koanf:"max_interval_ms" validate:"min=1"`
	MaxRetries     uint64  `koanf:"max_retries" validate:"min=0,max=100"`
	MaxElapsedMS   int     `koanf:"max_elapsed_ms" validate:"min=0"`
}

// Config is the complete Configuration Core settings tree (spec §6).
type Config struct {
	AutoHide           AutoHide          `koanf:"auto_hide"`
	MobileBreakpoint   int               `koanf:"mobile_breakpoint" validate:"min=0"`
	ElementTriggering  ElementTriggering `koanf:"element_triggering"`
	SearchBar          SearchBar         `koanf:"search_bar"`
	Appearance         Appearance        `koanf:"appearance"`
	DisplayLabels      DisplayLabels     `koanf:"display_labels"`
	IncludeContent     IncludeContent    `koanf:"include_content"`
	Filter             FilterSettings    `koanf:"filter"`
	ThumbnailSettings  ThumbnailSettings `koanf:"thumbnail_settings"`
	Animations         Animations        `koanf:"animations"`
	SearchSettings     SearchSettings    `koanf:"search_settings"`
	BusinessData       BusinessData      `koanf:"business_data"`
	GoogleSheets       GoogleSheets      `koanf:"google_sheets"`
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "TOURSCOPE_CONFIG_PATH"

// DefaultConfigPaths lists the paths searched in priority order.
var DefaultConfigPaths = []string{
	"tourscope.yaml",
	"tourscope.yml",
	"/etc/tourscope/config.yaml",
}

// Default returns the documented defaults (spec §6), applied before
// any file or environment layer.
func Default() *Config {
	return &Config{
		AutoHide:         AutoHide{Enabled: true, OnActivate: true},
		MobileBreakpoint: 768,
		ElementTriggering: ElementTriggering{
			BaseIntervalMS: 300, Multiplier: 1.5, MaxIntervalMS: 5000, MaxRetries: 6, MaxElapsedMS: 20000,
		},
		SearchBar:  SearchBar{Placeholder: "Search the tour...", Position: "top-left"},
		Appearance: Appearance{Theme: "auto", MaxResults: 50, ShowThumbnails: true},
		DisplayLabels: DisplayLabels{
			UseSubtitles: true, UseTags: false, UseElementType: true, CustomText: "[Unnamed Item]",
		},
		IncludeContent: IncludeContent{Toggles: map[string]bool{}},
		Filter:         FilterSettings{MinLabelLength: 0, UnlabeledWithSubtitles: true},
		ThumbnailSettings: ThumbnailSettings{Enabled: true},
		Animations:        Animations{Enabled: true, Duration: 200 * time.Millisecond},
		SearchSettings: SearchSettings{
			MinSearchChars: 2, Threshold: 0.4, Distance: 100, MinMatchCharLength: 1,
			DebounceDesktopMS: 150, DebounceMobileMS: 300,
		},
		BusinessData: BusinessData{},
		GoogleSheets: GoogleSheets{CacheTTL: 5 * time.Minute},
	}
}

var (
	validatorOnce sync.Once
	validatorInst *validator.Validate
)

// Validator returns the thread-safe singleton validator instance,
// following the teacher's GetValidator pattern.
func Validator() *validator.Validate {
	validatorOnce.Do(func() {
		validatorInst = validator.New(validator.WithRequiredStructEnabled())
	})
	return validatorInst
}

// Validate runs struct-tag validation over the whole tree.
func (c *Config) Validate() error {
	if err := Validator().Struct(c); err != nil {
		return fmt.Errorf("config: validation failed: %w", err)
	}
	return nil
}

// normalizeLists applies filter.NormalizeList to every allow/block list
// post-merge, satisfying spec §8 invariant 4.
func (c *Config) normalizeLists() {
	c.Filter.ValueWhitelist = filter.NormalizeList(c.Filter.ValueWhitelist)
	c.Filter.ValueBlacklist = filter.NormalizeList(c.Filter.ValueBlacklist)
	c.Filter.ElementTypeWhitelist = filter.NormalizeList(c.Filter.ElementTypeWhitelist)
	c.Filter.ElementTypeBlacklist = filter.NormalizeList(c.Filter.ElementTypeBlacklist)
	c.Filter.ElementLabelWhitelist = filter.NormalizeList(c.Filter.ElementLabelWhitelist)
	c.Filter.ElementLabelBlacklist = filter.NormalizeList(c.Filter.ElementLabelBlacklist)
	c.Filter.TagWhitelist = filter.NormalizeList(c.Filter.TagWhitelist)
	c.Filter.TagBlacklist = filter.NormalizeList(c.Filter.TagBlacklist)
}

// Load layers defaults, an optional file, and environment variables
// through koanf (spec §4.I), in the same three-tier precedence the
// teacher's LoadWithKoanf documents: ENV > File > Defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := Default()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: failed to load file %s: %w", path, err)
		}
	}

	envProvider := env.Provider("TOURSCOPE_", ".", envTransform)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("config: failed to load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: failed to unmarshal: %w", err)
	}

	cfg.normalizeLists()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sectionPrefixes lists top-level config sections so envTransform can
// find where the section name ends and the field name begins,
// mirroring the teacher's envTransformFunc lookup table approach (here
// a list of this module's sections instead of a legacy-name migration
// table, since this module has no legacy names to preserve). No entry
// followed by "_" is a prefix of another, so the list order does not
// affect the result.
var sectionPrefixes = []string{
	"ELEMENT_TRIGGERING", "SEARCH_BAR", "DISPLAY_LABELS", "INCLUDE_CONTENT",
	"THUMBNAIL_SETTINGS", "SEARCH_SETTINGS", "BUSINESS_DATA", "GOOGLE_SHEETS",
	"AUTO_HIDE", "APPEARANCE", "ANIMATIONS", "FILTER",
}

// envTransform converts TOURSCOPE_SEARCH_SETTINGS_THRESHOLD into
// search_settings.threshold, mirroring the teacher's envTransformFunc
// (here table-driven on section name rather than per-legacy-variable).
func envTransform(s string) string {
	upper := strings.TrimPrefix(strings.ToUpper(s), "TOURSCOPE_")
	for _, section := range sectionPrefixes {
		if upper == section {
			return strings.ToLower(section)
		}
		if strings.HasPrefix(upper, section+"_") {
			rest := strings.TrimPrefix(upper, section+"_")
			return strings.ToLower(section) + "." + strings.ToLower(rest)
		}
	}
	return strings.ToLower(upper)
}
