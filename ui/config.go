package ui

// Config contains TUI-specific configuration.
type Config struct {
	GlamourMaxWidth uint
	GlamourStyle    string `env:"GLAMOUR_STYLE"`
	EnableMouse     bool

	// Base URL used to build share links, e.g. https://bigairlab.com.
	SiteURL string `env:"NARRATE_SITE_URL" envDefault:"https://bigairlab.com"`

	// Watch local files and reload them on change.
	Watch bool `env:"NARRATE_WATCH" envDefault:"true"`

	// For debugging the UI
	HighPerformancePager bool `env:"NARRATE_HIGH_PERFORMANCE_PAGER" envDefault:"true"`
	GlamourEnabled       bool `env:"NARRATE_ENABLE_GLAMOUR"         envDefault:"true"`
}
