package directory

import (
	"flag"

	"github.com/zachfi/zkit/pkg/util"
)

// StationConfig is one statically configured station.
type StationConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type Config struct {
	Stations []StationConfig `yaml:"stations,omitempty"`

	// TuneIn directory lookups supplement the static list.
	TuneInEnabled bool   `yaml:"tunein-enabled,omitempty"`
	TuneInBaseURL string `yaml:"tunein-base-url,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.BoolVar(&cfg.TuneInEnabled, util.PrefixConfig(prefix, "tunein-enabled"), true,
		"Allow station search and resolution through the TuneIn directory.")
	f.StringVar(&cfg.TuneInBaseURL, util.PrefixConfig(prefix, "tunein-base-url"), "",
		"Override the TuneIn OPML endpoint. Empty uses the public endpoint.")
}
