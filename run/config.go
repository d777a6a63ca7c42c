package run

import (
	"fmt"

	"github.com/c2h5oh/datasize"
	"github.com/ska-sa/cbf-ingest/attrstore"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/base/bconfig"
	"github.com/ska-sa/cbf-ingest/input"
	"github.com/ska-sa/cbf-ingest/util"
)

// Config defines the root of cbf-ingest config file
type Config struct {
	CBFName                  string                         `yaml:"cbfName"`                  // prefix of attribute keys in state store
	Endpoints                string                         `yaml:"endpoints"`                // e.g. "239.9.3.1+15:7148"
	CBFChannels              int                            `yaml:"cbfChannels"`              // total channels of CBF
	ChannelRange             *base.ChannelRange             `yaml:"channelRange"`             // channels to receive, all by default
	ActiveFrames             int                            `yaml:"activeFrames"`             // 0 for default
	DeliverIncompleteOnDrain bool                           `yaml:"deliverIncompleteOnDrain"` // deliver incomplete frames left at end
	SensorPatterns           []string                       `yaml:"sensorPatterns"`           // glob patterns of sensor names, default if empty
	Source                   bconfig.HeapSourceConfigHolder `yaml:"source"`
	AttrStore                bconfig.AttrStoreConfigHolder  `yaml:"attrStore"`
	Capture                  CaptureConfig                  `yaml:"capture"`
}

// CaptureConfig defines recording of delivered frames
type CaptureConfig struct {
	Path    string            `yaml:"path"`    // empty to disable
	MaxSize datasize.ByteSize `yaml:"maxSize"` // limit of uncompressed data, 0 for unlimited
}

func init() {
	input.Register()
	attrstore.Register()
}

// LoadConfigFile loads config from the path and verifies all configurations
func LoadConfigFile(filepath string) (*Config, error) {
	cref := &Config{}
	if err := util.UnmarshalYamlFile(filepath, cref); err != nil {
		return nil, err
	}
	if err := cref.VerifyConfig(); err != nil {
		return nil, err
	}
	return cref, nil
}

// VerifyConfig checks configuration
func (cfg *Config) VerifyConfig() error {
	if cfg.CBFName == "" {
		return fmt.Errorf("cbfName is empty")
	}
	endpoints, err := cfg.ParseEndpoints()
	if err != nil {
		return fmt.Errorf("endpoints: %w", err)
	}
	if cfg.CBFChannels <= 0 {
		return fmt.Errorf("cbfChannels must be positive")
	}
	if cfg.CBFChannels%len(endpoints) != 0 {
		return fmt.Errorf("cbfChannels (%d) must be a multiple of the number of endpoints (%d)", cfg.CBFChannels, len(endpoints))
	}
	if rg := cfg.GetChannelRange(); !rg.IsSubsetOf(base.ChannelRange{Start: 0, Stop: cfg.CBFChannels}) {
		return fmt.Errorf("channelRange: %s is outside CBF channels [0, %d)", rg, cfg.CBFChannels)
	} else if streamChannels := cfg.CBFChannels / len(endpoints); !rg.IsAligned(streamChannels) {
		return fmt.Errorf("channelRange: %s is not aligned to %d channels per endpoint", rg, streamChannels)
	}
	if cfg.ActiveFrames != 0 && cfg.ActiveFrames < 2 {
		return fmt.Errorf("activeFrames must be at least 2")
	}
	if _, err := attrstore.NewSensorMatcher(cfg.SensorPatterns); err != nil {
		return fmt.Errorf("sensorPatterns%w", err)
	}
	if err := cfg.Source.Verify(true); err != nil {
		return fmt.Errorf("source%w", err)
	}
	if err := cfg.AttrStore.Verify(false); err != nil {
		return fmt.Errorf("attrStore%w", err)
	}
	return nil
}

// ParseEndpoints returns the list of all CBF endpoints
func (cfg *Config) ParseEndpoints() ([]base.Endpoint, error) {
	return base.ParseEndpoints(cfg.Endpoints)
}

// GetChannelRange returns the configured channel range or all CBF channels
func (cfg *Config) GetChannelRange() base.ChannelRange {
	if cfg.ChannelRange == nil {
		return base.ChannelRange{Start: 0, Stop: cfg.CBFChannels}
	}
	return *cfg.ChannelRange
}
