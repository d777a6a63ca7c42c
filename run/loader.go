package run

import (
	"fmt"
	"io"

	"github.com/relex/gotils/logger"
	"github.com/relex/gotils/promexporter/promreg"
	"github.com/ska-sa/cbf-ingest/attrstore"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/receiver"
)

// Loader loads configuration from file and prepares the environments to be launched
//
// Loader should take care of everything derived from the config file, but not trigger anything automatically
type Loader struct {
	filepath string // config file path

	*Config
	MetricFactory *promreg.MetricFactory
	Store         base.StateStore // nil if not configured
}

// NewLoaderFromConfigFile loads and verifies the config file and creates the state store
func NewLoaderFromConfigFile(filepath string, metricPrefix string) (*Loader, error) {
	config, configErr := LoadConfigFile(filepath)
	if configErr != nil {
		return nil, configErr
	}
	return NewLoader(filepath, config, metricPrefix)
}

// NewLoader prepares the environments of a verified config
func NewLoader(filepath string, config *Config, metricPrefix string) (*Loader, error) {
	loader := &Loader{
		filepath:      filepath,
		Config:        config,
		MetricFactory: promreg.NewMetricFactory(metricPrefix, nil, nil),
	}
	if config.AttrStore.IsSet() {
		store, err := config.AttrStore.Value.NewStateStore(logger.Root(), config.CBFName)
		if err != nil {
			return nil, fmt.Errorf("attrStore: %w", err)
		}
		loader.Store = store
	}
	return loader, nil
}

// LaunchReceiver subscribes to the configured streams and starts receiving
func (loader *Loader) LaunchReceiver(parentLogger logger.Logger) (*receiver.Receiver, error) {
	endpoints, err := loader.ParseEndpoints()
	if err != nil {
		return nil, fmt.Errorf("endpoints: %w", err)
	}
	sensors, serr := attrstore.NewSensorMatcher(loader.SensorPatterns)
	if serr != nil {
		return nil, fmt.Errorf("sensorPatterns%w", serr)
	}
	factory, ferr := loader.Source.Value.NewSourceFactory(parentLogger, loader.MetricFactory)
	if ferr != nil {
		return nil, fmt.Errorf("source%w", ferr)
	}
	params := receiver.Params{
		CBFName:                  loader.CBFName,
		Endpoints:                endpoints,
		ChannelRange:             loader.GetChannelRange(),
		CBFChannels:              loader.CBFChannels,
		ActiveFrames:             loader.ActiveFrames,
		DeliverIncompleteOnDrain: loader.DeliverIncompleteOnDrain,
		SourceFactory:            factory,
		Sensors:                  sensors,
	}
	if loader.Store != nil {
		params.AttrStore = loader.Store
		params.Publisher = loader.Store
	}
	parentLogger.WithField(defs.LabelComponent, "Loader").Infof("sensor patterns: %s", sensors)
	return receiver.NewReceiver(parentLogger, params, loader.MetricFactory)
}

// Close releases the state store, which may save its content
func (loader *Loader) Close() error {
	if closer, ok := loader.Store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
