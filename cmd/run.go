package cmd

import (
	"context"

	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/run"
	"github.com/ska-sa/cbf-ingest/util"
)

type runCommandState struct {
	Config      string `help:"Configuration file path"`
	MetricsAddr string `help:"The listener address to expose Prometheus metrics and debug information"`
	Capture     string `help:"Record frames to the file, overriding capture path in config"`
	Check       bool   `help:"Only load and verify the configuration file"`
	TestMode    bool   `help:"Use test mode config: short timeouts"`
}

var runCmd = runCommandState{
	Config:      "config.yml",
	MetricsAddr: ":9335",
}

func (cmd *runCommandState) run(_ []string) {
	if cmd.Check {
		cfg, err := run.LoadConfigFile(cmd.Config)
		if err != nil {
			logger.Fatalf("%s: %s", cmd.Config, err.Error())
		}
		endpoints, _ := cfg.ParseEndpoints()
		logger.Infof("%s: OK, %d endpoints, channels %s of %d", cmd.Config, len(endpoints), cfg.GetChannelRange(), cfg.CBFChannels)
		return
	}
	if cmd.TestMode {
		defs.EnableTestMode()
	}

	msrv := util.LaunchMetricsListener(cmd.MetricsAddr)

	run.Run(cmd.Config, cmd.Capture)

	if err := msrv.Shutdown(context.Background()); err != nil {
		logger.Errorf("error shutting down metrics listener: %v", err)
	}
}
