package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relex/gotils/channels"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/simulator"
	"github.com/ska-sa/cbf-ingest/util"
)

type simulateCommandState struct {
	Params     string `help:"Simulator parameters file (YAML), built-in defaults if empty"`
	Endpoints  string `help:"Destinations of substreams, e.g. 239.9.3.1+3:7148"`
	Interface  string `help:"Network interface to send multicast from, system default if empty"`
	PacketSize int    `help:"Max size of datagrams"`
	Dumps      int    `help:"Number of dumps to send, 0 for unlimited"`
	Period     string `help:"Time between dumps, e.g. 500ms"`
}

var simulateCmd = simulateCommandState{
	Endpoints:  "239.9.3.1+3:7148",
	PacketSize: defs.SourcePacketSize,
	Dumps:      0,
	Period:     "500ms",
}

func (cmd *simulateCommandState) run(_ []string) {
	params := simulator.DefaultParams()
	if cmd.Params != "" {
		if err := util.UnmarshalYamlFile(cmd.Params, &params); err != nil {
			logger.Fatalf("failed to load %s: %s", cmd.Params, err.Error())
		}
	}
	period, perr := time.ParseDuration(cmd.Period)
	if perr != nil {
		logger.Fatalf("invalid period: %s", perr.Error())
	}
	endpoints, eerr := base.ParseEndpoints(cmd.Endpoints)
	if eerr != nil {
		logger.Fatalf("invalid endpoints: %s", eerr.Error())
	}
	params.NumStreams = len(endpoints)
	cbf, cerr := simulator.NewCBF(params)
	if cerr != nil {
		logger.Fatalf("invalid simulator parameters: %s", cerr.Error())
	}
	sender, serr := simulator.NewSender(logger.Root(), cbf, endpoints, cmd.PacketSize, cmd.Interface)
	if serr != nil {
		logger.Fatal(serr)
	}

	stopRequest := channels.NewSignalAwaitable()
	sigChan := make(chan os.Signal, 10)
	signal.Notify(sigChan, syscall.SIGINT)
	signal.Notify(sigChan, syscall.SIGTERM)
	go func() {
		s := <-sigChan
		logger.Infof("received %s, stopping", s)
		stopRequest.Signal()
	}()

	if _, err := sender.Run(cmd.Dumps, period, stopRequest); err != nil {
		logger.Error(err)
	}
	if err := sender.Close(); err != nil {
		logger.Error(err)
	}
}
