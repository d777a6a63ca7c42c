// Package cmd provides list of commands including the receiver, simulator and tools
package cmd

import (
	"github.com/relex/gotils/config"
)

func init() {
	config.AddParentCmdWithArgs("", "cbf-ingest receives CBF correlator heap streams and reassembles them into frames", &rootCmd, rootCmd.preRun, rootCmd.postRun)
	config.AddCmdWithArgs("run ...", "Run receiver", &runCmd, runCmd.run)
	config.AddCmdWithArgs("simulate ...", "Send simulated CBF heap streams", &simulateCmd, simulateCmd.run)
	config.AddCmdWithArgs("capture ...", "Print frames recorded in a capture file", &captureCmd, captureCmd.run)
}

// Execute parses the command line and runs the specified command
func Execute() {
	// trigger init

	config.Execute()
}
