// Package testdata provides access to shared sample configs for testing
package testdata

import (
	"path/filepath"
	"runtime"
)

var absoluteDirPath string

func init() {
	_, thisFile, _, _ := runtime.Caller(0)
	absoluteDirPath = filepath.Dir(thisFile)
}

// GetConfigPath returns the absolute path of the sample config file
func GetConfigPath() string {
	return filepath.Join(absoluteDirPath, "config_sample.yml")
}

// GetSimulatorParamsPath returns the absolute path of the sample simulator parameters
func GetSimulatorParamsPath() string {
	return filepath.Join(absoluteDirPath, "simulator_sample.yml")
}
