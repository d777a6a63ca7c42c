// Package run runs the receiver as a standalone ingest process
package run

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/capture"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/ska-sa/cbf-ingest/receiver"
)

// ConsumeStats summarizes the frames taken by Consume
type ConsumeStats struct {
	NumFrames      int
	NumIncomplete  int
	NumBytes       int
	NumCaptured    int
	FirstTimestamp uint64
	LastTimestamp  uint64
}

func (stats ConsumeStats) String() string {
	return fmt.Sprintf("%d frames (%d incomplete, %d captured), %s, timestamps %d..%d", stats.NumFrames, stats.NumIncomplete,
		stats.NumCaptured, datasize.ByteSize(stats.NumBytes).HR(), stats.FirstTimestamp, stats.LastTimestamp)
}

// Consume takes frames from the receiver until the end of stream, and records them if recorder isn't nil
//
// Returns error if recording fails or frames are out of order, in which case the receiver is stopped but not joined.
func Consume(parentLogger logger.Logger, recv *receiver.Receiver, recorder *capture.Recorder) (ConsumeStats, error) {
	clogger := parentLogger.WithField(defs.LabelComponent, "Consumer")
	stats := ConsumeStats{}
	nextReport := time.Now().Add(defs.MetricsUpdateInterval)
	for {
		frame, ok := recv.Get()
		if !ok {
			break
		}
		if stats.NumFrames > 0 && frame.Timestamp() <= stats.LastTimestamp {
			recv.Stop()
			return stats, fmt.Errorf("frame with timestamp %d delivered after %d", frame.Timestamp(), stats.LastTimestamp)
		}
		if stats.NumFrames == 0 {
			stats.FirstTimestamp = frame.Timestamp()
		}
		stats.NumFrames++
		stats.NumBytes += frame.NumBytes()
		stats.LastTimestamp = frame.Timestamp()

		wallTime := recv.Attributes().TimestampToTime(frame.Timestamp())
		if frame.Ready() {
			consumedCompleteCounter.Inc()
			clogger.Debugf("frame %d at %s", frame.Timestamp(), wallTime.Format(time.RFC3339Nano))
		} else {
			stats.NumIncomplete++
			consumedIncompleteCounter.Inc()
			clogger.Infof("frame %d at %s is %d/%d complete", frame.Timestamp(), wallTime.Format(time.RFC3339Nano),
				frame.NumFilled(), frame.NumSlots())
		}
		lastFrameTimeGauge.Set(float64(wallTime.UnixNano()) / 1e9)

		if recorder != nil {
			recorded, err := recorder.Record(frame)
			if err != nil {
				recv.Stop()
				return stats, err
			}
			if recorded {
				stats.NumCaptured++
				capturedFramesCounter.Inc()
			}
		}
		if now := time.Now(); now.After(nextReport) {
			clogger.Infof("received %s", stats)
			nextReport = now.Add(defs.MetricsUpdateInterval)
		}
	}
	clogger.Infof("end of stream: %s", stats)
	return stats, nil
}

// Run runs the receiver until the end of all streams or stopped by signals
//
// capturePath overrides the capture path in config if not empty.
func Run(configFile string, capturePath string) {
	loader, loaderErr := NewLoaderFromConfigFile(configFile, "cbfingest_")
	if loaderErr != nil {
		logger.Fatal(loaderErr)
	}
	if capturePath != "" {
		loader.Capture.Path = capturePath
	}
	runLogger := logger.WithField(defs.LabelComponent, "Launcher")

	var recorder *capture.Recorder
	if loader.Capture.Path != "" {
		rec, err := capture.NewRecorder(logger.Root(), loader.Capture.Path, loader.CBFName, loader.Capture.MaxSize)
		if err != nil {
			logger.Fatal(err)
		}
		recorder = rec
	}

	recv, recvErr := loader.LaunchReceiver(logger.Root())
	if recvErr != nil {
		logger.Fatal(recvErr)
	}

	// stop on shutdown signal
	sigChan := make(chan os.Signal, 10)
	signal.Notify(sigChan, syscall.SIGINT)
	signal.Notify(sigChan, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sigChan:
			runLogger.Infof("received %s, stopping", s)
			recv.Stop()
		case <-recv.Stopped().Channel():
		}
	}()

	if _, err := Consume(logger.Root(), recv, recorder); err != nil {
		runLogger.Error(err)
	}
	recv.Join()
	signal.Stop(sigChan)

	if recorder != nil {
		if err := recorder.Close(); err != nil {
			runLogger.Error(err)
		}
	}
	if err := loader.Close(); err != nil {
		runLogger.Error(err)
	}
	runLogger.Info("clean exit")
}
