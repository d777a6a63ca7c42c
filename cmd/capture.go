package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/relex/gotils/logger"
	"github.com/samber/lo"
	"github.com/ska-sa/cbf-ingest/capture"
)

type captureCommandState struct {
	File string `help:"Capture file recorded by run"`
}

var captureCmd captureCommandState

func (cmd *captureCommandState) run(_ []string) {
	if cmd.File == "" {
		logger.Fatal("missing --file")
	}
	if name, err := capture.ReadStreamName(cmd.File); err == nil {
		fmt.Printf("stream: %s\n", name)
	}
	reader, err := capture.OpenReader(cmd.File)
	if err != nil {
		logger.Fatal(err)
	}
	defer reader.Close()

	numFrames := 0
	for {
		record, rerr := reader.Next()
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			logger.Fatalf("frame %d: %s", numFrames, rerr.Error())
		}
		numFrames++
		numBytes := lo.SumBy(record.Slots, func(slot capture.SlotRecord) int {
			return len(slot.Data)
		})
		fmt.Printf("%d\t%d/%d\t%d bytes\n", record.Timestamp, record.NumFilled(), record.NumSlots, numBytes)
	}
	fmt.Printf("%d frames\n", numFrames)
}
