// Package capture records delivered frames into compressed files for offline inspection
package capture

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/klauspost/compress/gzip"
	"github.com/pkg/xattr"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/vmihailenco/msgpack/v4"
)

const (
	gzipCompressionLevel = gzip.BestSpeed
	xattrStreamName      = "user.cbfStream"
)

// FrameRecord is one frame as stored in capture files
type FrameRecord struct {
	Timestamp uint64       `msgpack:"timestamp"`
	NumSlots  int          `msgpack:"numSlots"`
	Slots     []SlotRecord `msgpack:"slots"` // filled slots only
}

// SlotRecord is the data item of a filled slot
type SlotRecord struct {
	Index int    `msgpack:"index"`
	Shape []int  `msgpack:"shape"`
	DType string `msgpack:"dtype"`
	Data  []byte `msgpack:"data"`
}

// NumFilled returns the number of filled slots
func (rec *FrameRecord) NumFilled() int {
	return len(rec.Slots)
}

// Recorder appends frames to a gzip-compressed file of consecutive msgpack records
//
// Recording stops silently once the uncompressed size would exceed the limit. Recorder is not thread-safe.
type Recorder struct {
	logger     logger.Logger
	path       string
	file       *os.File
	gzipWriter *gzip.Writer
	buffer     *bytes.Buffer
	maxBytes   uint64
	numFrames  int
	numBytes   uint64
	full       bool
}

// NewRecorder creates or truncates the file at path and labels it with the stream name
//
// maxSize is the limit of uncompressed data, 0 for unlimited.
func NewRecorder(parentLogger logger.Logger, path string, streamName string, maxSize datasize.ByteSize) (*Recorder, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create capture file: %w", err)
	}
	gzWriter, gzErr := gzip.NewWriterLevel(file, gzipCompressionLevel)
	if gzErr != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create gzip writer: %w", gzErr)
	}
	rlogger := parentLogger.WithFields(logger.Fields{
		defs.LabelComponent: "CaptureRecorder",
		"path":              path,
	})
	if xerr := xattr.Set(path, xattrStreamName, []byte(streamName)); xerr != nil {
		rlogger.Warnf("error labelling stream name on capture file: %s", xerr)
	}
	return &Recorder{
		logger:     rlogger,
		path:       path,
		file:       file,
		gzipWriter: gzWriter,
		buffer:     bytes.NewBuffer(make([]byte, 0, 1*1024*1024)),
		maxBytes:   maxSize.Bytes(),
	}, nil
}

// Record appends a frame, or returns false if the size limit has been reached
func (rec *Recorder) Record(frame *base.Frame) (bool, error) {
	if rec.full {
		return false, nil
	}
	record := FrameRecord{
		Timestamp: frame.Timestamp(),
		NumSlots:  frame.NumSlots(),
		Slots:     make([]SlotRecord, 0, frame.NumFilled()),
	}
	for i := 0; i < frame.NumSlots(); i++ {
		item := frame.Slot(i)
		if item == nil {
			continue
		}
		record.Slots = append(record.Slots, SlotRecord{Index: i, Shape: item.Shape, DType: item.DType, Data: item.Data})
	}
	rec.buffer.Reset()
	if err := msgpack.NewEncoder(rec.buffer).Encode(&record); err != nil {
		return false, fmt.Errorf("failed to encode frame %d: %w", record.Timestamp, err)
	}
	if rec.maxBytes > 0 && rec.numBytes+uint64(rec.buffer.Len()) > rec.maxBytes {
		rec.logger.Warnf("size limit %s reached after %d frames, stop recording", datasize.ByteSize(rec.maxBytes).HR(), rec.numFrames)
		rec.full = true
		return false, nil
	}
	if _, err := rec.gzipWriter.Write(rec.buffer.Bytes()); err != nil {
		return false, fmt.Errorf("failed to write capture file: %w", err)
	}
	rec.numFrames++
	rec.numBytes += uint64(rec.buffer.Len())
	return true, nil
}

// NumFrames returns the number of frames recorded
func (rec *Recorder) NumFrames() int {
	return rec.numFrames
}

// Close flushes and closes the file
func (rec *Recorder) Close() error {
	gzErr := rec.gzipWriter.Close()
	fileErr := rec.file.Close()
	if gzErr != nil {
		return fmt.Errorf("failed to close gzip writer: %w", gzErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close capture file: %w", fileErr)
	}
	rec.logger.Infof("recorded %d frames, %s uncompressed", rec.numFrames, datasize.ByteSize(rec.numBytes).HR())
	return nil
}

// Reader reads frames back from a capture file
type Reader struct {
	file       *os.File
	gzipReader *gzip.Reader
	decoder    *msgpack.Decoder
}

// OpenReader opens a capture file
func OpenReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	gzReader, gzErr := gzip.NewReader(bufio.NewReader(file))
	if gzErr != nil {
		file.Close()
		return nil, fmt.Errorf("%s: %w", path, gzErr)
	}
	return &Reader{
		file:       file,
		gzipReader: gzReader,
		decoder:    msgpack.NewDecoder(gzReader),
	}, nil
}

// Next returns the next frame, or io.EOF at the end of file
func (reader *Reader) Next() (*FrameRecord, error) {
	record := &FrameRecord{}
	if err := reader.decoder.Decode(record); err != nil {
		return nil, err
	}
	return record, nil
}

// Close closes the file
func (reader *Reader) Close() error {
	reader.gzipReader.Close()
	return reader.file.Close()
}

// ReadStreamName returns the stream name labelled on a capture file
func ReadStreamName(path string) (string, error) {
	name, err := xattr.Get(path, xattrStreamName)
	if err != nil {
		return "", err
	}
	return string(name), nil
}
