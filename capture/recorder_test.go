package capture

import (
	"io"
	"path/filepath"
	"testing"

	"github.com/c2h5oh/datasize"
	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/stretchr/testify/assert"
)

func makeFrame(timestamp uint64, filled ...int) *base.Frame {
	frame := base.NewFrame(timestamp, 4)
	for _, slot := range filled {
		frame.Put(slot, &base.Item{Name: "xeng_raw", Shape: []int{2, 1, 2}, DType: "int32", Data: make([]byte, 16)})
	}
	return frame
}

func TestRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.cap")
	rec, err := NewRecorder(logger.WithField("test", t.Name()), path, "c856M4k", 0)
	if !assert.NoError(t, err) {
		return
	}
	for _, frame := range []*base.Frame{makeFrame(100, 0, 1, 2, 3), makeFrame(200, 1, 3)} {
		ok, rerr := rec.Record(frame)
		assert.NoError(t, rerr)
		assert.True(t, ok)
	}
	assert.Equal(t, 2, rec.NumFrames())
	assert.NoError(t, rec.Close())

	reader, oerr := OpenReader(path)
	if !assert.NoError(t, oerr) {
		return
	}
	defer reader.Close()
	first, ferr := reader.Next()
	assert.NoError(t, ferr)
	assert.Equal(t, uint64(100), first.Timestamp)
	assert.Equal(t, 4, first.NumSlots)
	assert.Equal(t, 4, first.NumFilled())
	second, serr := reader.Next()
	assert.NoError(t, serr)
	assert.Equal(t, uint64(200), second.Timestamp)
	if assert.Equal(t, 2, second.NumFilled()) {
		assert.Equal(t, 3, second.Slots[1].Index)
		assert.Equal(t, []int{2, 1, 2}, second.Slots[1].Shape)
		assert.Equal(t, "int32", second.Slots[1].DType)
		assert.Len(t, second.Slots[1].Data, 16)
	}
	_, eerr := reader.Next()
	assert.Equal(t, io.EOF, eerr)

	// xattr may be unsupported by the filesystem of temp dir
	if name, xerr := ReadStreamName(path); xerr == nil {
		assert.Equal(t, "c856M4k", name)
	}
}

func TestRecorderLimit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frames.cap")
	rec, err := NewRecorder(logger.WithField("test", t.Name()), path, "", 200*datasize.B)
	if !assert.NoError(t, err) {
		return
	}
	ok, _ := rec.Record(makeFrame(100, 0, 1))
	assert.True(t, ok)
	ok, _ = rec.Record(makeFrame(200, 0, 1, 2, 3))
	assert.False(t, ok)
	ok, _ = rec.Record(makeFrame(300))
	assert.False(t, ok)
	assert.Equal(t, 1, rec.NumFrames())
	assert.NoError(t, rec.Close())

	reader, oerr := OpenReader(path)
	if !assert.NoError(t, oerr) {
		return
	}
	defer reader.Close()
	first, _ := reader.Next()
	assert.Equal(t, uint64(100), first.Timestamp)
	_, eerr := reader.Next()
	assert.Equal(t, io.EOF, eerr)
}
