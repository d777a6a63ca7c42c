package btest

import (
	"errors"
	"testing"
	"time"

	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/defs"
	"github.com/stretchr/testify/assert"
)

func TestStubHeapSource(t *testing.T) {
	tlogger := logger.WithField("test", t.Name())
	factory := NewStubHeapSourceFactory(tlogger)
	endpoint := base.Endpoint{Host: "239.1.1.1", Port: 7148}
	stream := factory.Stream(endpoint.String())

	src, err := factory.OpenSource(tlogger, endpoint, base.SourceSizing{LiveHeaps: 4, RingHeaps: 4})
	assert.NoError(t, err)
	assert.Equal(t, 1, stream.NumOpen())

	go func() {
		stream.PushItems(defs.TestReadTimeout, &base.Item{Name: "n_chans", Value: 4096})
		stream.End()
	}()
	heap, ok := src.NextHeap()
	assert.True(t, ok)
	assert.Equal(t, 4096, heap.Get("n_chans").Value)
	_, ok = src.NextHeap()
	assert.False(t, ok)

	src.Close()
	src.Close()
	assert.Equal(t, 0, stream.NumOpen())
	assert.Equal(t, []base.SourceSizing{{LiveHeaps: 4, RingHeaps: 4}}, stream.Sizings())

	assert.False(t, factory.Stream("127.0.0.1:1").Push(&base.Heap{}, 10*time.Millisecond))

	factory.FailOpen(errors.New("bind"))
	_, err = factory.OpenSource(tlogger, endpoint, base.SourceSizing{})
	assert.EqualError(t, err, "failed to open 239.1.1.1:7148: bind")
}

func TestStubAttrStore(t *testing.T) {
	store := NewStubAttrStore(map[string]interface{}{"a": 1})
	v, ok := store.Get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	store.PublishMetadata("x", 2, true)
	assert.Equal(t, []PublishedMetadata{{Name: "x", Value: 2, IsSensor: true}}, store.Published())
}
