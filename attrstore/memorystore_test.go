package attrstore

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base/bconfig"
	"github.com/ska-sa/cbf-ingest/util"
	"github.com/stretchr/testify/assert"
)

func TestMemoryStorePublish(t *testing.T) {
	store := NewMemoryStore(logger.WithField("test", t.Name()), "cbf")
	store.PublishMetadata("n_chans", 4096, false)
	store.PublishMetadata("n_chans", 32768, false)
	store.PublishMetadata("flags_xeng_raw", 1, true)
	store.PublishMetadata("flags_xeng_raw", 2, true)

	v, ok := store.Get("cbf_n_chans")
	assert.True(t, ok)
	assert.Equal(t, 4096, v)
	v, ok = store.Get("cbf_flags_xeng_raw")
	assert.True(t, ok)
	assert.Equal(t, 2, v)
	_, ok = store.Get("n_chans")
	assert.False(t, ok)
	assert.Equal(t, []string{"cbf_flags_xeng_raw", "cbf_n_chans"}, store.Keys())

	store.Set("cbf_n_chans", 8)
	v, _ = store.Get("cbf_n_chans")
	assert.Equal(t, 8, v)
	assert.Equal(t, "x", NewMemoryStore(logger.WithField("test", t.Name()), "").Key("x"))
}

func TestMemoryStoreConcurrentFirstWriterWins(t *testing.T) {
	store := NewMemoryStore(logger.WithField("test", t.Name()), "cbf")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.PublishMetadata("sync_time", n, false)
		}(i)
	}
	wg.Wait()
	first, ok := store.Get("cbf_sync_time")
	assert.True(t, ok)
	for i := 0; i < 8; i++ {
		store.PublishMetadata("sync_time", i, false)
	}
	again, _ := store.Get("cbf_sync_time")
	assert.Equal(t, first, again)
}

func TestSensorMatcher(t *testing.T) {
	matcher, err := NewSensorMatcher(nil)
	assert.NoError(t, err)
	assert.True(t, matcher.IsSensor("flags_xeng_raw"))
	assert.True(t, matcher.IsSensor("eq_coef_m000h"))
	assert.False(t, matcher.IsSensor("n_chans"))
	assert.False(t, matcher.IsSensor("flags_xeng_raw_2"))
	assert.Equal(t, "flags_xeng_raw, eq_coef_*", matcher.String())

	custom, cerr := NewSensorMatcher([]string{"*_status"})
	assert.NoError(t, cerr)
	assert.True(t, custom.IsSensor("fft_status"))
	assert.False(t, custom.IsSensor("flags_xeng_raw"))

	_, berr := NewSensorMatcher([]string{"ok", "[unclosed"})
	assert.ErrorContains(t, berr, "[1] '[unclosed': ")
}

type storeConfigDoc struct {
	Store bconfig.AttrStoreConfigHolder `yaml:"store"`
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state.yml")
	savePath := filepath.Join(dir, "saved.yml")
	assert.NoError(t, os.WriteFile(path, []byte("cbf_n_chans: 4096\ncbf_sync_time: 1500000000.5\n"), 0o644))

	doc := storeConfigDoc{}
	assert.NoError(t, util.UnmarshalYamlString("store:\n  type: file\n  path: "+path+"\n  savePath: "+savePath+"\n", &doc))
	assert.True(t, doc.Store.IsSet())
	assert.NoError(t, doc.Store.Value.VerifyConfig())

	store, err := doc.Store.Value.NewStateStore(logger.WithField("test", t.Name()), "cbf")
	assert.NoError(t, err)
	v, ok := store.Get("cbf_n_chans")
	assert.True(t, ok)
	assert.Equal(t, 4096, v)
	store.PublishMetadata("n_chans", 8, false)
	store.PublishMetadata("bandwidth", 856e6, false)

	assert.NoError(t, store.(*FileStore).Close())
	saved := make(map[string]interface{})
	assert.NoError(t, util.UnmarshalYamlFile(savePath, &saved))
	assert.Equal(t, map[string]interface{}{
		"cbf_n_chans":   4096,
		"cbf_sync_time": 1500000000.5,
		"cbf_bandwidth": 856e6,
	}, saved)

	missing := &FileConfig{Path: filepath.Join(dir, "missing.yml")}
	assert.ErrorContains(t, missing.VerifyConfig(), ".path: ")
	assert.EqualError(t, (&FileConfig{}).VerifyConfig(), ".path is empty")
}

func TestMemoryConfig(t *testing.T) {
	doc := storeConfigDoc{}
	assert.NoError(t, util.UnmarshalYamlString(`
store:
  type: memory
  values:
    cbf_n_accs: 408
`, &doc))
	store, err := doc.Store.Value.NewStateStore(logger.WithField("test", t.Name()), "cbf")
	assert.NoError(t, err)
	v, ok := store.Get("cbf_n_accs")
	assert.True(t, ok)
	assert.Equal(t, 408, v)
}
