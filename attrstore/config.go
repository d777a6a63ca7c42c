package attrstore

import (
	"fmt"
	"os"

	"github.com/relex/gotils/logger"
	"github.com/ska-sa/cbf-ingest/base"
	"github.com/ska-sa/cbf-ingest/base/bconfig"
	"github.com/ska-sa/cbf-ingest/util"
)

func init() {
	bconfig.RegisterConfigConstructors(bconfig.AttrStoreConfigCreatorTable{
		"memory": func() bconfig.AttrStoreConfig { return &MemoryConfig{} },
		"file":   func() bconfig.AttrStoreConfig { return &FileConfig{} },
	})
}

// Register registers all state store config types
func Register() {
	// trigger init()
}

// MemoryConfig provides configuration for MemoryStore
type MemoryConfig struct {
	bconfig.Header `yaml:",inline"`
	Values         map[string]interface{} `yaml:"values"` // initial values by full key, e.g. "cbf_n_chans"
}

// NewStateStore creates a MemoryStore with the initial values
func (cfg *MemoryConfig) NewStateStore(parentLogger logger.Logger, prefix string) (base.StateStore, error) {
	store := NewMemoryStore(parentLogger, prefix)
	store.Load(cfg.Values)
	return store, nil
}

// VerifyConfig checks configuration
func (cfg *MemoryConfig) VerifyConfig() error {
	return nil
}

// FileConfig provides configuration for FileStore
type FileConfig struct {
	bconfig.Header `yaml:",inline"`
	Path           string `yaml:"path"`     // YAML file of initial values, e.g. a snapshot of telescope state
	SavePath       string `yaml:"savePath"` // file to save all values on close, empty to skip
}

// NewStateStore creates a FileStore loaded from .path
func (cfg *FileConfig) NewStateStore(parentLogger logger.Logger, prefix string) (base.StateStore, error) {
	store := &FileStore{
		MemoryStore: NewMemoryStore(parentLogger, prefix),
		savePath:    cfg.SavePath,
	}
	if err := store.LoadYamlFile(cfg.Path); err != nil {
		return nil, err
	}
	return store, nil
}

// VerifyConfig checks configuration
func (cfg *FileConfig) VerifyConfig() error {
	if cfg.Path == "" {
		return fmt.Errorf(".path is empty")
	}
	if _, err := os.Stat(cfg.Path); err != nil {
		return fmt.Errorf(".path: %w", err)
	}
	return nil
}

// FileStore is a MemoryStore loaded from a file, optionally saved to another file on close
type FileStore struct {
	*MemoryStore
	savePath string
}

// Close saves all values if a save path is configured
func (store *FileStore) Close() error {
	if store.savePath == "" {
		return nil
	}
	text, err := util.MarshalYaml(store.Snapshot())
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	if werr := os.WriteFile(store.savePath, []byte(text), 0o644); werr != nil {
		return fmt.Errorf("failed to save state: %w", werr)
	}
	store.logger.Infof("saved state to %s", store.savePath)
	return nil
}
