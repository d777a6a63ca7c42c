package bconfig

import (
	"fmt"
	"testing"

	"github.com/ska-sa/cbf-ingest/util"
	"github.com/stretchr/testify/assert"
)

type testPartConfig interface {
	BaseConfig
	Describe() string
}

type testAlphaConfig struct {
	Header `yaml:",inline"`
	Size   int `yaml:"size"`
}

func (cfg *testAlphaConfig) VerifyConfig() error {
	if cfg.Size <= 0 {
		return fmt.Errorf(".size must be positive")
	}
	return nil
}

func (cfg *testAlphaConfig) Describe() string {
	return fmt.Sprintf("alpha(%d)", cfg.Size)
}

type testDocument struct {
	Part ConfigHolder[testPartConfig] `yaml:"part"`
}

func init() {
	RegisterConfigConstructors(ConfigCreatorTable[testPartConfig]{
		"alpha": func() testPartConfig { return &testAlphaConfig{} },
	})
}

func TestConfigHolder(t *testing.T) {
	doc := testDocument{}
	assert.False(t, doc.Part.IsSet())
	assert.NoError(t, util.UnmarshalYamlString(`
part:
  type: alpha
  size: 3
`, &doc))
	assert.True(t, doc.Part.IsSet())
	assert.Equal(t, "alpha", doc.Part.Value.GetType())
	assert.Equal(t, "alpha(3)", doc.Part.Value.Describe())
	assert.NoError(t, doc.Part.Value.VerifyConfig())
	assert.Equal(t, "yaml line 3:3", doc.Part.Location)

	out, err := util.MarshalYaml(&doc)
	assert.NoError(t, err)
	assert.Equal(t, "part:\n  type: alpha\n  size: 3\n", out)
}

func TestConfigHolderErrors(t *testing.T) {
	doc := testDocument{}
	assert.ErrorContains(t, util.UnmarshalYamlString("part:\n  size: 3\n  type: alpha\n", &doc), ".type is not the first property")
	assert.ErrorContains(t, util.UnmarshalYamlString("part:\n  type: beta\n", &doc), ".type: unsupported 'beta', expected one of [alpha]")
	assert.ErrorContains(t, util.UnmarshalYamlString("part:\n  type: alpha\n  color: red\n", &doc), "field color not found")
	assert.ErrorContains(t, util.UnmarshalYamlString("part: alpha\n", &doc), "expected a mapping")
}

func TestConfigHolderVerify(t *testing.T) {
	doc := testDocument{}
	assert.EqualError(t, doc.Part.Verify(true), ": undefined")
	assert.NoError(t, doc.Part.Verify(false))
	assert.NoError(t, util.UnmarshalYamlString("part:\n  type: alpha\n  size: 0\n", &doc))
	assert.EqualError(t, doc.Part.Verify(false), ".size must be positive")
}
