package pairs

import (
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// codec encodes the pair document, a list of SyncPairConfig objects.
type codec interface {
	encode(pairs []SyncPairConfig) ([]byte, error)
	decode(data []byte) ([]SyncPairConfig, error)
}

// codecFor picks YAML for .yaml/.yml files and JSON for everything else.
func codecFor(path string) codec {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return yamlCodec{}
	default:
		return jsonCodec{}
	}
}

type jsonCodec struct{}

func (jsonCodec) encode(pairs []SyncPairConfig) ([]byte, error) {
	if pairs == nil {
		pairs = []SyncPairConfig{}
	}
	data, err := jsonMarshalIndent(pairs, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

func (jsonCodec) decode(data []byte) ([]SyncPairConfig, error) {
	var pairs []SyncPairConfig
	if err := jsonUnmarshal(data, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}

type yamlCodec struct{}

func (yamlCodec) encode(pairs []SyncPairConfig) ([]byte, error) {
	if pairs == nil {
		pairs = []SyncPairConfig{}
	}
	return yaml.Marshal(pairs)
}

func (yamlCodec) decode(data []byte) ([]SyncPairConfig, error) {
	var pairs []SyncPairConfig
	if err := yaml.Unmarshal(data, &pairs); err != nil {
		return nil, err
	}
	return pairs, nil
}
