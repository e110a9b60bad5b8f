package audio

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// schemaFile is the on-disk layout of a sound schema document.
type schemaFile struct {
	Schemas map[string][]sampleEntry `yaml:"schemas"`
}

type sampleEntry struct {
	File      string `yaml:"file"`
	Frequency int    `yaml:"frequency"`
}

// speechFile is the on-disk layout of a speech database document.
type speechFile struct {
	Voices map[int]map[string][]speechEntry `yaml:"voices"`
}

type speechEntry struct {
	Schema string   `yaml:"schema"`
	Tags   []string `yaml:"tags"`
	Weight int      `yaml:"weight"`
}

// LoadSchemaFile reads a YAML sound schema document. Sample wav data
// is loaded from paths relative to the document.
func LoadSchemaFile(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc schemaFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing sound schema %s: %w", path, err)
	}

	root := filepath.Dir(path)
	schema := NewSchema()
	for name, entries := range doc.Schemas {
		for _, e := range entries {
			wav, err := os.ReadFile(filepath.Join(root, e.File))
			if err != nil {
				return nil, fmt.Errorf("sample %s: %w", e.File, err)
			}
			schema.Add(name, Sample{
				Name:      trimWavExt(e.File),
				Data:      wav,
				Frequency: e.Frequency,
			})
		}
	}
	return schema, nil
}

// LoadSpeechFile reads a YAML speech database document.
func LoadSpeechFile(path string) (*SpeechDB, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var doc speechFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing speech db %s: %w", path, err)
	}

	db := NewSpeechDB()
	for voice, concepts := range doc.Voices {
		for concept, entries := range concepts {
			for _, e := range entries {
				db.Add(voice, concept, SpeechLine{
					SchemaID: e.Schema,
					Tags:     e.Tags,
					Weight:   e.Weight,
				})
			}
		}
	}
	return db, nil
}

func trimWavExt(file string) string {
	base := filepath.Base(file)
	ext := filepath.Ext(base)
	return base[:len(base)-len(ext)]
}
