package seed

import (
	"bytes"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// File is the on-disk seed document.
type File struct {
	Actor string  `yaml:"actor"`
	Pages []Entry `yaml:"pages"`
}

// Entry describes one page in a seed file.
type Entry struct {
	URL        string      `yaml:"url"`
	Content    string      `yaml:"content"`
	Parameters []Parameter `yaml:"parameters"`
}

// Parameter is a seeded name/value pair.
type Parameter struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// Load reads and parses the seed file at path.
func Load(path string) (*File, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "reading seed file: %s", path)
	}

	file, err := Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, eris.Wrapf(err, "parsing seed file: %s", path)
	}

	return file, nil
}

// Parse decodes a seed document. Unknown fields are rejected.
func Parse(r io.Reader) (*File, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var file File
	if err := decoder.Decode(&file); err != nil {
		if eris.Is(err, io.EOF) {
			return &File{}, nil
		}
		return nil, eris.Wrap(err, "decoding yaml")
	}

	return &file, nil
}
