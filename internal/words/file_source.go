package words

import (
	"encoding/json"
	"fmt"
	"os"
)

// FileSource reads word pools from JSON files, each holding a flat array of
// strings. This is the production source.
type FileSource struct {
	RegularPath string
	YoPath      string
}

func (s FileSource) RegularWords() ([]string, error) {
	return readWordFile(s.RegularPath)
}

func (s FileSource) YoWords() ([]string, error) {
	return readWordFile(s.YoPath)
}

func readWordFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("words: cannot read %s: %w", path, err)
	}
	var out []string
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("words: cannot parse %s: %w", path, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("words: %s contains no words", path)
	}
	return out, nil
}
