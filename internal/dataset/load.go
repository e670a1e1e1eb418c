package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Answer is one annotated answer of a record. Start is a byte offset into
// the passage; when nil the answer text is searched for in the passage.
type Answer struct {
	Text  string `json:"text"`
	Start *int   `json:"start,omitempty"`
}

// Record is one raw question/passage/answers entry of a training file.
type Record struct {
	ID      string   `json:"id"`
	Passage string   `json:"passage"`
	Query   string   `json:"query"`
	Answers []Answer `json:"answers"`
}

type file struct {
	Data []Record `json:"data"`
}

// Load reads a training file.
func Load(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open data file: %w", err)
	}
	defer f.Close()

	records, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return records, nil
}

// Decode parses a training document of the form {"data": [record, ...]}.
func Decode(r io.Reader) ([]Record, error) {
	var doc file
	dec := json.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to parse data: %w", err)
	}
	if doc.Data == nil {
		return nil, fmt.Errorf("failed to parse data: missing \"data\" array")
	}
	return doc.Data, nil
}
