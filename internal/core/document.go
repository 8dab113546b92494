package core

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON writes a nil Streamer as {} and nil Comments as [] so an empty
// run still produces the full archive shape.
func (d Document) MarshalJSON() ([]byte, error) {
	var streamer any = struct{}{}
	if d.Streamer != nil {
		streamer = d.Streamer
	}
	comments := d.Comments
	if comments == nil {
		comments = []Comment{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(struct {
		Streamer     any       `json:"streamer"`
		Comments     []Comment `json:"comments"`
		EmbeddedData any       `json:"embeddedData"`
	}{streamer, comments, d.EmbeddedData})
	if err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
