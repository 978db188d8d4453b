// Package crdt defines the page draft codec contract. The collaborative
// document engine owns the update format; this engine only consumes the
// decoded {title, nodeIds, config} triple and produces its inverse for a
// freshly duplicated page.
package crdt

import "encoding/json"

// PageState is the decoded draft of a page.
type PageState struct {
	Title   string         `json:"title"`
	NodeIDs []string       `json:"nodeIds"`
	Config  map[string]any `json:"config,omitempty"`
}

type Codec interface {
	Decode(data []byte) (*PageState, error)
	Encode(state *PageState) ([]byte, error)
}

// JSONCodec reads and writes page state as plain JSON. Deployments with a
// real collaborative engine plug in its codec instead.
type JSONCodec struct{}

func NewJSONCodec() JSONCodec { return JSONCodec{} }

func (JSONCodec) Decode(data []byte) (*PageState, error) {
	state := &PageState{}
	if len(data) == 0 {
		return state, nil
	}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, err
	}
	return state, nil
}

func (JSONCodec) Encode(state *PageState) ([]byte, error) {
	return json.Marshal(state)
}
