package rpc

import (
	"encoding/json"
	"fmt"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/table1837/eightysix/pkg/types"
)

// UpdateRequest is the decoded body of an Update call.
type UpdateRequest struct {
	Scope string
	types.Update
}

// SnapshotResponse is the decoded body of a Snapshot reply.
type SnapshotResponse struct {
	Scope string         `json:"scope"`
	Items []types.Record `json:"items"`
}

// ToStruct converts any JSON-encodable value into a Struct.
func ToStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("rpc: encode: %w", err)
	}
	s := &structpb.Struct{}
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("rpc: encode struct: %w", err)
	}
	return s, nil
}

// FromStruct decodes s into v through its JSON form.
func FromStruct(s *structpb.Struct, v any) error {
	if s == nil {
		s = &structpb.Struct{}
	}
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("rpc: decode struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("rpc: decode: %w", err)
	}
	return nil
}

// EncodeUpdate builds an Update request body.
func EncodeUpdate(scope string, u types.Update) (*structpb.Struct, error) {
	return ToStruct(map[string]string{
		"scope":    scope,
		"item_key": u.ItemKey,
		"status":   string(u.Status),
		"actor_id": u.ActorID,
		"reason":   u.Reason,
	})
}

// DecodeUpdate reads an Update request body. The legacy field aliases
// accepted by types.Update apply here too.
func DecodeUpdate(s *structpb.Struct) (UpdateRequest, error) {
	var req UpdateRequest
	if err := FromStruct(s, &req.Update); err != nil {
		return req, err
	}
	if v, ok := s.GetFields()["scope"]; ok {
		req.Scope = v.GetStringValue()
	}
	return req, nil
}

// EncodeSnapshotRequest builds a Snapshot request body.
func EncodeSnapshotRequest(scope string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"scope": structpb.NewStringValue(scope),
	}}
}

// ScopeOf returns the "scope" field of a request body, or "".
func ScopeOf(s *structpb.Struct) string {
	return s.GetFields()["scope"].GetStringValue()
}
