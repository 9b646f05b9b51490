package remote

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/savan1304/FindMyLeaseApp/pkg/record"
)

// ErrBadMessage indicates a request or response missing a required field
var ErrBadMessage = errors.New("remote: malformed message")

// NewPutRequest builds {collection, record}
func NewPutRequest(collection string, r record.Record) (*structpb.Struct, error) {
	rs, err := record.ToStruct(r)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldCollection: structpb.NewStringValue(collection),
		FieldRecord:     structpb.NewStructValue(rs),
	}}, nil
}

// ParsePutRequest reads a Put request. A record without an id is allowed;
// the server assigns one.
func ParsePutRequest(in *structpb.Struct) (string, record.Record, error) {
	rs := in.GetFields()[FieldRecord].GetStructValue()
	if rs == nil {
		return "", record.Record{}, fmt.Errorf("%w: record is required", ErrBadMessage)
	}
	id := rs.GetFields()[FieldID].GetStringValue()
	fields := rs.GetFields()["fields"].GetStructValue().AsMap()
	return Collection(in), record.New(id, fields), nil
}

// NewDeleteRequest builds {collection, id}
func NewDeleteRequest(collection, id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldCollection: structpb.NewStringValue(collection),
		FieldID:         structpb.NewStringValue(id),
	}}
}

// NewCollectionRequest builds {collection} for List and Watch
func NewCollectionRequest(collection string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldCollection: structpb.NewStringValue(collection),
	}}
}

// Collection returns the collection field of a request
func Collection(in *structpb.Struct) string {
	return in.GetFields()[FieldCollection].GetStringValue()
}

// ID returns the id field of a message
func ID(in *structpb.Struct) string {
	return in.GetFields()[FieldID].GetStringValue()
}

// NewIDResponse builds {id}
func NewIDResponse(id string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldID: structpb.NewStringValue(id),
	}}
}

// NewRemovedResponse builds {removed}
func NewRemovedResponse(removed bool) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldRemoved: structpb.NewBoolValue(removed),
	}}
}

// NewRecordsMessage builds {records} for List responses and Watch events
func NewRecordsMessage(records []record.Record) (*structpb.Struct, error) {
	list, err := record.ListValue(records)
	if err != nil {
		return nil, err
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldRecords: list,
	}}, nil
}

// Records decodes the records field of a message
func Records(in *structpb.Struct) ([]record.Record, error) {
	return record.FromListValue(in.GetFields()[FieldRecords])
}
