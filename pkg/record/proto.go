// ABOUTME: Conversion between records and google.protobuf.Struct
// ABOUTME: Used on the wire by the collections service

package record

import (
	"fmt"

	"google.golang.org/protobuf/types/known/structpb"
)

// ToStruct encodes r as {"id": ..., "fields": {...}}.
func ToStruct(r Record) (*structpb.Struct, error) {
	fields, err := structpb.NewStruct(r.fields)
	if err != nil {
		return nil, fmt.Errorf("record %s: %w", r.ID, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"id":     structpb.NewStringValue(r.ID),
		"fields": structpb.NewStructValue(fields),
	}}, nil
}

// FromStruct decodes a record written by ToStruct. Numbers come back as
// float64.
func FromStruct(s *structpb.Struct) (Record, error) {
	if s == nil {
		return Record{}, fmt.Errorf("record: nil struct")
	}
	id := s.GetFields()["id"].GetStringValue()
	if id == "" {
		return Record{}, fmt.Errorf("record: missing id")
	}
	return New(id, s.GetFields()["fields"].GetStructValue().AsMap()), nil
}

// ListValue encodes records in order.
func ListValue(records []Record) (*structpb.Value, error) {
	values := make([]*structpb.Value, 0, len(records))
	for _, r := range records {
		s, err := ToStruct(r)
		if err != nil {
			return nil, err
		}
		values = append(values, structpb.NewStructValue(s))
	}
	return structpb.NewListValue(&structpb.ListValue{Values: values}), nil
}

// FromListValue decodes a list written by ListValue.
func FromListValue(v *structpb.Value) ([]Record, error) {
	values := v.GetListValue().GetValues()
	out := make([]Record, 0, len(values))
	for i, item := range values {
		r, err := FromStruct(item.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
