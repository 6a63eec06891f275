package notification

import (
	"bytes"
	"encoding/json"

	"github.com/aerodesk/aerodesk/internal/errors"
)

// EncodeCollection serializes a collection as indented JSON so the persisted
// value stays readable when inspected by hand.
func EncodeCollection(notifications []*Notification) ([]byte, error) {
	if notifications == nil {
		notifications = []*Notification{}
	}
	data, err := json.MarshalIndent(notifications, "", "  ")
	if err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryFileParsing).
			Context("operation", "encode_collection").
			Build()
	}
	return data, nil
}

// DecodeCollection parses a persisted collection. Blank input is an empty
// collection; anything unparseable is a file-parsing error.
func DecodeCollection(data []byte) ([]*Notification, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []*Notification{}, nil
	}
	var notifications []*Notification
	if err := json.Unmarshal(data, &notifications); err != nil {
		return nil, errors.New(err).
			Component("notification").
			Category(errors.CategoryFileParsing).
			Context("operation", "decode_collection").
			Context("bytes", len(data)).
			Build()
	}
	out := make([]*Notification, 0, len(notifications))
	for _, n := range notifications {
		if n != nil {
			out = append(out, n)
		}
	}
	return out, nil
}
