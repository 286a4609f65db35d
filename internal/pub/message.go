package pub

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"reflect"
	"unicode/utf8"
)

// AttributesKey is the reserved message key carrying string metadata.
const AttributesKey = "attributes"

// Message is a single publishable message: arbitrary JSON-serializable values keyed
// by string, with optional metadata under AttributesKey.
type Message map[string]any

// WireMessage is the envelope the broker expects for each message.
type WireMessage struct {
	Data       string            `json:"data"`
	Attributes map[string]string `json:"attributes"`
}

// PublishRequest is the body of a publish call.
type PublishRequest struct {
	Messages []WireMessage `json:"messages"`
}

// Result is the broker's parsed response to a publish call.
type Result struct {
	// MessageIDs holds the string identifiers under "messageIds", in request order.
	// Entries of any other JSON type are skipped here and only remain in Body, so
	// MessageIDs can be shorter than the batch.
	MessageIDs []string
	// Body is the full response body as returned by the broker.
	Body map[string]any
}

// Attributes returns the message metadata, or an empty map when the message has none.
func (m Message) Attributes() (map[string]string, error) {
	raw, ok := m[AttributesKey]
	if !ok || raw == nil {
		return map[string]string{}, nil
	}

	switch attrs := raw.(type) {
	case map[string]string:
		out := make(map[string]string, len(attrs))
		for k, v := range attrs {
			out[k] = v
		}
		return out, nil
	case map[string]any:
		out := make(map[string]string, len(attrs))
		for k, v := range attrs {
			switch v := v.(type) {
			case nil:
			case string:
				out[k] = v
			default:
				out[k] = fmt.Sprint(v)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: got %T", ErrInvalidAttributes, raw)
	}
}

// Data returns the message with the attributes key removed.
func (m Message) Data() Message {
	data := make(Message, len(m))
	for k, v := range m {
		if k == AttributesKey {
			continue
		}
		data[k] = v
	}
	return data
}

// Encode converts the message to its wire representation.
func (m Message) Encode() (WireMessage, error) {
	attrs, err := m.Attributes()
	if err != nil {
		return WireMessage{}, err
	}
	for k, v := range attrs {
		if !utf8.ValidString(k) || !utf8.ValidString(v) {
			return WireMessage{}, fmt.Errorf("%w: attribute %q", ErrInvalidUTF8, k)
		}
	}

	data := m.Data()
	if err := checkUTF8(reflect.ValueOf(data), "", 0); err != nil {
		return WireMessage{}, err
	}

	b, err := json.Marshal(data)
	if err != nil {
		return WireMessage{}, err
	}

	return WireMessage{
		Data:       base64.StdEncoding.EncodeToString(b),
		Attributes: attrs,
	}, nil
}

// checkUTF8 rejects strings json.Marshal would silently rewrite to U+FFFD.
// Values implementing json.Marshaler produce their own bytes and are not inspected;
// past maxCheckDepth the value is left to json.Marshal, which reports cycles.
func checkUTF8(v reflect.Value, path string, depth int) error {
	if !v.IsValid() || depth > maxCheckDepth {
		return nil
	}
	if t := v.Type(); t.Implements(marshalerType) || reflect.PointerTo(t).Implements(marshalerType) {
		return nil
	}

	switch v.Kind() {
	case reflect.String:
		if !utf8.ValidString(v.String()) {
			return fmt.Errorf("%w: value at %q", ErrInvalidUTF8, path)
		}
	case reflect.Interface, reflect.Pointer:
		if v.IsNil() {
			return nil
		}
		return checkUTF8(v.Elem(), path, depth+1)
	case reflect.Map:
		iter := v.MapRange()
		for iter.Next() {
			key := fmt.Sprint(iter.Key().Interface())
			if iter.Key().Kind() == reflect.String && !utf8.ValidString(key) {
				return fmt.Errorf("%w: key %q", ErrInvalidUTF8, key)
			}
			if err := checkUTF8(iter.Value(), path+"/"+key, depth+1); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		// []byte is sent as base64
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := checkUTF8(v.Index(i), fmt.Sprintf("%s/%d", path, i), depth+1); err != nil {
				return err
			}
		}
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			f := t.Field(i)
			if !f.IsExported() || f.Tag.Get("json") == "-" {
				continue
			}
			if err := checkUTF8(v.Field(i), path+"/"+f.Name, depth+1); err != nil {
				return err
			}
		}
	}

	return nil
}

const maxCheckDepth = 1000

var marshalerType = reflect.TypeFor[json.Marshaler]()

// Decode reverses Encode, returning the message data without attributes.
func (w WireMessage) Decode() (Message, error) {
	b, err := base64.StdEncoding.DecodeString(w.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 data: %w", err)
	}

	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message data: %w", err)
	}

	return m, nil
}

// NewPublishRequest encodes messages in order into a publish request body.
func NewPublishRequest(messages ...Message) (PublishRequest, error) {
	req := PublishRequest{Messages: make([]WireMessage, 0, len(messages))}
	for i, m := range messages {
		w, err := m.Encode()
		if err != nil {
			return PublishRequest{}, fmt.Errorf("failed to encode message %d: %w", i, err)
		}
		req.Messages = append(req.Messages, w)
	}

	return req, nil
}
