package device

import (
	"bytes"
	stdjson "encoding/json"
	"errors"

	jsoniter "github.com/json-iterator/go"
)

var (
	errUnexpectedLatestShot = errors.New("Unexpected response format for latest shot")
	errUnexpectedUploadID   = errors.New("Unexpected response format for uploaded shot")
)

// shape pairs a name with a pure extractor over a decoded response body.
type shape struct {
	name    string
	extract func(v any) (string, bool)
}

// latestShotShapes lists the bodies seen from /api/shots/latest, most
// common first.
var latestShotShapes = []shape{
	{name: "array of {lastShotId}", extract: firstLastShotID},
	{name: "bare string", extract: bareString},
	{name: "object with lastShotId or id", extract: objectShotID},
}

// uploadIDShapes lists the bodies accepted as the id of an uploaded shot.
var uploadIDShapes = []shape{
	{name: "bare string", extract: bareString},
	{name: "bare number", extract: bareNumber},
}

// matchShape applies shapes in order; the first match wins.
func matchShape(body []byte, shapes []shape, noMatch error) (string, error) {
	v := decodeLoose(body)
	for _, s := range shapes {
		if id, ok := s.extract(v); ok {
			return id, nil
		}
	}
	return "", noMatch
}

// decodeLoose decodes body as JSON. Text that is not JSON is returned as a
// plain string, and an empty body as nil.
func decodeLoose(body []byte) any {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return string(body)
	}
	return v
}

func firstLastShotID(v any) (string, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) == 0 {
		return "", false
	}
	obj, ok := arr[0].(map[string]any)
	if !ok {
		return "", false
	}
	return idValue(obj["lastShotId"])
}

func bareString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok && s != ""
}

func bareNumber(v any) (string, bool) {
	switch n := v.(type) {
	case stdjson.Number:
		return n.String(), true
	case jsoniter.Number:
		return n.String(), true
	default:
		return "", false
	}
}

func objectShotID(v any) (string, bool) {
	obj, ok := v.(map[string]any)
	if !ok {
		return "", false
	}
	if id, ok := idValue(obj["lastShotId"]); ok {
		return id, true
	}
	return idValue(obj["id"])
}

// idValue accepts non-empty strings and numbers.
func idValue(v any) (string, bool) {
	if id, ok := bareString(v); ok {
		return id, true
	}
	return bareNumber(v)
}
