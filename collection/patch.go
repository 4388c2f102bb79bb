package collection

import (
	"fmt"
	"reflect"

	json2 "github.com/go-json-experiment/json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/fulldump/windowdb/utils"
)

// mergePatch applies a JSON merge patch to a document: nil removes a key,
// objects merge recursively and anything else replaces the value. It reports
// whether the document changed.
func mergePatch(payload []byte, patch map[string]any) ([]byte, bool, error) {
	return mergePatchAt(payload, "", patch)
}

func mergePatchAt(payload []byte, prefix string, patch map[string]any) ([]byte, bool, error) {
	changed := false
	for _, key := range utils.GetKeys(patch) {
		path := prefix + utils.EscapePath(key)
		current := gjson.GetBytes(payload, path)

		var err error
		switch value := patch[key].(type) {
		case nil:
			if !current.Exists() {
				continue
			}
			payload, err = sjson.DeleteBytes(payload, path)
			changed = true

		case map[string]any:
			if !current.IsObject() {
				payload, err = sjson.SetBytes(payload, path, map[string]any{})
				changed = true
				if err != nil {
					break
				}
			}
			var nested bool
			payload, nested, err = mergePatchAt(payload, path+".", value)
			changed = changed || nested

		default:
			if current.Exists() && sameValue(current, value) {
				continue
			}
			var raw []byte
			raw, err = json2.Marshal(value, json2.Deterministic(true))
			if err != nil {
				break
			}
			payload, err = sjson.SetRawBytes(payload, path, raw)
			changed = true
		}
		if err != nil {
			return nil, false, fmt.Errorf("patch '%s': %w", path, err)
		}
	}

	return payload, changed, nil
}

func sameValue(current gjson.Result, value any) bool {
	var decoded any
	if err := json2.Unmarshal([]byte(current.Raw), &decoded); err != nil {
		return false
	}
	var normalized any
	raw, err := json2.Marshal(value)
	if err != nil {
		return false
	}
	if err := json2.Unmarshal(raw, &normalized); err != nil {
		return false
	}
	return reflect.DeepEqual(decoded, normalized)
}
