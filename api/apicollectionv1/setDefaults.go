package apicollectionv1

import (
	"context"
)

type setDefaultsInput map[string]any

// setDefaults merges the input into the current defaults, null values remove
// a default.
func setDefaults(ctx context.Context, input *setDefaultsInput) (map[string]any, error) {

	col, err := getOrCreateCollection(ctx)
	if err != nil {
		return nil, err
	}

	defaults := col.Defaults()
	if defaults == nil {
		defaults = map[string]any{}
	}
	for k, v := range *input {
		if v == nil {
			delete(defaults, k)
			continue
		}
		defaults[k] = v
	}

	if len(defaults) == 0 {
		defaults = nil
	}

	err = col.SetDefaults(defaults)
	if err != nil {
		return nil, err
	}

	return col.Defaults(), nil
}
