package apicollectionv1

import (
	"fmt"

	"github.com/SierraSoftworks/connor"
	json2 "github.com/go-json-experiment/json"

	"github.com/fulldump/windowdb/collection"
	"github.com/fulldump/windowdb/service"
)

type traverseOptions struct {
	Filter map[string]any `json:"filter"`
	Skip   int64          `json:"skip"`
	Limit  int64          `json:"limit"`
}

// collectRows returns copies of the rows matching the filter. Rows are
// collected first so callers can modify the collection afterwards. A negative
// limit means no limit, zero means one row.
func collectRows(col *collection.Collection, options traverseOptions) ([]*collection.Row, error) {

	if options.Skip < 0 {
		return nil, fmt.Errorf("%w: negative skip", service.ErrorInvalidInput)
	}

	limit := options.Limit
	if limit == 0 {
		limit = 1
	}
	skip := options.Skip
	hasFilter := len(options.Filter) > 0

	var matchErr error
	result := []*collection.Row{}
	col.Traverse(func(row *collection.Row) bool {
		if limit == 0 {
			return false
		}

		if hasFilter {
			rowData := map[string]any{}
			if err := json2.Unmarshal(row.Payload, &rowData); err != nil {
				return true
			}
			match, err := connor.Match(options.Filter, rowData)
			if err != nil {
				matchErr = fmt.Errorf("%w: match: %s", service.ErrorInvalidInput, err.Error())
				return false
			}
			if !match {
				return true
			}
		}

		if skip > 0 {
			skip--
			return true
		}

		limit--
		result = append(result, row)
		return true
	})

	return result, matchErr
}
