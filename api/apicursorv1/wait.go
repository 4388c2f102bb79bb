package apicursorv1

import (
	"context"
	"time"

	"github.com/fulldump/windowdb/cursor"
)

const maxWait = time.Minute

type waitInput struct {
	TimeoutMs int64 `json:"timeout_ms"`
}

type waitResponse struct {
	Changed bool  `json:"changed"`
	Count   int64 `json:"count"`
	Exact   bool  `json:"exact"`
}

// wait blocks until the cursor reports new rows or the timeout expires. A
// notification raised while nobody was waiting is delivered at once. When no
// background fill is running it answers immediately.
func wait(ctx context.Context, input *waitInput) (*waitResponse, error) {

	c, err := findCursor(ctx)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(input.TimeoutMs) * time.Millisecond
	if timeout <= 0 || timeout > maxWait {
		timeout = maxWait
	}

	changes, cancel := c.Notifier().Listen()
	defer cancel()

	result := &waitResponse{}

	if !c.Window().Filling {
		// nothing running, only a latched signal can be pending
		select {
		case <-changes:
			result.Changed = true
		default:
		}
		return fillWaitResponse(c.Window(), result), nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-changes:
		result.Changed = true
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	return fillWaitResponse(c.Window(), result), nil
}

func fillWaitResponse(info cursor.WindowInfo, result *waitResponse) *waitResponse {
	result.Count = info.Count
	result.Exact = info.Exact
	if result.Count < 0 {
		result.Count = 0
	}
	return result
}
