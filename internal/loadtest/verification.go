package loadtest

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/krpace/internal/domain/model"
)

// maxBoardLimit matches the server's default list cap.
const maxBoardLimit = 500

// verifyBoard fetches the board and checks every seeded key result on it:
// the current value is the value of its latest accepted check-in, progress
// is a clamped ratio and the pace status is a known bucket.
func verifyBoard(ctx context.Context, client *HTTPClient, seeds []seed, accepted *acceptedSet) (int, error) {
	var board listResponse[boardEntry]
	if _, err := client.do(ctx, http.MethodGet, "/board?limit="+strconv.Itoa(maxBoardLimit), nil, &board, http.StatusOK); err != nil {
		return 0, err
	}

	byID := make(map[string]boardEntry, len(board.Items))
	for _, e := range board.Items {
		byID[e.KeyResult.ID] = e
	}

	found := 0
	for _, s := range seeds {
		e, ok := byID[s.KeyResult.ID]
		if !ok {
			if len(board.Items) >= maxBoardLimit {
				continue
			}
			return found, fmt.Errorf("%w: %s missing from board", ErrVerification, s.KeyResult.ID)
		}
		found++

		if err := verifyEntry(s.KeyResult, e, accepted.of(s.KeyResult.ID)); err != nil {
			return found, err
		}
	}
	return found, nil
}

func verifyEntry(kr model.KeyResult, e boardEntry, accepted []model.CheckIn) error {
	want := kr.CurrentValue
	if ci, ok := latestCheckIn(accepted); ok {
		probe := kr
		probe.CurrentValue = ci.Value
		probe.Normalize()
		want = probe.CurrentValue
	}
	switch {
	case e.KeyResult.CurrentValue != want:
		return fmt.Errorf("%w: %s current value %v, want %v", ErrVerification, kr.ID, e.KeyResult.CurrentValue, want)
	case e.Progress.Progress < 0 || e.Progress.Progress > 1:
		return fmt.Errorf("%w: %s progress %v outside [0,1]", ErrVerification, kr.ID, e.Progress.Progress)
	case !knownStatus(e.Progress.PaceStatus):
		return fmt.Errorf("%w: %s unknown pace status %q", ErrVerification, kr.ID, e.Progress.PaceStatus)
	}
	return nil
}

// latestCheckIn picks the check-in with the greatest timestamp. Generated
// timestamps are evenly spaced and distinct per key result.
func latestCheckIn(list []model.CheckIn) (model.CheckIn, bool) {
	var (
		best   model.CheckIn
		bestAt time.Time
		found  bool
	)
	for _, ci := range list {
		at, ok := ci.Timestamp()
		if !ok {
			continue
		}
		if !found || at.After(bestAt) {
			best, bestAt, found = ci, at, true
		}
	}
	return best, found
}

func knownStatus(s string) bool {
	for _, st := range model.PaceStatuses {
		if string(st) == s {
			return true
		}
	}
	return false
}
