package jobs

import (
	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/briangreenhill/tourguide/cache"
	"github.com/briangreenhill/tourguide/ranking"
)

const TaskWarmRankings = "routes:warm_rankings"

// RankedListKey is the cache namespace for ranked route lists
const RankedListKey = "routes:ranked"

type WarmRankingsPayload struct {
	Reason string `json:"reason,omitempty"`
}

// NewWarmRankingsTask builds the task that refills the ranked-list cache
func NewWarmRankingsTask(reason string) (*asynq.Task, error) {
	payload, err := json.Marshal(WarmRankingsPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskWarmRankings, payload), nil
}

// RankedKey is the cache key of the full route list ranked by field and dir
func RankedKey(field ranking.Field, dir ranking.Direction) string {
	return cache.KeyFor(RankedListKey, map[string]string{
		"sort":  string(field),
		"order": string(dir),
	})
}
