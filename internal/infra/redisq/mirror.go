package redisq

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"jobq/internal/domain"
	"jobq/internal/ports"
)

var _ ports.StateMirror = (*Client)(nil)

func Key(id string) string { return fmt.Sprintf("job:%s", id) }

// SaveState writes the job as a hash in one transaction, dropping optional
// fields that no longer apply to the current state.
func (c *Client) SaveState(ctx context.Context, j domain.Job) error {
	key := Key(j.ID)
	set, stale := fields(j)
	_, err := c.Rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(stale) > 0 {
			pipe.HDel(ctx, key, stale...)
		}
		pipe.HSet(ctx, key, set)
		return nil
	})
	return err
}

func (c *Client) Delete(ctx context.Context, id string) error {
	return c.Rdb.Del(ctx, Key(id)).Err()
}

// fields returns the hash fields to set and the optional ones to delete.
func fields(j domain.Job) (map[string]any, []string) {
	m := map[string]any{
		"queue":        j.Queue,
		"name":         j.Name,
		"type":         string(j.Type),
		"status":       string(j.Status),
		"priority":     string(j.Priority),
		"attempts":     j.Attempts,
		"max_attempts": j.MaxAttempts,
		"progress":     j.Progress,
		"created_at":   j.CreatedAt.UnixMilli(),
	}
	var stale []string
	if j.Error != "" {
		m["error"] = j.Error
	} else {
		stale = append(stale, "error")
	}
	if j.ProcessAt != nil {
		m["process_at"] = j.ProcessAt.UnixMilli()
	} else {
		stale = append(stale, "process_at")
	}
	if at, ok := j.FinishedAt(); ok {
		m["finished_at"] = at.UnixMilli()
	} else {
		stale = append(stale, "finished_at")
	}
	for k, v := range j.Data {
		m["payload:"+k] = payloadValue(v)
	}
	return m, stale
}

// payloadValue flattens v into something HSET accepts.
func payloadValue(v any) any {
	switch v := v.(type) {
	case string, bool, int, int64, float64:
		return v
	case nil:
		return ""
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
