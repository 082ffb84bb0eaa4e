package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNoResponse is returned by LoadResponse when nothing is stored under the key.
var ErrNoResponse = errors.New("no stored response")

// StoredResponse is an API response kept for idempotent replay. Fingerprint
// is the hash of the request body that produced it.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType,omitempty"`
	Body        []byte `json:"body"`
	Fingerprint string `json:"fingerprint"`
}

// ResponseKey scopes a client-supplied Idempotency-Key to one route.
func (c *Client) ResponseKey(method, path, clientKey string) string {
	return key("idempotency", method+"|"+path, clientKey)
}

func (c *Client) LoadResponse(ctx context.Context, key string) (*StoredResponse, error) {
	raw, err := c.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoResponse
	}
	if err != nil {
		return nil, err
	}
	var stored StoredResponse
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		return nil, fmt.Errorf("decode stored response %s: %w", key, err)
	}
	if stored.Status == 0 {
		stored.Status = http.StatusOK
	}
	return &stored, nil
}

// SaveResponse stores resp unless another request already stored one under
// key; the first writer wins.
func (c *Client) SaveResponse(ctx context.Context, key string, resp StoredResponse, ttl time.Duration) (bool, error) {
	payload, err := json.Marshal(resp)
	if err != nil {
		return false, fmt.Errorf("encode stored response: %w", err)
	}
	return c.SetNX(ctx, key, string(payload), ttl)
}
