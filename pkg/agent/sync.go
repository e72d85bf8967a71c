package agent

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// batchGetPath asks the simulator webserver for every variable at once.
const batchGetPath = "/?Variable=WEBSERVER_BATCH_GET&value=*"

// syncOnce scrapes the simulator and pushes a signed snapshot to the relay.
func (a *Runner) syncOnce(ctx context.Context) error {
	values, err := a.fetchGameValues(ctx)
	if err != nil {
		return fmt.Errorf("fetch game state: %w", err)
	}
	payload := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"data":      values,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	mac := hmac.New(sha256.New, a.apiKey)
	mac.Write(body)
	signature := hex.EncodeToString(mac.Sum(nil))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.relay+"/api/state", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Signature", signature)
	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("post snapshot: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("post snapshot: %w", httpError(resp))
	}
	a.log.Debug("snapshot pushed", "keys", len(values))
	return nil
}

// fetchGameValues pulls the simulator's full variable dump and decodes
// any JSON-string-encoded nested values.
func (a *Runner) fetchGameValues(ctx context.Context) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.game+batchGetPath, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, httpError(resp)
	}
	var raw struct {
		Values map[string]any `json:"values"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode game payload: %w", err)
	}
	if raw.Values == nil {
		return nil, fmt.Errorf("unexpected payload structure from game webserver")
	}
	out := make(map[string]any, len(raw.Values))
	for k, v := range raw.Values {
		out[k] = deepParse(v)
	}
	return out, nil
}

// deepParse recursively decodes JSON-encoded strings the simulator nests
// inside its variable dump. A string that is not valid JSON is returned
// unchanged.
func deepParse(v any) any {
	switch val := v.(type) {
	case string:
		var decoded any
		if err := json.Unmarshal([]byte(val), &decoded); err != nil {
			return val
		}
		return deepParse(decoded)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = deepParse(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepParse(item)
		}
		return out
	default:
		return v
	}
}
