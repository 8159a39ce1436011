package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// HTTPVerifier delegates signature verification to the wallet authority over
// plain JSON. The authority owns the contract/recovery semantics.
type HTTPVerifier struct {
	endpoint string
	client   *http.Client
}

func NewHTTPVerifier(endpoint string) *HTTPVerifier {
	return &HTTPVerifier{
		endpoint: endpoint,
		client:   &http.Client{Timeout: time.Second * 5},
	}
}

func (v *HTTPVerifier) Verify(ctx context.Context, address, message, signature string) (bool, error) {
	body, err := json.Marshal(map[string]string{
		"address":   address,
		"message":   message,
		"signature": signature,
	})
	if err != nil {
		return false, fmt.Errorf("%w: %w", UnexpectedVerifierError, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %w", UnexpectedVerifierError, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := v.client.Do(req)
	if err != nil {
		return false, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return false, fmt.Errorf("%w: verifier returned status %d", UnexpectedVerifierError, res.StatusCode)
	}

	var out struct {
		Valid bool `json:"valid"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("%w: %w", UnexpectedVerifierError, err)
	}
	return out.Valid, nil
}
