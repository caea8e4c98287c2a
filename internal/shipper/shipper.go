package shipper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cwship/cloudwatch-sumo-shipper/internal/model"
)

const defaultTimeout = 30 * time.Second

// Shipper delivers rendered records to the backend collector. It performs
// exactly one POST per call and never retries; failed batches are the
// caller's dead-letter concern.
type Shipper struct {
	endpoint string
	client   *http.Client
}

// New builds a Shipper for the given collector endpoint.
func New(endpoint string) *Shipper {
	return &Shipper{
		endpoint: endpoint,
		client:   &http.Client{Timeout: defaultTimeout},
	}
}

// Ship POSTs the records newline-joined to the collector. Any non-2xx
// response is a delivery failure.
func (s *Shipper) Ship(ctx context.Context, records []model.ShippableRecord) error {
	if len(records) == 0 {
		return nil
	}
	body := joinRecords(records)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build ship request: %w", err)
	}
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("ship %d records: %w", len(records), err)
	}
	defer resp.Body.Close()
	// Drain so the connection can be reused.
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("ship %d records: collector returned %s", len(records), resp.Status)
	}
	return nil
}

func joinRecords(records []model.ShippableRecord) []byte {
	parts := make([][]byte, len(records))
	for i, r := range records {
		parts[i] = []byte(r)
	}
	return bytes.Join(parts, []byte("\n"))
}
