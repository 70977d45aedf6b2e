package dataset

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"edurisk-engine/internal/schema"
)

// Client fetches student snapshots and labeled training data from the
// institutional record API. The engine only validates attribute domains; the
// record source owns storage and authentication of the data itself.
type Client struct {
	base   string
	apiKey string
	rest   *resty.Client
}

func NewClient(base, apiKey string, timeout time.Duration) *Client {
	r := resty.New()
	if timeout > 0 {
		r.SetTimeout(timeout)
	} else {
		r.SetTimeout(5 * time.Second) // default fallback
	}
	return &Client{base: base, apiKey: apiKey, rest: r}
}

type studentResp struct {
	Code   int                  `json:"code"`
	Msg    string               `json:"msg"`
	Record schema.StudentRecord `json:"record"`
}

type datasetResp struct {
	Code    int                    `json:"code"`
	Msg     string                 `json:"msg"`
	Version string                 `json:"version"`
	Records []schema.LabeledRecord `json:"records"`
}

// FetchStudent retrieves the current snapshot for one student and validates
// it against the declared attribute domains before handing it to scoring.
func (c *Client) FetchStudent(ctx context.Context, studentID string) (schema.StudentRecord, error) {
	resp := &studentResp{}
	_, err := c.rest.R().
		SetContext(ctx).
		SetHeader("api-key", c.apiKey).
		SetResult(resp).
		Get(fmt.Sprintf("%s/api/v1/students/%s", c.base, studentID))
	if err != nil {
		return schema.StudentRecord{}, fmt.Errorf("fetch student %s: %w", studentID, err)
	}
	if resp.Code != 0 {
		return schema.StudentRecord{}, fmt.Errorf("record source: %d %s", resp.Code, resp.Msg)
	}
	if err := resp.Record.Validate(); err != nil {
		return schema.StudentRecord{}, err
	}
	return resp.Record, nil
}

// FetchTrainingDataset retrieves the full labeled history for a retrain.
// Every row is domain-validated; a single bad row rejects the fetch so the
// pipeline never trains on silently coerced data.
func (c *Client) FetchTrainingDataset(ctx context.Context) (*Dataset, error) {
	resp := &datasetResp{}
	_, err := c.rest.R().
		SetContext(ctx).
		SetHeader("api-key", c.apiKey).
		SetResult(resp).
		Get(c.base + "/api/v1/training/records")
	if err != nil {
		return nil, fmt.Errorf("fetch training dataset: %w", err)
	}
	if resp.Code != 0 {
		return nil, fmt.Errorf("record source: %d %s", resp.Code, resp.Msg)
	}
	if len(resp.Records) == 0 {
		return nil, fmt.Errorf("record source returned empty training dataset")
	}

	for i, lr := range resp.Records {
		if err := lr.Record.Validate(); err != nil {
			return nil, fmt.Errorf("training record %d: %w", i, err)
		}
		if !lr.Outcome.Valid() {
			return nil, fmt.Errorf("training record %d: unknown outcome label %d", i, lr.Outcome)
		}
	}

	return &Dataset{Version: resp.Version, Records: resp.Records}, nil
}
