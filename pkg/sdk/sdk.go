package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const CTJSON string = "application/json"

var ErrUnexpectedResponse = errors.New("unexpected response code")

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// Status reports the phase and progress of the run.
	//
	// example:
	//  status, _ := sdk.Status()
	//  fmt.Println(status.Phase, status.Round)
	Status() (Status, error)

	// ListRounds lists completed rounds in ascending order.
	//
	// example:
	//  page, _ := sdk.ListRounds(0, 10)
	//  fmt.Println(page.Total)
	ListRounds(offset, limit uint64) (RoundPage, error)

	// GetRound gets the record of a completed round.
	//
	// example:
	//  round, _ := sdk.GetRound(3)
	//  fmt.Println(round.AvgGlobalAccuracy)
	GetRound(round int) (Round, error)

	// GetModel gets the current global model.
	//
	// example:
	//  model, _ := sdk.GetModel()
	//  fmt.Println(model.Parameters)
	GetModel() (Model, error)

	// ListSessions lists every participant session of the run.
	//
	// example:
	//  sessions, _ := sdk.ListSessions()
	//  fmt.Println(sessions.Total)
	ListSessions() (SessionPage, error)
}

type fedSDK struct {
	coordinatorURL string
	client         *http.Client
}

type Config struct {
	CoordinatorURL  string
	TLSVerification bool
	Timeout         time.Duration
}

func NewSDK(cfg Config) SDK {
	return &fedSDK{
		coordinatorURL: cfg.CoordinatorURL,
		client: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

// APIError carries the status code and message of a failed request.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: %d", ErrUnexpectedResponse, e.StatusCode)
	}

	return fmt.Sprintf("%s: %d: %s", ErrUnexpectedResponse, e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	return ErrUnexpectedResponse
}

func (sdk *fedSDK) get(endpoint string, query url.Values, out any) error {
	reqURL := sdk.coordinatorURL + endpoint
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	body, err := sdk.processRequest(http.MethodGet, reqURL, nil, http.StatusOK)
	if err != nil {
		return err
	}

	return json.Unmarshal(body, out)
}

func (sdk *fedSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var res struct {
			Err string `json:"error"`
		}
		if json.Unmarshal(body, &res) == nil {
			apiErr.Message = res.Err
		}

		return []byte{}, apiErr
	}

	return body, nil
}

func pageQuery(offset, limit uint64) url.Values {
	q := url.Values{}
	q.Set("offset", strconv.FormatUint(offset, 10))
	if limit > 0 {
		q.Set("limit", strconv.FormatUint(limit, 10))
	}

	return q
}
