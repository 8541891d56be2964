package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"

	"github.com/bitrise-io/go-utils/retry"
	"github.com/bitrise-io/go-utils/v2/log"
)

// TokenHeader carries the collector's API token.
const TokenHeader = "FEP_API_TOKEN"

// ClientAPI ...
type ClientAPI interface {
	CreateReport(params CreateReportParameters) (CreateReportResponse, error)
	UploadAsset(url, path, contentType string) error
	FinishReport(identifier string, allAssetsUploaded bool) error
}

// HTTPClient ...
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ResultReportClient talks to the result report endpoints of the collector.
type ResultReportClient struct {
	logger     log.Logger
	httpClient HTTPClient
	endpoint   string
	authToken  string
}

// NewClient ...
func NewClient(endpoint, authToken string, logger log.Logger) *ResultReportClient {
	httpClient := retry.NewHTTPClient().StandardClient()

	return &ResultReportClient{
		logger:     logger,
		httpClient: httpClient,
		endpoint:   endpoint,
		authToken:  authToken,
	}
}

// CreateReport ...
func (t *ResultReportClient) CreateReport(params CreateReportParameters) (CreateReportResponse, error) {
	url := fmt.Sprintf("%s/result_reports.json", t.endpoint)

	body, err := json.Marshal(params)
	if err != nil {
		return CreateReportResponse{}, err
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return CreateReportResponse{}, err
	}

	respBody, err := t.perform(req, true)
	if err != nil {
		return CreateReportResponse{}, err
	}

	var response CreateReportResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return CreateReportResponse{}, err
	}

	return response, nil
}

// UploadAsset puts the file at path to the presigned url.
func (t *ResultReportClient) UploadAsset(url, path, contentType string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read asset (%s): %w", path, err)
	}

	req, err := http.NewRequest(http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to upload asset (%s): %w", path, err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Warnf("Failed to close response body: %s", err)
		}
	}()

	if resp.StatusCode >= 300 || resp.StatusCode < 200 {
		return fmt.Errorf("failed to upload asset (%s): status code should be 2xx (%d)", path, resp.StatusCode)
	}

	return nil
}

// FinishReport ...
func (t *ResultReportClient) FinishReport(identifier string, allAssetsUploaded bool) error {
	url := fmt.Sprintf("%s/result_reports/%s.json", t.endpoint, identifier)

	type parameters struct {
		Uploaded bool `json:"is_uploaded"`
	}
	params := parameters{Uploaded: allAssetsUploaded}

	body, err := json.Marshal(params)
	if err != nil {
		return err
	}

	req, err := http.NewRequest(http.MethodPatch, url, bytes.NewBuffer(body))
	if err != nil {
		return err
	}

	_, err = t.perform(req, false)
	return err
}

func (t *ResultReportClient) perform(request *http.Request, dumpBody bool) ([]byte, error) {
	request.Header.Set("Content-Type", "application/json; charset=UTF-8")
	// Header.Set canonizes the keys, so we need to set the token this way.
	request.Header[TokenHeader] = []string{t.authToken}

	dump, err := httputil.DumpRequest(request, false)
	if err != nil {
		t.logger.Warnf("Request dump failed: %s", err)
	} else {
		t.logger.Debugf("Request dump: %s", string(dump))
	}

	resp, err := t.httpClient.Do(request)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			t.logger.Warnf("Failed to close response body: %s", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if dumpBody {
		t.logger.Debugf("Response body: %s", string(body))
	}

	if resp.StatusCode >= 300 || resp.StatusCode < 200 {
		message, err := parseErrorMessage(body)
		if err != nil {
			t.logger.Warnf("Failed to parse error message from the response: %s", err)
		}

		return nil, fmt.Errorf("request to %s failed: status code should be 2xx (%d): %s", request.URL, resp.StatusCode, message)
	}

	return body, nil
}

func parseErrorMessage(body []byte) (string, error) {
	type errorResponse struct {
		Message string `json:"error_msg"`
	}

	var response errorResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", err
	}

	return response.Message, nil
}
