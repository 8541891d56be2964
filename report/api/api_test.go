package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/bitrise-io/go-utils/v2/log"
	"github.com/fep-sdk/fep-harness/report/api/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	authToken = "auth-token"
	endpoint  = "endpoint"
)

func TestCreateReport(t *testing.T) {
	tests := []struct {
		name               string
		params             CreateReportParameters
		responseStatusCode int
		responseBody       string
		wantError          bool
		expectedError      error
		expectedOutput     CreateReportResponse
	}{
		{
			name: "Successful request",
			params: CreateReportParameters{
				Title:    "results_Scenario_UsingDDB_LinuxDefault-202403070905",
				Category: "timeline",
				Assets: []CreateReportAsset{
					{
						RelativePath: "LinuxDefault_f1000b1024d10n9.csv",
						FileSize:     10,
						ContentType:  "text/csv; charset=utf-8",
					},
				},
			},
			responseStatusCode: 200,
			responseBody: `{
"id": "some-id",
"assets": [
	{
		"relative_path": "LinuxDefault_f1000b1024d10n9.csv",
		"upload_url": "http://test.test"
	}]
}`,
			wantError: false,
			expectedOutput: CreateReportResponse{
				Identifier: "some-id",
				AssetURLs: []CreateReportURL{
					{
						RelativePath: "LinuxDefault_f1000b1024d10n9.csv",
						URL:          "http://test.test",
					},
				},
			},
		},
		{
			name: "Handle failure",
			params: CreateReportParameters{
				Title: "another-title",
				Assets: []CreateReportAsset{
					{
						RelativePath: "plots.json",
						FileSize:     3,
						ContentType:  "application/json",
					},
				},
			},
			responseStatusCode: 301,
			responseBody:       "{\"error_msg\": \"There was an error\"}",
			wantError:          true,
			expectedError:      fmt.Errorf("request to %s/result_reports.json failed: status code should be 2xx (301): There was an error", endpoint),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiClient, mockHTTPClient := createSutAndMock(t)

			var request http.Request
			setupMockNetworking(t, mockHTTPClient, &request, tt.responseBody, tt.responseStatusCode)

			response, err := apiClient.CreateReport(tt.params)
			assert.Equal(t, fmt.Sprintf("%s/result_reports.json", endpoint), request.URL.String())
			assert.Equal(t, []string{authToken}, request.Header[TokenHeader]) //nolint:staticcheck // See ResultReportClient.perform()

			if tt.wantError {
				assert.Equal(t, tt.expectedError, err)
			} else {
				var received CreateReportParameters
				err = json.NewDecoder(request.Body).Decode(&received)
				assert.NoError(t, err)
				assert.Equal(t, tt.params, received)

				assert.Equal(t, tt.expectedOutput, response)
			}
		})
	}
}

func TestFinishReport(t *testing.T) {
	tests := []struct {
		name               string
		identifier         string
		allAssetsUploaded  bool
		responseStatusCode int
		responseBody       string
		wantError          bool
		expectedError      error
	}{
		{
			name:               "Successful request",
			identifier:         "report-id",
			allAssetsUploaded:  true,
			responseStatusCode: 200,
			responseBody:       "",
			wantError:          false,
		},
		{
			name:               "Handle failure",
			identifier:         "report-id",
			allAssetsUploaded:  false,
			responseStatusCode: 301,
			responseBody:       "{\"error_msg\": \"There was an error\"}",
			wantError:          true,
			expectedError:      fmt.Errorf("request to %s/result_reports/report-id.json failed: status code should be 2xx (301): There was an error", endpoint),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			apiClient, mockHTTPClient := createSutAndMock(t)

			var request http.Request
			setupMockNetworking(t, mockHTTPClient, &request, tt.responseBody, tt.responseStatusCode)

			err := apiClient.FinishReport(tt.identifier, tt.allAssetsUploaded)
			assert.Equal(t, fmt.Sprintf("%s/result_reports/%s.json", endpoint, tt.identifier), request.URL.String())
			assert.Equal(t, http.MethodPatch, request.Method)

			if tt.wantError {
				assert.Equal(t, tt.expectedError, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestUploadAsset(t *testing.T) {
	pth := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(pth, []byte("SignalName;SeqNr"), 0644))

	apiClient, mockHTTPClient := createSutAndMock(t)

	var request http.Request
	setupMockNetworking(t, mockHTTPClient, &request, "", 200)

	require.NoError(t, apiClient.UploadAsset("http://storage/results.csv", pth, "text/csv; charset=utf-8"))
	assert.Equal(t, http.MethodPut, request.Method)
	assert.Equal(t, "text/csv; charset=utf-8", request.Header.Get("Content-Type"))
	assert.Equal(t, int64(16), request.ContentLength)
	assert.Empty(t, request.Header[TokenHeader]) //nolint:staticcheck // presigned urls carry no token

	body, err := io.ReadAll(request.Body)
	require.NoError(t, err)
	assert.Equal(t, "SignalName;SeqNr", string(body))
}

func TestUploadAsset_Failure(t *testing.T) {
	pth := filepath.Join(t.TempDir(), "results.csv")
	require.NoError(t, os.WriteFile(pth, []byte("x"), 0644))

	apiClient, mockHTTPClient := createSutAndMock(t)
	setupMockNetworking(t, mockHTTPClient, nil, "", 403)

	err := apiClient.UploadAsset("http://storage/results.csv", pth, "text/csv")
	assert.EqualError(t, err, fmt.Sprintf("failed to upload asset (%s): status code should be 2xx (403)", pth))

	err = apiClient.UploadAsset("http://storage/missing.csv", filepath.Join(t.TempDir(), "missing.csv"), "text/csv")
	assert.Error(t, err)
}

func createSutAndMock(t *testing.T) (ResultReportClient, *mocks.HttpClient) {
	mockHTTPClient := mocks.NewHttpClient(t)
	client := ResultReportClient{
		logger:     log.NewLogger(),
		httpClient: mockHTTPClient,
		authToken:  authToken,
		endpoint:   endpoint,
	}

	return client, mockHTTPClient
}

func setupMockNetworking(t *testing.T, mockHTTPClient *mocks.HttpClient, request *http.Request, body string, statusCode int) {
	response := &http.Response{Body: io.NopCloser(bytes.NewReader([]byte(body)))}
	response.StatusCode = statusCode

	mockHTTPClient.On("Do", mock.Anything).Return(response, nil).Once().Run(func(args mock.Arguments) {
		value, ok := args.Get(0).(*http.Request)
		if !ok {
			require.Fail(t, "Failed to cast to http.Request")
		}

		response.Request = value
		if request != nil {
			*request = *value
		}
	})
}
