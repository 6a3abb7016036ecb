package remote

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-errors/errors"
)

// CheckRequest is what the update service expects for a version probe.
type CheckRequest struct {
	Platform       string `json:"platform"`
	CurrentVersion string `json:"currentVersion"`
}

// CheckResult is the update service's answer to a version probe.
type CheckResult struct {
	Success         bool   `json:"success"`
	Error           string `json:"error,omitempty"`
	UpdateAvailable bool   `json:"updateAvailable"`
	Version         string `json:"version,omitempty"`
	DownloadURL     string `json:"downloadUrl,omitempty"`
	FileName        string `json:"fileName,omitempty"`
	FileSize        int64  `json:"fileSize,omitempty"`
	Checksum        string `json:"checksum,omitempty"`
	ReleaseNotes    string `json:"releaseNotes,omitempty"`
}

// Checker asks a remote service whether a newer application version exists.
type Checker interface {
	Check(platform string, currentVersion string) (*CheckResult, error)
}

// HTTPChecker talks to the Roster update service over HTTPS with a bearer
// token issued to the installation.
type HTTPChecker struct {
	endpoint string
	token    string
	client   *http.Client
	log      Logger
}

// Compile time check for protocol compatibility
var _ Checker = (*HTTPChecker)(nil)

type HTTPCheckerConfig struct {
	Endpoint string
	Token    string
	Client   *http.Client
	Logger   Logger
}

func NewHTTPChecker(config *HTTPCheckerConfig) *HTTPChecker {
	checker := &HTTPChecker{
		endpoint: config.Endpoint,
		token:    config.Token,
		client:   config.Client,
		log:      config.Logger,
	}

	if checker.client == nil {
		checker.client = &http.Client{Timeout: 30 * time.Second}
	}

	if checker.log == nil {
		checker.log = noopLogger{}
	}

	return checker
}

func (c *HTTPChecker) Check(platform string, currentVersion string) (*CheckResult, error) {
	payload, err := json.Marshal(&CheckRequest{
		Platform:       platform,
		CurrentVersion: currentVersion,
	})
	if err != nil {
		return nil, errors.Errorf("Could not encode check request: %v", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, errors.Errorf("Could not create check request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	c.log.Debugf("Checking for updates on %v", c.endpoint)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, errors.Errorf("Could not reach update service: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("Update service answered with status %d", resp.StatusCode)
	}

	result := &CheckResult{}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return nil, errors.Errorf("Could not decode update service response: %v", err)
	}

	if !result.Success {
		message := result.Error
		if message == "" {
			message = "unknown error"
		}
		return nil, errors.Errorf("Update service reported a failure: %v", message)
	}

	return result, nil
}
