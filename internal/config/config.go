// Package config handles configuration loading and management
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ProxyConfig holds optional proxy routing settings for the transport.
type ProxyConfig struct {
	Enabled  bool
	Protocol ProxyProtocol
	Host     string
	Port     int
	Username string
	Password string
	// Bypass contains substring patterns; a target URL matching any of them
	// is requested directly instead of through the proxy.
	Bypass []string
}

// UploadConfig gates which artifact kinds are attached to the remote run.
type UploadConfig struct {
	Screenshots bool
	Videos      bool
	HAR         bool
	Traces      bool
	Logs        bool
}

// Config holds the application configuration.
type Config struct {
	Enabled      bool
	Organization string
	Project      string
	PAT          string
	APIVersion   string
	BaseURL      string

	// Fallback plan/suite applied when scenario tags carry none.
	PlanID  int
	SuiteID int

	RunName        string
	PublishMode    PublishMode
	RequestTimeout time.Duration
	RetryCount     int
	RetryDelay     time.Duration

	UpdateTestCases bool
	CreateBugOnFail bool
	BugAssignee     string
	Uploads         UploadConfig
	Proxy           ProxyConfig
}

// Load reads configuration from environment variables, the .env file, and the
// optional adopub.yaml overlay. Environment values win over YAML values.
func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		// It's okay if the file doesn't exist
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	overlay, err := loadOverlay(OverlayFilename)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", OverlayFilename, err)
	}

	cfg := &Config{
		Enabled:      getBool("ADO_ENABLED", overlay.boolOr("enabled", false)),
		Organization: getEnv("ADO_ORGANIZATION", overlay.stringOr("organization", "")),
		Project:      getEnv("ADO_PROJECT", overlay.stringOr("project", "")),
		PAT:          getEnv("ADO_PAT", overlay.stringOr("pat", "")),
		APIVersion:   getEnv("ADO_API_VERSION", overlay.stringOr("apiVersion", DefaultAPIVersion)),
		BaseURL:      getEnv("ADO_BASE_URL", overlay.stringOr("baseUrl", DefaultBaseURL)),
		RunName:      getEnv("ADO_RUN_NAME", overlay.stringOr("runName", "")),

		UpdateTestCases: getBool("ADO_UPDATE_TEST_CASES", overlay.boolOr("updateTestCases", true)),
		CreateBugOnFail: getBool("ADO_CREATE_BUG_ON_FAILURE", overlay.boolOr("createBugOnFailure", false)),
		BugAssignee:     getEnv("ADO_BUG_ASSIGNEE", overlay.stringOr("bugAssignee", "")),

		Uploads: UploadConfig{
			Screenshots: getBool("ADO_UPLOAD_SCREENSHOTS", overlay.boolOr("uploadScreenshots", true)),
			Videos:      getBool("ADO_UPLOAD_VIDEOS", overlay.boolOr("uploadVideos", false)),
			HAR:         getBool("ADO_UPLOAD_HAR", overlay.boolOr("uploadHar", false)),
			Traces:      getBool("ADO_UPLOAD_TRACES", overlay.boolOr("uploadTraces", false)),
			Logs:        getBool("ADO_UPLOAD_LOGS", overlay.boolOr("uploadLogs", false)),
		},
	}

	mode := getEnv("ADO_PUBLISH_MODE", overlay.stringOr("publishMode", string(PublishModeBatched)))
	switch PublishMode(strings.ToLower(mode)) {
	case PublishModeSequential:
		cfg.PublishMode = PublishModeSequential
	case PublishModeBatched:
		cfg.PublishMode = PublishModeBatched
	default:
		return nil, fmt.Errorf("invalid ADO_PUBLISH_MODE %q: must be sequential or batched", mode) //nolint:err113 // Include mode for debugging
	}

	// Parse numeric values
	planID, err := getInt("ADO_PLAN_ID", overlay.intOr("planId", 0))
	if err != nil {
		return nil, fmt.Errorf("invalid ADO_PLAN_ID: %w", err)
	}
	cfg.PlanID = planID

	suiteID, err := getInt("ADO_SUITE_ID", overlay.intOr("suiteId", 0))
	if err != nil {
		return nil, fmt.Errorf("invalid ADO_SUITE_ID: %w", err)
	}
	cfg.SuiteID = suiteID

	timeoutMS, err := getInt("ADO_REQUEST_TIMEOUT_MS", overlay.intOr("requestTimeoutMs", DefaultRequestTimeoutMS))
	if err != nil {
		return nil, fmt.Errorf("invalid ADO_REQUEST_TIMEOUT_MS: %w", err)
	}
	cfg.RequestTimeout = time.Duration(timeoutMS) * time.Millisecond

	retryCount, err := getInt("ADO_RETRY_COUNT", overlay.intOr("retryCount", DefaultRetryCount))
	if err != nil {
		return nil, fmt.Errorf("invalid ADO_RETRY_COUNT: %w", err)
	}
	if retryCount < 1 {
		retryCount = 1
	}
	cfg.RetryCount = retryCount

	retryDelayMS, err := getInt("ADO_RETRY_DELAY_MS", overlay.intOr("retryDelayMs", DefaultRetryDelayMS))
	if err != nil {
		return nil, fmt.Errorf("invalid ADO_RETRY_DELAY_MS: %w", err)
	}
	cfg.RetryDelay = time.Duration(retryDelayMS) * time.Millisecond

	proxy, err := loadProxy(overlay)
	if err != nil {
		return nil, err
	}
	cfg.Proxy = proxy

	return cfg, nil
}

// Validate checks that the settings required for remote publishing are present.
// It only applies when the integration is enabled.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Organization == "" {
		return fmt.Errorf("ADO_ORGANIZATION is required when ADO_ENABLED is true") //nolint:err113 // Static validation message
	}
	if c.Project == "" {
		return fmt.Errorf("ADO_PROJECT is required when ADO_ENABLED is true") //nolint:err113 // Static validation message
	}
	if c.PAT == "" {
		return fmt.Errorf("ADO_PAT is required when ADO_ENABLED is true") //nolint:err113 // Static validation message
	}
	return nil
}

func loadProxy(overlay *overlayFile) (ProxyConfig, error) {
	proxy := ProxyConfig{
		Enabled:  getBool("ADO_PROXY_ENABLED", overlay.boolOr("proxyEnabled", false)),
		Host:     getEnv("ADO_PROXY_HOST", overlay.stringOr("proxyHost", "")),
		Username: getEnv("ADO_PROXY_USERNAME", overlay.stringOr("proxyUsername", "")),
		Password: getEnv("ADO_PROXY_PASSWORD", overlay.stringOr("proxyPassword", "")),
	}

	protocol := getEnv("ADO_PROXY_PROTOCOL", overlay.stringOr("proxyProtocol", string(ProxyHTTP)))
	switch ProxyProtocol(strings.ToLower(protocol)) {
	case ProxyHTTP, ProxyHTTPS, ProxySOCKS5:
		proxy.Protocol = ProxyProtocol(strings.ToLower(protocol))
	default:
		return proxy, fmt.Errorf("invalid ADO_PROXY_PROTOCOL %q: must be http, https or socks5", protocol) //nolint:err113 // Include protocol for debugging
	}

	port, err := getInt("ADO_PROXY_PORT", overlay.intOr("proxyPort", 0))
	if err != nil {
		return proxy, fmt.Errorf("invalid ADO_PROXY_PORT: %w", err)
	}
	proxy.Port = port

	bypass := getEnv("ADO_PROXY_BYPASS", overlay.stringOr("proxyBypass", ""))
	proxy.Bypass = parseBypassList(bypass)

	return proxy, nil
}

// parseBypassList splits a comma-separated bypass string into trimmed,
// non-empty substring patterns.
func parseBypassList(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	patterns := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			patterns = append(patterns, trimmed)
		}
	}

	return patterns
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	return strconv.Atoi(value)
}

func (c *Config) String() string {
	patDisplay := "(not set)"
	if c.PAT != "" {
		patDisplay = "********"
	}

	proxyDisplay := "disabled"
	if c.Proxy.Enabled {
		proxyDisplay = fmt.Sprintf("%s://%s:%d", c.Proxy.Protocol, c.Proxy.Host, c.Proxy.Port)
	}

	planDisplay := strconv.Itoa(c.PlanID)
	if c.PlanID == 0 {
		planDisplay = "(from tags)"
	}

	suiteDisplay := strconv.Itoa(c.SuiteID)
	if c.SuiteID == 0 {
		suiteDisplay = "(from tags)"
	}

	return fmt.Sprintf(`Current Configuration:
======================
Enabled:              %t
Organization:         %s
Project:              %s
PAT:                  %s
API Version:          %s
Plan ID:              %s
Suite ID:             %s
Publish Mode:         %s
Request Timeout:      %s
Retry Count:          %d
Retry Delay:          %s
Proxy:                %s
Update Test Cases:    %t
Create Bug On Fail:   %t
Upload Screenshots:   %t
Upload Videos:        %t`,
		c.Enabled,
		c.Organization,
		c.Project,
		patDisplay,
		c.APIVersion,
		planDisplay,
		suiteDisplay,
		c.PublishMode,
		c.RequestTimeout,
		c.RetryCount,
		c.RetryDelay,
		proxyDisplay,
		c.UpdateTestCases,
		c.CreateBugOnFail,
		c.Uploads.Screenshots,
		c.Uploads.Videos,
	)
}
