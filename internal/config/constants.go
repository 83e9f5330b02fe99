// Package config handles configuration loading and management
package config

// Default values applied when the environment and the YAML overlay are silent.
const (
	// DefaultAPIVersion is the Azure DevOps REST API version used for all calls.
	DefaultAPIVersion = "7.1"

	// DefaultBaseURL is the Azure DevOps services host.
	DefaultBaseURL = "https://dev.azure.com"

	// DefaultRequestTimeoutMS bounds a single HTTP attempt.
	DefaultRequestTimeoutMS = 30000

	// DefaultRetryCount is the total number of attempts per request.
	DefaultRetryCount = 3

	// DefaultRetryDelayMS is the base delay for linear backoff between attempts.
	DefaultRetryDelayMS = 1000

	// OverlayFilename is the optional YAML configuration overlay.
	OverlayFilename = "adopub.yaml"
)

// PublishMode selects when scenario results are delivered to the remote run.
type PublishMode string

const (
	// PublishModeSequential publishes each result as its scenario finishes.
	PublishModeSequential PublishMode = "sequential"
	// PublishModeBatched buffers results and drains them at suite completion.
	PublishModeBatched PublishMode = "batched"
)

// ProxyProtocol is the scheme used to reach the configured proxy.
type ProxyProtocol string

const (
	// ProxyHTTP tunnels requests through an HTTP proxy.
	ProxyHTTP ProxyProtocol = "http"
	// ProxyHTTPS tunnels requests through an HTTPS proxy.
	ProxyHTTPS ProxyProtocol = "https"
	// ProxySOCKS5 tunnels requests through a SOCKS5 proxy.
	ProxySOCKS5 ProxyProtocol = "socks5"
)
