package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	AuthServiceURL      string // base URL of the auth service
	IssuerURL           string // if set, provider endpoints are discovered from this issuer
	AuthorizeURL        string // authorization endpoint of the identity provider
	TokenURL            string // token endpoint of the identity provider
	RedirectURL         string // loopback URL receiving the authorization response
	Role                string // role to log in as (teacher, student); prompt if empty
	NoBrowser           bool   // if true, the authorization URL is only printed
	SessionStore        string // type of session store (memory, file, nats)
	SessionDir          string // directory for the file session store
	SessionKey          string // key under which the authId is stored
	SessionTTL          string // lifetime of the stored authId (nats only)
	NATSURL             string // URL of the NATS server
	NATSBucket          string // name of the KV bucket holding sessions
	ConfigFetchTimeout  string // timeout for fetching the client configuration
	AuthorizeTimeout    string // max duration for the user to complete the authorization
	VerifyTimeout       string // timeout for the verification call
	WaitForServices     string // duration to wait for other services to be ready
	LogLevel            string // sets the log level (zap log level values)
	LogFormat           string // text vs json
	LogFilter           string // zapfilter rules, e.g. "*:login,oidc"
	EnableTelemetry     bool   // enable telemetry
	TelemetryEndpoint   string // endpoint for telemetry
	TelemetryStdout     bool   // write telemetry data to stdout instead of sending it
)
