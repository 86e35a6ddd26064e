package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrInvalidPort is returned when the SSH port is outside 1..65535.
	ErrInvalidPort = errors.New("invalid ssh port: must be between 1 and 65535")

	// ErrInvalidConnectTimeout is returned when connect timeout is <= 0.
	ErrInvalidConnectTimeout = errors.New("invalid connect timeout: must be > 0")

	// ErrInvalidKeepAliveTimeout is returned when keepalive timeout is <= 0.
	ErrInvalidKeepAliveTimeout = errors.New("invalid keepalive timeout: must be > 0")

	// ErrInvalidHostKeyPolicy is returned when the host key policy is not recognized.
	ErrInvalidHostKeyPolicy = errors.New("invalid host key policy: must be strict or tofu")

	// ErrEmptyQueryTool is returned when no remote query tool is configured.
	ErrEmptyQueryTool = errors.New("query tool cannot be empty")

	// ErrInvalidQueryTimeout is returned when query timeout is <= 0.
	ErrInvalidQueryTimeout = errors.New("invalid query timeout: must be > 0")

	// ErrInvalidBusyPolicy is returned when the busy policy is not recognized.
	ErrInvalidBusyPolicy = errors.New("invalid busy policy: must be queue or fail")

	// ErrEmptyDBPath is returned when the catalog database path is empty.
	ErrEmptyDBPath = errors.New("catalog database path cannot be empty")

	// ErrInvalidLockTimeout is returned when lock timeout is <= 0.
	ErrInvalidLockTimeout = errors.New("invalid lock timeout: must be > 0")

	// ErrInvalidDisplayFormat is returned when the display format is not recognized.
	ErrInvalidDisplayFormat = errors.New("invalid display format: must be table, json, or simple")

	// ErrInvalidDebounce is returned when the watch debounce is <= 0.
	ErrInvalidDebounce = errors.New("invalid watch debounce: must be > 0")

	// ErrInvalidLogLevel is returned when log level is not recognized.
	ErrInvalidLogLevel = errors.New("invalid log level: must be debug, info, warn, or error")

	// ErrInvalidLogFormat is returned when log format is not recognized.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")

	// ErrConfigNotFound is returned when config file is not found.
	ErrConfigNotFound = errors.New("config file not found")

	// ErrInvalidYAML is returned when config file has invalid YAML syntax.
	ErrInvalidYAML = errors.New("invalid YAML syntax in config file")
)
