package ports

// Gateway is a scan-serving surface (HTTP API, SMTP content filter).
// Start blocks until the gateway shuts down; Stop asks it to.
type Gateway interface {
	Start() error
	Stop() error
}
