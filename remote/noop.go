package remote

import "github.com/go-errors/errors"

// NoopChecker stands in when no update endpoint is configured.
type NoopChecker struct {
}

// Compile time check for protocol compatibility
var _ Checker = (*NoopChecker)(nil)

func NewNoopChecker() *NoopChecker {
	return &NoopChecker{}
}

func (n *NoopChecker) Check(platform string, currentVersion string) (*CheckResult, error) {
	return nil, errors.New("no update service available")
}
