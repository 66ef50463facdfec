// Package appid holds the identity of the contactd binary: the name used in
// help text and logs, the environment variable prefix and the config name.
package appid

import (
	"context"
	"strings"
)

// Identity describes the running application.
type Identity struct {
	BinaryName  string
	Vendor      string
	EnvPrefix   string
	ConfigName  string
	Description string
}

var defaultIdentity = Identity{
	BinaryName:  "contactd",
	Vendor:      "contactd",
	EnvPrefix:   "CONTACTD_",
	ConfigName:  "contactd",
	Description: "Contact form relay with per-client rate limiting and mail or index dispatch",
}

// Get returns a copy of the application identity.
func Get(ctx context.Context) (*Identity, error) {
	identity := defaultIdentity
	return &identity, nil
}

// TelemetryNamespace is the metric namespace derived from the binary name.
func (i *Identity) TelemetryNamespace() string {
	if i == nil || strings.TrimSpace(i.BinaryName) == "" {
		return "app"
	}
	return strings.ReplaceAll(strings.ToLower(i.BinaryName), "-", "_")
}

// Prefix returns the env prefix with a guaranteed trailing underscore.
func (i *Identity) Prefix() string {
	if i == nil || i.EnvPrefix == "" {
		return ""
	}
	if !strings.HasSuffix(i.EnvPrefix, "_") {
		return i.EnvPrefix + "_"
	}
	return i.EnvPrefix
}
