package types

import (
	"strings"
	"time"
)

// OpenFlags selects how a local database file is opened. The zero value
// leaves the engine default (read-write, create if missing).
type OpenFlags string

const (
	OpenDefault   OpenFlags = ""
	OpenReadOnly  OpenFlags = "read_only"
	OpenReadWrite OpenFlags = "read_write"
	OpenCreate    OpenFlags = "create"
)

// TransactionBehavior selects the locking mode of a new transaction. The zero
// value is deferred.
type TransactionBehavior string

const (
	BehaviorDeferred  TransactionBehavior = "deferred"
	BehaviorImmediate TransactionBehavior = "immediate"
	BehaviorExclusive TransactionBehavior = "exclusive"
	BehaviorReadOnly  TransactionBehavior = "read_only"
)

// Normalize maps the zero value to BehaviorDeferred and rejects unknown
// behaviors.
func (b TransactionBehavior) Normalize() (TransactionBehavior, error) {
	switch b {
	case "":
		return BehaviorDeferred, nil
	case BehaviorDeferred, BehaviorImmediate, BehaviorExclusive, BehaviorReadOnly:
		return b, nil
	}
	return "", NewError(KindEngine, "unknown transaction behavior %q", string(b))
}

// ConnectArgs configures a connect call. Only URL is required; zero values
// mean "absent".
type ConnectArgs struct {
	URL                 string    `json:"url"`
	AuthToken           string    `json:"auth_token,omitempty"`
	SyncURL             string    `json:"sync_url,omitempty"`
	SyncIntervalSeconds uint64    `json:"sync_interval_seconds,omitempty"`
	EncryptionKey       string    `json:"encryption_key,omitempty"`
	ReadYourWrites      bool      `json:"read_your_writes,omitempty"`
	OpenFlags           OpenFlags `json:"open_flags,omitempty"`
	Offline             bool      `json:"offline,omitempty"`
}

// Variant names the kind of database a ConnectArgs builds.
type Variant string

const (
	VariantOfflineSynced Variant = "offline-synced"
	VariantRemoteReplica Variant = "remote-replica"
	VariantRemote        Variant = "remote"
	VariantLocal         Variant = "local"
)

// Variant applies the selection rules in order; the first match wins.
func (a ConnectArgs) Variant() Variant {
	switch {
	case a.SyncURL != "" && a.Offline:
		return VariantOfflineSynced
	case a.SyncURL != "":
		return VariantRemoteReplica
	case IsRemoteURL(a.URL):
		return VariantRemote
	}
	return VariantLocal
}

// SyncInterval returns the configured background sync period, or zero.
func (a ConnectArgs) SyncInterval() time.Duration {
	return time.Duration(a.SyncIntervalSeconds) * time.Second
}

// Validate checks the fields every variant needs.
func (a ConnectArgs) Validate() error {
	if strings.TrimSpace(a.URL) == "" {
		return NewError(KindConnect, "url is required")
	}
	switch a.OpenFlags {
	case OpenDefault, OpenReadOnly, OpenReadWrite, OpenCreate:
	default:
		return NewError(KindConnect, "unknown open flags %q", string(a.OpenFlags))
	}
	// The sync engine has no local page encryption.
	if a.SyncURL != "" && a.EncryptionKey != "" {
		return NewError(KindConnect, "encryption_key is not supported for synced databases")
	}
	return nil
}

// IsRemoteURL reports whether url addresses a remote server rather than a
// local file.
func IsRemoteURL(url string) bool {
	return strings.HasPrefix(url, "libsql://") ||
		strings.HasPrefix(url, "http://") ||
		strings.HasPrefix(url, "https://")
}
