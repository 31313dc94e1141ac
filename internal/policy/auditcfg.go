package policy

import (
	"fmt"
	"runtime"
)

// AuditConfig is the policy's audit sub-schema. The legacy plain form carries
// only the three logging flags; the extended form adds encryption settings.
// Validation of this sub-schema is fail-closed: a malformed audit section
// invalidates the entire policy load.
type AuditConfig struct {
	LogAllValidations    *bool `json:"log_all_validations,omitempty"`
	LogPolicyDecisions   *bool `json:"log_policy_decisions,omitempty"`
	RequireJustification *bool `json:"require_justification,omitempty"`

	Encryption    *EncryptionConfig    `json:"encryption,omitempty"`
	Compatibility *CompatibilityConfig `json:"compatibility,omitempty"`

	RetentionDays int `json:"retention_days,omitempty"`
}

// EncryptionConfig describes audit-log encryption at rest. This build does
// not encrypt, but the schema is validated so a policy written for an
// encrypting build is either honored in full or rejected, never half-read.
type EncryptionConfig struct {
	Enabled            bool   `json:"enabled"`
	Algorithm          string `json:"algorithm,omitempty"`
	KeyProvider        string `json:"key_provider,omitempty"`
	KeyRotationDays    *int   `json:"key_rotation_days,omitempty"`
	MigrationMode      string `json:"migration_mode,omitempty"`
	TamperDetection    *bool  `json:"tamper_detection,omitempty"`
	RecoveryDecryption *bool  `json:"recovery_decryption,omitempty"`
}

// CompatibilityConfig controls plaintext fallback during encryption rollout.
type CompatibilityConfig struct {
	AllowPlaintextFallback  *bool `json:"allow_plaintext_fallback,omitempty"`
	MigrationTimeoutSeconds *int  `json:"migration_timeout_seconds,omitempty"`
	MaxMigrationAttempts    *int  `json:"max_migration_attempts,omitempty"`
	PlaintextRetentionDays  *int  `json:"plaintext_retention_days,omitempty"`
}

var supportedAlgorithms = map[string]bool{
	"AES-256-GCM": true,
}

var supportedKeyProviders = map[string]bool{
	"auto":               true,
	"keychain":           true, // macOS
	"credential-manager": true, // Windows
	"secret-service":     true, // Linux
	"custom":             true,
}

var supportedMigrationModes = map[string]bool{
	"auto":     true,
	"manual":   true,
	"disabled": true,
}

func (a *AuditConfig) validate() error {
	if a.RetentionDays < 0 {
		return fmt.Errorf("retention_days must be non-negative, got %d", a.RetentionDays)
	}
	if a.Encryption != nil {
		if err := a.Encryption.validate(); err != nil {
			return err
		}
	}
	if a.Compatibility != nil {
		if err := a.Compatibility.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e *EncryptionConfig) validate() error {
	algorithm := e.Algorithm
	if algorithm == "" {
		algorithm = "AES-256-GCM"
	}
	if !supportedAlgorithms[algorithm] {
		return fmt.Errorf("unsupported encryption algorithm %q", e.Algorithm)
	}

	provider := e.KeyProvider
	if provider == "" {
		provider = "auto"
	}
	if !supportedKeyProviders[provider] {
		return fmt.Errorf("unsupported key provider %q", e.KeyProvider)
	}

	if e.KeyRotationDays != nil && *e.KeyRotationDays < 0 {
		return fmt.Errorf("key_rotation_days must be non-negative, got %d", *e.KeyRotationDays)
	}

	mode := e.MigrationMode
	if mode == "" {
		mode = "auto"
	}
	if !supportedMigrationModes[mode] {
		return fmt.Errorf("unsupported migration mode %q", e.MigrationMode)
	}

	if e.Enabled {
		// Tamper detection and recovery decryption are not optional once
		// encryption is on: an encrypted log nobody can verify or decrypt
		// is worse than a plaintext one.
		if e.TamperDetection != nil && !*e.TamperDetection {
			return fmt.Errorf("tamper_detection must be enabled when encryption is enabled")
		}
		if e.RecoveryDecryption != nil && !*e.RecoveryDecryption {
			return fmt.Errorf("recovery_decryption must be enabled when encryption is enabled")
		}
	}
	return nil
}

func (c *CompatibilityConfig) validate() error {
	if c.MigrationTimeoutSeconds != nil && *c.MigrationTimeoutSeconds <= 0 {
		return fmt.Errorf("migration_timeout_seconds must be positive, got %d", *c.MigrationTimeoutSeconds)
	}
	if c.MaxMigrationAttempts != nil && *c.MaxMigrationAttempts <= 0 {
		return fmt.Errorf("max_migration_attempts must be positive, got %d", *c.MaxMigrationAttempts)
	}
	if c.PlaintextRetentionDays != nil && *c.PlaintextRetentionDays < 0 {
		return fmt.Errorf("plaintext_retention_days must be non-negative, got %d", *c.PlaintextRetentionDays)
	}
	return nil
}

// EffectiveKeyProvider resolves the "auto" provider to the platform-native
// key store.
func (e *EncryptionConfig) EffectiveKeyProvider() string {
	if e.KeyProvider != "" && e.KeyProvider != "auto" {
		return e.KeyProvider
	}
	switch runtime.GOOS {
	case "darwin":
		return "keychain"
	case "windows":
		return "credential-manager"
	default:
		return "secret-service"
	}
}

func (a *AuditConfig) logPolicyDecisions() bool {
	if a.LogPolicyDecisions == nil {
		return true
	}
	return *a.LogPolicyDecisions
}
