package app

import (
	"fmt"
	"os"

	"promptstudio/pkg/config"
)

// validateConfig performs quick, fail-fast validation of the effective
// configuration before starting long-running services. Keep checks light
// and focused so callers can surface user-friendly errors.
func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.Config == nil {
		return fmt.Errorf("no configuration loaded")
	}

	// TLS cert/key presence check if one is set
	cert := eff.Config.Server.TLS.CertFile
	key := eff.Config.Server.TLS.KeyFile
	if (cert != "" && key == "") || (cert == "" && key != "") {
		return fmt.Errorf("incomplete TLS configuration: both server.tls.cert_file and server.tls.key_file must be set")
	}
	if cert != "" {
		if _, err := os.Stat(cert); err != nil {
			return fmt.Errorf("tls cert file not accessible: %w", err)
		}
		if _, err := os.Stat(key); err != nil {
			return fmt.Errorf("tls key file not accessible: %w", err)
		}
	}

	if eff.Config.EventLog.Enabled && eff.Config.EventLog.RetentionDays < 0 {
		return fmt.Errorf("eventlog.retention_days must not be negative")
	}

	if r := eff.Config.Telemetry.SampleRate; r < 0 || r > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1")
	}

	for _, c := range eff.Config.Seeds.Categories {
		if c.FunctionID == "" {
			return fmt.Errorf("seed category %q is missing function_id", c.Name)
		}
	}

	return nil
}
