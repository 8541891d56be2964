package main

import (
	"strings"

	"github.com/bitrise-io/go-steputils/stepconf"
)

// Config is read from the environment.
type Config struct {
	ModuleDomain       int             `env:"FEP_MODULE_DOMAIN"`
	TransmissionDriver string          `env:"FEP_TRANSMISSION_DRIVER"`
	DebugMode          bool            `env:"FEP_HARNESS_DEBUG"`
	ReportEndpoint     string          `env:"FEP_REPORT_ENDPOINT"`
	ReportToken        stepconf.Secret `env:"FEP_REPORT_TOKEN"`
	// ReportSecrets are newline separated values redacted from reports before they are published.
	ReportSecrets stepconf.Secret `env:"FEP_REPORT_SECRETS"`
	// RedactFiles are newline separated files redacted in addition to the published reports.
	RedactFiles string `env:"FEP_REPORT_REDACT_FILES"`
}

func parseConfig() (Config, error) {
	var config Config
	if err := stepconf.Parse(&config); err != nil {
		return Config{}, err
	}
	return config, nil
}

// Secrets ...
func (c Config) Secrets() []string {
	var secrets []string
	for _, s := range strings.Split(string(c.ReportSecrets), "\n") {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}
