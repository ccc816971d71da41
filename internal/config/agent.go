package config

import (
	"fmt"
	"net/url"
	"os"

	gaconfig "github.com/JaimeStill/go-agents/pkg/config"
)

const (
	EnvAgentName         = "LEDGER_AGENT_NAME"
	EnvAgentProviderName = "LEDGER_AGENT_PROVIDER_NAME"
	EnvAgentBaseURL      = "LEDGER_AGENT_BASE_URL"
	EnvAgentToken        = "LEDGER_AGENT_TOKEN"
	EnvAgentDeployment   = "LEDGER_AGENT_DEPLOYMENT"
	EnvAgentAPIVersion   = "LEDGER_AGENT_API_VERSION"
	EnvAgentAuthType     = "LEDGER_AGENT_AUTH_TYPE"
	EnvAgentModelName    = "LEDGER_AGENT_MODEL_NAME"
)

// FinalizeAgent fills a go-agents AgentConfig from the library defaults,
// applies LEDGER_AGENT_* overrides, and validates the result. The same
// agent serves the extractor, critic and semantic checker.
func FinalizeAgent(c *gaconfig.AgentConfig) error {
	loadAgentDefaults(c)
	loadAgentEnv(c)
	return validateAgent(c)
}

func loadAgentDefaults(c *gaconfig.AgentConfig) {
	defaults := gaconfig.DefaultAgentConfig()
	defaults.Merge(c)
	*c = defaults
	if c.Name == "" {
		c.Name = "ledger-extractor"
	}
}

func loadAgentEnv(c *gaconfig.AgentConfig) {
	if c.Provider == nil {
		c.Provider = &gaconfig.ProviderConfig{}
	}
	if c.Provider.Options == nil {
		c.Provider.Options = make(map[string]any)
	}
	if c.Model == nil {
		c.Model = &gaconfig.ModelConfig{}
	}
	if v := os.Getenv(EnvAgentName); v != "" {
		c.Name = v
	}
	if v := os.Getenv(EnvAgentProviderName); v != "" {
		c.Provider.Name = v
	}
	if v := os.Getenv(EnvAgentBaseURL); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv(EnvAgentModelName); v != "" {
		c.Model.Name = v
	}

	setOption := func(envVar, key string) {
		if v := os.Getenv(envVar); v != "" {
			c.Provider.Options[key] = v
		}
	}

	setOption(EnvAgentToken, "token")
	setOption(EnvAgentDeployment, "deployment")
	setOption(EnvAgentAPIVersion, "api_version")
	setOption(EnvAgentAuthType, "auth_type")
}

func validateAgent(c *gaconfig.AgentConfig) error {
	switch {
	case c.Name == "":
		return fmt.Errorf("name required")
	case c.Provider == nil:
		return fmt.Errorf("provider required")
	case c.Provider.Name == "":
		return fmt.Errorf("provider name required")
	case c.Model == nil:
		return fmt.Errorf("model required")
	}
	if c.Provider.BaseURL != "" {
		u, err := url.Parse(c.Provider.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("invalid provider base_url: %q", c.Provider.BaseURL)
		}
	}
	return nil
}
