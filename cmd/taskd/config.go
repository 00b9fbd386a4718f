package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/GoCodeAlone/taskflow/config"
	"github.com/GoCodeAlone/taskflow/provider"
)

const envPrefix = "TASKFLOW"

// flagKeys maps command flags onto config keys.
var flagKeys = map[string]string{
	"config":    "config",
	"addr":      "server.addr",
	"db":        "storage.path",
	"log-level": "log.level",
}

// loadConfig reads the config file named by --config or TASKFLOW_CONFIG, then
// applies TASKFLOW_* environment variables and changed flags over it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	cfg := config.DefaultConfig()
	if path := v.GetString("config"); path != "" {
		var err error
		if cfg, err = config.Load(path); err != nil {
			return nil, err
		}
	}
	applyOverrides(v, cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyOverrides copies every key set in v onto cfg.
func applyOverrides(v *viper.Viper, cfg *config.Config) {
	strs := map[string]*string{
		"server.addr":              &cfg.Server.Addr,
		"auth.jwt_secret":          &cfg.Auth.JWTSecret,
		"auth.admin_user":          &cfg.Auth.AdminUser,
		"auth.admin_pass":          &cfg.Auth.AdminPass,
		"storage.path":             &cfg.Storage.Path,
		"classifier.provider":      &cfg.Classifier.Provider,
		"classifier.model":         &cfg.Classifier.Model,
		"classifier.mock.priority": &cfg.Classifier.Mock.Priority,
		"log.level":                &cfg.Log.Level,
		"log.format":               &cfg.Log.Format,
	}
	for key, dst := range strs {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	if v.IsSet("auth.enabled") {
		cfg.Auth.Enabled = v.GetBool("auth.enabled")
	}
	if v.IsSet("auth.token_ttl") {
		cfg.Auth.TokenTTL = v.GetDuration("auth.token_ttl")
	}
	if v.IsSet("classifier.timeout") {
		cfg.Classifier.Timeout = v.GetDuration("classifier.timeout")
	}
	if v.IsSet("classifier.default_retry_after") {
		cfg.Classifier.DefaultRetryAfter = v.GetDuration("classifier.default_retry_after")
	}
	if v.IsSet("classifier.max_wait") {
		cfg.Classifier.MaxWait = v.GetDuration("classifier.max_wait")
	}
	if v.IsSet("classifier.max_tokens") {
		cfg.Classifier.MaxTokens = v.GetInt("classifier.max_tokens")
	}
	if v.IsSet("classifier.mock.tags") {
		cfg.Classifier.Mock.Tags = splitList(v.GetString("classifier.mock.tags"))
	}
	if v.IsSet("classifier.mock.subtasks") {
		cfg.Classifier.Mock.Subtasks = splitList(v.GetString("classifier.mock.subtasks"))
	}
	if v.IsSet("classifier.endpoints") {
		cfg.Classifier.Endpoints = parseEndpoints(v.GetString("classifier.endpoints"), v.GetString("classifier.api_keys"))
	}
}

// parseEndpoints pairs comma-separated URLs with comma-separated keys by
// position. A single key is shared by every URL.
func parseEndpoints(urls, keys string) []provider.Endpoint {
	keyList := splitList(keys)
	var eps []provider.Endpoint
	for i, u := range splitList(urls) {
		ep := provider.Endpoint{URL: u}
		switch {
		case i < len(keyList):
			ep.APIKey = keyList[i]
		case len(keyList) == 1:
			ep.APIKey = keyList[0]
		}
		eps = append(eps, ep)
	}
	return eps
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
