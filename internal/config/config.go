package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the orchestrator process.
type Config struct {
	Port      int
	Version   string
	Discovery DiscoveryConfig
	MCP       MCPConfig
	LLM       LLMConfig
	Executor  ExecutorConfig
	Telemetry TelemetryConfig

	// DefaultAgentID, if set, is the agent DelegationAgent activities
	// fall back to when neither an id preference nor a skill resolves
	// against the registry (§4.5). Empty means no fallback is offered.
	DefaultAgentID string
}

type DiscoveryConfig struct {
	URL string
}

type MCPConfig struct {
	ServerURL string
	APIKey    string
}

type LLMConfig struct {
	PlannerAPIKey string
	MCPAPIKey     string
	A2AAPIKey     string
}

type ExecutorConfig struct {
	// DefaultMaxLoops bounds the MCP agent loop (§4.6) when a caller
	// does not specify its own max_loops.
	DefaultMaxLoops int
	// A2ACallTimeoutSeconds bounds every outbound AgentInvoker call.
	A2ACallTimeoutSeconds int
}

type TelemetryConfig struct {
	Enabled        bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:           envInt("ORCHESTRATOR_PORT", 8080),
		Version:        envStr("ORCHESTRATOR_VERSION", "0.1.0"),
		DefaultAgentID: envStr("DEFAULT_AGENT_ID", ""),
		Discovery: DiscoveryConfig{
			URL: envStr("DISCOVERY_URL", "http://localhost:8090"),
		},
		MCP: MCPConfig{
			ServerURL: envStr("MCP_SERVER_URL", "http://localhost:8070"),
			APIKey:    envStr("LLM_MCP_API_KEY", ""),
		},
		LLM: LLMConfig{
			PlannerAPIKey: envStr("LLM_PLANNER_API_KEY", ""),
			MCPAPIKey:     envStr("LLM_MCP_API_KEY", ""),
			A2AAPIKey:     envStr("LLM_A2A_API_KEY", ""),
		},
		Executor: ExecutorConfig{
			DefaultMaxLoops:       envInt("EXECUTOR_MAX_LOOPS", 10),
			A2ACallTimeoutSeconds: envInt("A2A_CALL_TIMEOUT_SECONDS", 50),
		},
		Telemetry: TelemetryConfig{
			Enabled:        envBool("OTEL_ENABLED", false),
			OTLPEndpoint:   envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:    envStr("OTEL_SERVICE_NAME", "orchestrator"),
			ServiceVersion: envStr("ORCHESTRATOR_VERSION", "0.1.0"),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
