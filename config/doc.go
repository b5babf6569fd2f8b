// Package config loads agentrelay configuration from YAML.
//
// Values from the file are merged over DefaultConfig; a few environment
// variables (AGENTRELAY_REDIS_ADDR, AGENTRELAY_SQLITE_PATH,
// AGENTRELAY_LOG_LEVEL) override the result. Provider API keys are read from
// the variable named by api_key_env unless given inline.
//
// Durations are written as Go duration strings:
//
//	memory:
//	  fast: redis
//	  durable: sqlite
//	  short_term_ttl: 24h
//	providers:
//	  - name: primary
//	    kind: openai
//	    model: gpt-4o-mini
//	    api_key_env: OPENAI_API_KEY
//	    timeout: 20s
//	  - name: local
//	    kind: ollama
//	    model: llama3
package config
