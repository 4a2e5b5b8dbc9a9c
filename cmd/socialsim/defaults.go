package main

import (
	"time"

	"github.com/spf13/viper"
)

func initViperDefaults() {
	// Generation backend
	viper.SetDefault("llm.endpoint", "http://localhost:11434")
	viper.SetDefault("llm.model", "")
	viper.SetDefault("llm.critic_model", "llama3.1")
	viper.SetDefault("llm.request_timeout", 90*time.Second)

	// Global
	viper.SetDefault("file_state_dir", "~/.socialsim")
	viper.SetDefault("personas.path", "personas.json")

	// Memory
	viper.SetDefault("memory.driver", "file")
	viper.SetDefault("memory.dir_name", "memory")
	viper.SetDefault("memory.top_k", 3)
	viper.SetDefault("memory.embedding_dim", 256)
	viper.SetDefault("agent.history_max_turns", 20)

	// Posts
	viper.SetDefault("store.driver", "file")
	viper.SetDefault("store.sqlite.dsn", "")

	// Reward loop
	viper.SetDefault("judge.kind", "panel")
	viper.SetDefault("judge.panel_size", 5)
	viper.SetDefault("env.max_steps", 10)
	viper.SetDefault("train.steps", 500)
	viper.SetDefault("train.seed", 0)
	viper.SetDefault("train.progress_buffer", 64)
	viper.SetDefault("train.dir_name", "policy")

	viper.SetDefault("logging.format", "text")
	viper.SetDefault("logging.add_source", false)
	viper.SetDefault("trace", false)
}
