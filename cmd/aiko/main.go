package main

import (
	"fmt"
	"os"
	"time"

	"github.com/aikobot/aiko/common/environment"
	"github.com/aikobot/aiko/common/version"
	"github.com/aikobot/aiko/internal/aiko/app"
	"github.com/aikobot/aiko/internal/aiko/cache"
	"github.com/aikobot/aiko/internal/aiko/convo"
	"github.com/aikobot/aiko/internal/aiko/llm"
	"github.com/aikobot/aiko/internal/aiko/matrix"
	"github.com/aikobot/aiko/internal/aiko/persona"
)

func main() {
	fmt.Printf("Aiko\n")
	fmt.Printf("Version: %s\n", version.Version)
	fmt.Printf("Commit: %s\n", version.GitCommit)
	fmt.Printf("Build Time: %s\n", version.BuildTime)
	fmt.Println()

	config, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	aiko, err := app.New(config)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize Aiko: %v\n", err)
		os.Exit(1)
	}
	defer aiko.Stop()

	if err := aiko.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running Aiko: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig assembles the application configuration from the environment.
func loadConfig() (*app.Config, error) {
	homeserver, err := environment.RequiredString("MATRIX_HOMESERVER")
	if err != nil {
		return nil, err
	}
	userID, err := environment.RequiredString("MATRIX_USER_ID")
	if err != nil {
		return nil, err
	}
	accessToken, err := environment.RequiredString("MATRIX_ACCESS_TOKEN")
	if err != nil {
		return nil, err
	}
	apiKey, err := environment.RequiredString("AIKO_API_KEY")
	if err != nil {
		return nil, err
	}

	personaSet := persona.Set(environment.StringOr("AIKO_PERSONA_SET", string(persona.SetSimple)))
	if personaSet != persona.SetSimple && personaSet != persona.SetComplex {
		return nil, fmt.Errorf("AIKO_PERSONA_SET must be %q or %q, got %q",
			persona.SetSimple, persona.SetComplex, personaSet)
	}

	return &app.Config{
		DatabasePath: environment.StringOr("AIKO_DB_PATH", "./aiko.db"),
		Matrix: matrix.Config{
			Homeserver:   homeserver,
			UserID:       userID,
			AccessToken:  accessToken,
			AllowedRooms: environment.StringSliceOr("MATRIX_ALLOWED_ROOMS", nil),
		},
		LLM: llm.Config{
			APIKey:  apiKey,
			BaseURL: environment.StringOr("AIKO_API_BASE_URL", "https://api.openai.com/v1"),
			Model:   environment.StringOr("AIKO_MODEL", "gpt-4o-mini"),
			Timeout: environment.DurationOr("AIKO_API_TIMEOUT", 60*time.Second),
		},
		PersonaSet:     personaSet,
		DefaultPersona: environment.StringOr("AIKO_DEFAULT_PERSONA", persona.FallbackName),
		Conversation: convo.Config{
			IdleTimeout:      environment.DurationOr("AIKO_IDLE_TIMEOUT", time.Hour),
			MaxHistory:       environment.IntOr("AIKO_MAX_HISTORY", 10),
			MaxContextTokens: environment.IntOr("AIKO_MAX_CONTEXT_TOKENS", 3000),
			ContextEnabled:   environment.BoolOr("AIKO_CONTEXT_ENABLED", true),
		},
		MaxGroupMembers: environment.IntOr("AIKO_MAX_GROUP_MEMBERS", 0),
		Cache: cache.Config{
			Capacity: environment.IntOr("AIKO_CACHE_CAPACITY", 0),
		},
		RateLimit:     environment.IntOr("AIKO_RATE_LIMIT", 0),
		TokenBudget:   environment.IntOr("AIKO_TOKEN_BUDGET", 0),
		SweepInterval: environment.DurationOr("AIKO_SWEEP_INTERVAL", 0),
		Retention:     environment.DurationOr("AIKO_RETENTION", 0),
		CommandPrefix: environment.StringOr("AIKO_COMMAND_PREFIX", "!"),
		BotName:       environment.StringOr("AIKO_BOT_NAME", "Aiko"),
	}, nil
}
