package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"rag-server/internal/models"
)

// MergePolicy selects where retrieved context is injected into a conversation
type MergePolicy string

const (
	MergePolicySystemMessage   MergePolicy = "system-message"
	MergePolicyLastUserMessage MergePolicy = "last-user-message"
)

// ParseMergePolicy parses the RAG_POLICY value
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch MergePolicy(s) {
	case MergePolicySystemMessage, MergePolicyLastUserMessage:
		return MergePolicy(s), nil
	case "":
		return MergePolicySystemMessage, nil
	default:
		return "", models.NewConfigError("RAG_POLICY", "unknown merge policy: "+s)
	}
}

// PromptTemplate identifies the prompt format of a model
type PromptTemplate string

// Templates known to have no system role. Any other template is assumed to
// support one.
var noSystemRoleTemplates = map[PromptTemplate]bool{
	"mistral-instruct":   true,
	"mistrallite":        true,
	"codellama-instruct": true,
	"gemma-instruct":     true,
	"octopus":            true,
}

// SupportsSystemRole reports whether the template accepts a system message
func (t PromptTemplate) SupportsSystemRole() bool {
	return !noSystemRoleTemplates[t]
}

// ModelSpec describes one configured model (chat or embedding)
type ModelSpec struct {
	Name           string
	Alias          string
	PromptTemplate PromptTemplate
	CtxSize        int
	BatchSize      int
}

// CollectionSpec describes one vector collection to retrieve from.
// Immutable after startup.
type CollectionSpec struct {
	URL            string
	CollectionName string
	Limit          int
	ScoreThreshold float32
}

// Config is the process-wide configuration, built once before the server
// binds and shared read-only by every request.
type Config struct {
	ChatModel      ModelSpec
	EmbeddingModel ModelSpec
	Collections    []CollectionSpec
	Policy         MergePolicy
	RagPrompt      string
	ContextWindow  int
	ChunkCapacity  int
	KwSearchURL    string
	IncludeUsage   bool
	APIKey         string
	EngineURL      string
	Addr           string
	WebUI          string
}

// Load reads configuration from the environment and validates it. Every
// violation is a ConfigError; the caller aborts startup on any error.
func Load(logger *log.Logger) (*Config, error) {
	names := splitList(getEnv("MODEL_NAME", ""))
	if len(names) != 2 {
		return nil, models.NewConfigError("MODEL_NAME",
			"requires a chat model and an embedding model, separated by a comma")
	}

	aliases := splitList(getEnv("MODEL_ALIAS", "default,embedding"))
	if len(aliases) != 2 {
		return nil, models.NewConfigError("MODEL_ALIAS",
			"requires two model aliases: one for the chat model, one for the embedding model")
	}

	ctxSizes, err := splitInts(getEnv("CTX_SIZE", "4096,384"))
	if err != nil || len(ctxSizes) != 2 {
		return nil, models.NewConfigError("CTX_SIZE",
			"requires two context sizes: one for the chat model, one for the embedding model")
	}

	batchSizes, err := splitInts(getEnv("BATCH_SIZE", "512,512"))
	if err != nil || len(batchSizes) != 2 {
		return nil, models.NewConfigError("BATCH_SIZE",
			"requires two batch sizes: one for the chat model, one for the embedding model")
	}

	templates := splitList(getEnv("PROMPT_TEMPLATE", ""))
	if len(templates) != 2 {
		return nil, models.NewConfigError("PROMPT_TEMPLATE",
			"requires two prompt templates: one for the chat model, one for the embedding model")
	}

	chatModel := ModelSpec{
		Name:           names[0],
		Alias:          aliases[0],
		PromptTemplate: PromptTemplate(templates[0]),
		CtxSize:        ctxSizes[0],
		BatchSize:      batchSizes[0],
	}
	embeddingModel := ModelSpec{
		Name:           names[1],
		Alias:          aliases[1],
		PromptTemplate: PromptTemplate(templates[1]),
		CtxSize:        ctxSizes[1],
		BatchSize:      batchSizes[1],
	}

	collections, err := loadCollections()
	if err != nil {
		return nil, err
	}

	policy, err := ParseMergePolicy(getEnv("RAG_POLICY", ""))
	if err != nil {
		return nil, err
	}
	// The downgrade decision is made once here and holds for the lifetime of
	// the process.
	if policy == MergePolicySystemMessage && !chatModel.PromptTemplate.SupportsSystemRole() {
		logger.Printf("WARN: chat model prompt template %q has no system role; downgrading merge policy from %s to %s",
			chatModel.PromptTemplate, MergePolicySystemMessage, MergePolicyLastUserMessage)
		policy = MergePolicyLastUserMessage
	}

	contextWindow, err := getEnvInt("CONTEXT_WINDOW", 1)
	if err != nil || contextWindow < 0 {
		return nil, models.NewConfigError("CONTEXT_WINDOW", "must be a non-negative integer")
	}

	chunkCapacity, err := getEnvInt("CHUNK_CAPACITY", 100)
	if err != nil || chunkCapacity < 1 {
		return nil, models.NewConfigError("CHUNK_CAPACITY", "must be a positive integer")
	}

	kwSearchURL := getEnv("KW_SEARCH_URL", "")
	if kwSearchURL != "" && !isValidURL(kwSearchURL) {
		return nil, models.NewConfigError("KW_SEARCH_URL", "invalid URL: "+kwSearchURL)
	}

	engineURL := getEnv("ENGINE_URL", "http://localhost:1234/v1")
	if !isValidURL(engineURL) {
		return nil, models.NewConfigError("ENGINE_URL", "invalid URL: "+engineURL)
	}

	addr := getEnv("LISTEN_ADDR", "")
	if addr == "" {
		addr = ":" + getEnv("PORT", "8080")
	}

	cfg := &Config{
		ChatModel:      chatModel,
		EmbeddingModel: embeddingModel,
		Collections:    collections,
		Policy:         policy,
		RagPrompt:      getEnv("RAG_PROMPT", ""),
		ContextWindow:  contextWindow,
		ChunkCapacity:  chunkCapacity,
		KwSearchURL:    kwSearchURL,
		IncludeUsage:   getEnv("INCLUDE_USAGE", "false") == "true",
		APIKey:         os.Getenv("API_KEY"),
		EngineURL:      strings.TrimSuffix(engineURL, "/"),
		Addr:           addr,
		WebUI:          getEnv("WEB_UI", "chatbot-ui"),
	}

	return cfg, nil
}

// loadCollections builds the collection specs, broadcasting a single limit
// or score threshold over all collections. Any other count mismatch is a
// fatal configuration error.
func loadCollections() ([]CollectionSpec, error) {
	storeURL := getEnv("QDRANT_URL", "http://127.0.0.1:6333")
	if !isValidURL(storeURL) {
		return nil, models.NewConfigError("QDRANT_URL", "invalid URL: "+storeURL)
	}

	names := splitList(getEnv("QDRANT_COLLECTION_NAME", "default"))
	if len(names) == 0 {
		return nil, models.NewConfigError("QDRANT_COLLECTION_NAME", "at least one collection name is required")
	}

	limits, err := splitInts(getEnv("QDRANT_LIMIT", "5"))
	if err != nil {
		return nil, models.NewConfigError("QDRANT_LIMIT", "must be a comma-separated list of integers")
	}
	if len(limits) != 1 && len(limits) != len(names) {
		return nil, models.NewConfigError("QDRANT_LIMIT",
			"requires the same number of limits as collection names, or a single limit for all collections")
	}

	thresholds, err := splitFloats(getEnv("QDRANT_SCORE_THRESHOLD", "0.4"))
	if err != nil {
		return nil, models.NewConfigError("QDRANT_SCORE_THRESHOLD", "must be a comma-separated list of numbers")
	}
	if len(thresholds) != 1 && len(thresholds) != len(names) {
		return nil, models.NewConfigError("QDRANT_SCORE_THRESHOLD",
			"requires the same number of score thresholds as collection names, or a single threshold for all collections")
	}

	specs := make([]CollectionSpec, 0, len(names))
	for i, name := range names {
		limit := limits[0]
		if len(limits) > 1 {
			limit = limits[i]
		}
		threshold := thresholds[0]
		if len(thresholds) > 1 {
			threshold = thresholds[i]
		}

		if limit < 1 {
			return nil, models.NewConfigError("QDRANT_LIMIT", "limit must be no less than 1")
		}
		if threshold < 0 || threshold > 1 {
			return nil, models.NewConfigError("QDRANT_SCORE_THRESHOLD", "score threshold must be between 0 and 1")
		}

		specs = append(specs, CollectionSpec{
			URL:            storeURL,
			CollectionName: name,
			Limit:          limit,
			ScoreThreshold: threshold,
		})
	}

	return specs, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func splitInts(s string) ([]int, error) {
	parts := splitList(s)
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}

func splitFloats(s string) ([]float32, error) {
	parts := splitList(s)
	out := make([]float32, 0, len(parts))
	for _, p := range parts {
		f, err := strconv.ParseFloat(p, 32)
		if err != nil {
			return nil, err
		}
		out = append(out, float32(f))
	}
	return out, nil
}

func isValidURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
