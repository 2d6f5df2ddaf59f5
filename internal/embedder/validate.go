package embedder

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// knownChatModelPrefixes contains name fragments that identify chat models
// which are NOT suitable for embedding. If EMBEDDING_MODEL matches any of
// these, a warning is emitted so the operator knows the retrieval pipeline
// may be misconfigured.
var knownChatModelPrefixes = []string{
	"gpt-4",
	"gpt-3.5",
	"gpt-35",
	"o1",
	"o3",
	"llama3",
	"llama2",
	"llama-3",
	"llama-2",
	"mistral",
	"mixtral",
	"gemma",
	"gemini-1",
	"gemini-2",
	"phi-",
	"phi3",
	"claude",
	"deepseek",
	"qwen",
}

// looksLikeChatModel returns true when the model name resembles a known
// chat model rather than a dedicated embedding model.
func looksLikeChatModel(model string) bool {
	lower := strings.ToLower(model)
	for _, prefix := range knownChatModelPrefixes {
		if strings.Contains(lower, prefix) {
			return true
		}
	}
	return false
}

// Validate is a pre-flight check of the embedding configuration. It returns
// an error when the configuration is clearly broken (a remote backend with
// no credentials) and logs a warning when EMBEDDING_MODEL looks like a chat
// model. Call it at startup so operators get a clear error before the
// first upload rather than a cryptic failure mid-request.
func Validate(log *slog.Logger) error {
	backend := os.Getenv("EMBEDDING_PROVIDER")
	if backend == "" {
		backend = getEnvOrDefault("MODEL_PROVIDER", "ollama")
		if backend != "ollama" {
			log.Warn("embedder: EMBEDDING_PROVIDER is not set; inheriting MODEL_PROVIDER as embedding backend",
				slog.String("backend", backend),
				slog.String("hint", "set EMBEDDING_PROVIDER=ollama (or openai/azure/gemini) to be explicit"),
			)
		}
	}

	switch backend {
	case "openai":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no OpenAI API key found; set OPENAI_API_KEY or EMBEDDING_API_KEY")
		}

	case "azure":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("AZURE_OPENAI_API_KEY") == "" {
			return fmt.Errorf("embedder: no Azure API key found; set AZURE_OPENAI_API_KEY or EMBEDDING_API_KEY")
		}
		if os.Getenv("EMBEDDING_ENDPOINT") == "" && os.Getenv("AZURE_OPENAI_ENDPOINT") == "" {
			return fmt.Errorf("embedder: no Azure endpoint found; set AZURE_OPENAI_ENDPOINT or EMBEDDING_ENDPOINT")
		}

	case "gemini":
		if os.Getenv("EMBEDDING_API_KEY") == "" && os.Getenv("GOOGLE_API_KEY") == "" {
			return fmt.Errorf("embedder: no Google API key found; set GOOGLE_API_KEY or EMBEDDING_API_KEY")
		}
	}

	if model := os.Getenv("EMBEDDING_MODEL"); model != "" && looksLikeChatModel(model) {
		log.Warn("embedder: EMBEDDING_MODEL looks like a chat model, not an embedding model; "+
			"this will likely produce poor or broken embeddings",
			slog.String("model", model),
			slog.String("hint", "use a dedicated embedding model e.g. nomic-embed-text, text-embedding-3-small, text-embedding-004"),
		)
	}

	return nil
}
