// Package provider selects and constructs the chat model backend at
// runtime. Supported backends: Ollama, OpenAI, Azure OpenAI, AWS Bedrock,
// Google Gemini.
package provider

import "fmt"

// Backend enumerates the supported LLM inference providers.
type Backend string

const (
	// BackendOllama selects a locally running Ollama instance.
	BackendOllama Backend = "ollama"
	// BackendOpenAI selects the OpenAI API.
	BackendOpenAI Backend = "openai"
	// BackendAzure selects Azure OpenAI Service.
	BackendAzure Backend = "azure"
	// BackendBedrock selects AWS Bedrock.
	BackendBedrock Backend = "bedrock"
	// BackendGemini selects Google Gemini via AI Studio.
	BackendGemini Backend = "gemini"
)

// ProviderOllama configures a local Ollama instance.
type ProviderOllama struct {
	// Host is the Ollama server URL (default http://localhost:11434).
	Host string
	// Model is the Ollama model name (e.g. "llama3").
	Model string
}

// ProviderOpenAI configures the OpenAI API.
type ProviderOpenAI struct {
	APIKey string
	Model  string
}

// ProviderAzureOpenAI configures Azure OpenAI Service.
type ProviderAzureOpenAI struct {
	APIKey string
	// Endpoint is the resource endpoint, e.g. https://myresource.openai.azure.com.
	Endpoint string
	// Deployment is the Azure deployment name, used in place of the model name.
	Deployment string
	// APIVersion is the Azure REST API version (e.g. "2024-02-01").
	APIVersion string
}

// ProviderBedrock configures AWS Bedrock. AWS credentials are resolved via
// the standard SDK chain rather than explicit config fields.
type ProviderBedrock struct {
	AWSRegion string
	ModelID   string
	// Endpoint overrides the Bedrock-compatible runtime endpoint.
	Endpoint string
	// APIKey is a bearer credential for Bedrock-compatible gateways that
	// front the runtime with key auth.
	APIKey string
}

// ProviderGemini configures Google Gemini (AI Studio).
type ProviderGemini struct {
	APIKey string
	Model  string
}

// SharedTuning holds generation parameters applied to every backend.
type SharedTuning struct {
	// MaxTokens caps the number of tokens the model may generate per response.
	MaxTokens int
	// Temperature controls response randomness (0.0-1.0).
	Temperature float32
}

// Config holds all provider-level configuration resolved from environment
// variables or explicit caller-supplied values. Only the section matching
// Backend is consulted.
type Config struct {
	// Backend identifies which inference provider to use.
	Backend Backend

	Ollama      ProviderOllama
	OpenAI      ProviderOpenAI
	AzureOpenAI ProviderAzureOpenAI
	Bedrock     ProviderBedrock
	Gemini      ProviderGemini
	Tuning      SharedTuning
}

// Validate checks that the section selected by Backend is complete, naming
// the environment variable that would fill each missing field so startup
// errors are actionable.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendOllama:
		if c.Ollama.Model == "" {
			return fmt.Errorf("provider: OLLAMA_MODEL is required for the ollama backend")
		}
	case BackendOpenAI:
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("provider: OPENAI_API_KEY is required for the openai backend")
		}
		if c.OpenAI.Model == "" {
			return fmt.Errorf("provider: OPENAI_MODEL is required for the openai backend")
		}
	case BackendAzure:
		if c.AzureOpenAI.APIKey == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_API_KEY is required for the azure backend")
		}
		if c.AzureOpenAI.Endpoint == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_ENDPOINT is required for the azure backend")
		}
		if c.AzureOpenAI.Deployment == "" {
			return fmt.Errorf("provider: AZURE_OPENAI_DEPLOYMENT is required for the azure backend")
		}
	case BackendBedrock:
		if c.Bedrock.ModelID == "" {
			return fmt.Errorf("provider: BEDROCK_MODEL_ID is required for the bedrock backend")
		}
		if c.Bedrock.AWSRegion == "" {
			return fmt.Errorf("provider: AWS_REGION is required for the bedrock backend")
		}
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("provider: GOOGLE_API_KEY is required for the gemini backend")
		}
		if c.Gemini.Model == "" {
			return fmt.Errorf("provider: GEMINI_MODEL is required for the gemini backend")
		}
	default:
		return fmt.Errorf("provider: unknown backend %q (valid values: ollama, openai, azure, bedrock, gemini)", c.Backend)
	}
	return nil
}
