package ollama

// VerifiedModels are the models this adapter is known to work with.
var VerifiedModels = []string{
	"llama3.1",
	"mistral",
	"qwen2.5",
}

// DefaultHost is used when neither a base URL nor OLLAMA_HOST is set.
const DefaultHost = "http://localhost:11434"

// BuildTag compiles the Ollama backend out of the binary.
const BuildTag = "noollama"
