// Package llm provides a provider-neutral layer for chat-style Large Language
// Model (LLM) APIs.
//
// This package defines the message and response model, the cross-provider
// error taxonomy, generation parameter validation, and the BaseAdapter that
// provider packages (openai, anthropic, google, ollama) build on.
//
// # Core Concepts
//
//  1. Messages: Message is a closed variant over system, user, and assistant
//     turns. Build them with Prompt, UserMessage, and AIMessage. A system
//     message is lifted out of the turn sequence before it reaches a backend;
//     when several are present the last one wins.
//
//  2. Responses: ChatResponse is the normalized result. ApplyPricing fills the
//     cost fields from per-token rates resolved through the registry package.
//
//  3. Errors: every backend failure is classified into an ErrorKind by walking
//     a fixed, ordered table of kinds. Each kind lists the raw identifiers it
//     claims per provider. Use errors.Is with the Err* sentinels to branch on
//     the kind.
//
//  4. Validation: temperature must lie in [0, 2] and top_p in [0, 1]. A
//     violation returns *ValidationError before any network call.
//
// Usage Example
//
//	adapter, err := universal.New("openai", "gpt-4o-mini", apiKey)
//	if err != nil {
//	    return err
//	}
//
//	resp, err := adapter.GenerateChatAnswer(ctx, []llm.Message{
//	    llm.Prompt("You are terse."),
//	    llm.UserMessage("Hello!"),
//	}, llm.WithTemperature(0.2))
//	if errors.Is(err, llm.ErrRateLimit) {
//	    // back off
//	}
//
// # Extension Points
//
// To add a provider:
//  1. Add one identifier list per kind to the taxonomy in errors.go
//  2. Write a client that speaks the provider's wire protocol
//  3. Embed *BaseAdapter and pass a CompletionFunc to Generate
//  4. Register the constructor with the universal dispatcher
package llm
