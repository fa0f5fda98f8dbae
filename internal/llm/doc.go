// Package llm wraps the generative and embedding oracles behind langchaingo.
// It supports OpenAI, Google AI and Ollama providers, with rate limiting,
// per-call timeouts, bounded retries and an embedding cache.
package llm
