// Package llm is the boundary to the external classification collaborator.
// It supports OpenAI, Anthropic and Gemini behind a single-operation Client,
// plus a deterministic stub for dry runs and tests. Responses are parsed into
// a deduction tier here so the rest of the pipeline never sees raw model text.
package llm
