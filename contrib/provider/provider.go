// Package provider collects LLM client implementations. Each subpackage
// satisfies agent.LLMClient for one vendor SDK.
package provider
