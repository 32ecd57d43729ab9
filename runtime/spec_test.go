package runtime

import "testing"

func TestAgentSpecValidate(t *testing.T) {
	spec := AgentSpec{
		Name:          "test",
		SystemPrompt:  "You are helpful",
		MaxIterations: 5,
		Temperature:   0.7,
	}

	if err := spec.Validate(); err != nil {
		t.Fatalf("expected valid spec, got %v", err)
	}

	spec.Name = ""
	if err := spec.Validate(); err == nil {
		t.Fatalf("expected error for empty name")
	}
}

func TestAgentSpecValidateBounds(t *testing.T) {
	spec := AgentSpec{
		Name:          "test",
		SystemPrompt:  "sys",
		MaxIterations: 0,
		Temperature:   0.5,
	}
	if err := spec.Validate(); err == nil {
		t.Fatalf("expected error for zero max iterations")
	}

	spec.MaxIterations = 3
	spec.Temperature = 2.5
	if err := spec.Validate(); err == nil {
		t.Fatalf("expected error for out-of-range temperature")
	}
}

func TestMaxIterationsFromEnv(t *testing.T) {
	t.Setenv("MAX_ITERATIONS", "")
	if got := MaxIterationsFromEnv(); got != DefaultMaxIterations {
		t.Errorf("unset env: got %d, want %d", got, DefaultMaxIterations)
	}

	t.Setenv("MAX_ITERATIONS", "12")
	if got := MaxIterationsFromEnv(); got != 12 {
		t.Errorf("override: got %d, want 12", got)
	}

	t.Setenv("MAX_ITERATIONS", "-3")
	if got := MaxIterationsFromEnv(); got != DefaultMaxIterations {
		t.Errorf("invalid override: got %d, want %d", got, DefaultMaxIterations)
	}
}

func TestAgentSpecCapabilityLookup(t *testing.T) {
	spec := AgentSpec{
		Name:          "cap-agent",
		SystemPrompt:  "sys",
		MaxIterations: 1,
		Temperature:   0.1,
		Capabilities: []Capability{
			CapabilityTools,
		},
	}

	if !spec.HasCapability(CapabilityTools) {
		t.Fatalf("expected spec to include tools capability")
	}

	if spec.HasCapability(CapabilityHistory) {
		t.Fatalf("expected spec to not include history capability")
	}
}
