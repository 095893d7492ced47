package models

// Health is the body of the liveness and readiness checks.
type Health struct {
	Status  HealthStatus   `json:"status"`
	Time    Timestamp      `json:"time"`
	Details map[string]any `json:"details,omitempty"`
}

// SystemStatus aggregates provider and model status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Model     *ModelStatus     `json:"model,omitempty"`
	Providers []ProviderStatus `json:"providers"`
}

// ModelStatus describes the loaded policy.
type ModelStatus struct {
	Name     string    `json:"name"`
	Updates  int       `json:"updates"`
	LoadedAt Timestamp `json:"loadedAt"`
}

// ProviderStatus is the circuit breaker view of one external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	Requests      uint32       `json:"requests"`
	Failures      uint32       `json:"failures"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}

// ModelList is the body of GET /v1/admin/models.
type ModelList struct {
	Models []StoredModel `json:"models"`
}

// StoredModel is one artifact in the model store.
type StoredModel struct {
	Name      string    `json:"name"`
	SizeBytes int       `json:"sizeBytes"`
	UpdatedAt Timestamp `json:"updatedAt"`
}
