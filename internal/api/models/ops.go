package models

// Health represents the health status of the service.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall system status.
type SystemStatus struct {
	Status    HealthStatus     `json:"status"`
	Time      Timestamp        `json:"time"`
	Datasets  []DatasetStatus  `json:"datasets"`
	Providers []ProviderStatus `json:"providers"`
}

// DatasetStatus describes the snapshot held by one dataset store.
type DatasetStatus struct {
	Name       string       `json:"name"`
	Status     HealthStatus `json:"status"`
	Rows       int          `json:"rows"`
	Parameters []string     `json:"parameters"`
	Start      *Timestamp   `json:"start,omitempty"`
	End        *Timestamp   `json:"end,omitempty"`
	LoadedAt   *Timestamp   `json:"loadedAt,omitempty"`
}

// ProviderStatus represents the status of an external provider.
type ProviderStatus struct {
	Provider      string       `json:"provider"`
	Status        HealthStatus `json:"status"`
	CircuitState  string       `json:"circuitState"`
	LastSuccessAt *Timestamp   `json:"lastSuccessAt,omitempty"`
	LastFailureAt *Timestamp   `json:"lastFailureAt,omitempty"`
	Message       *string      `json:"message,omitempty"`
}
