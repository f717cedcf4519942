package health

// Status is the /healthz payload.
type Status struct {
	OK         bool   `json:"ok"`
	Converter  string `json:"converter"`
	AIProvider string `json:"ai_provider"`
}

// Service reports which backends the process was started with.
type Service struct {
	converter  string
	aiProvider string
}

// NewService constructs a health service for the selected converter and AI provider.
func NewService(converter, aiProvider string) *Service {
	return &Service{converter: converter, aiProvider: aiProvider}
}

// Status returns the health payload.
func (s *Service) Status() Status {
	return Status{OK: true, Converter: s.converter, AIProvider: s.aiProvider}
}
