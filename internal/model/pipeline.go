package model

// PipelineStep is one stage of the opportunity pipeline; it becomes a board column.
type PipelineStep struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Color    string  `json:"color"`
	Position float64 `json:"position"`
}

// Currency is a composite amount field.
type Currency struct {
	AmountMicros float64 `json:"amountMicros"`
	CurrencyCode string  `json:"currencyCode"`
}

// Opportunity is a deal moving through pipeline steps.
type Opportunity struct {
	ID               string    `json:"id"`
	CompanyID        string    `json:"companyId,omitempty"`
	PipelineStepID   string    `json:"pipelineStepId,omitempty"`
	PointOfContactID string    `json:"pointOfContactId,omitempty"`
	Amount           *Currency `json:"amount,omitempty"`
	CloseDate        string    `json:"closeDate,omitempty"`
	Probability      string    `json:"probability,omitempty"`
}

// Company is the organization an opportunity belongs to.
type Company struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	DomainName     string `json:"domainName,omitempty"`
	AccountOwnerID string `json:"accountOwnerId,omitempty"`
}

// CompanyProgress pairs an opportunity with its company for a board card.
type CompanyProgress struct {
	Opportunity Opportunity `json:"opportunity"`
	Company     Company     `json:"company"`
}

// BoardColumn is a kanban column derived from a pipeline step.
type BoardColumn struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	ColorCode string  `json:"colorCode,omitempty"`
	Position  float64 `json:"position"`
}
