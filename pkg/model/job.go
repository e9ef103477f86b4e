package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Job struct {
	ID          int64            `json:"id,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Skills      []string         `json:"required_skills,omitempty"`
	BudgetMin   *decimal.Decimal `json:"budget_min,omitempty"`
	BudgetMax   *decimal.Decimal `json:"budget_max,omitempty"`
	JobType     string           `json:"job_type,omitempty"`
	Location    string           `json:"location,omitempty"`
	Status      string           `json:"status,omitempty"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
}

// JobPage is the paginated /jobs/ listing.
type JobPage struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []Job   `json:"results"`
}

type Application struct {
	ID          int64            `json:"id,omitempty"`
	Job         int64            `json:"job,omitempty"`
	CoverLetter string           `json:"cover_letter"`
	ProposedFee *decimal.Decimal `json:"proposed_rate,omitempty"`
	Status      string           `json:"status,omitempty"`
}
