package model

import "github.com/shopspring/decimal"

const AvailabilityAvailable = "available"

// FreelancerProfile mirrors /freelancers/profiles/ resources.
type FreelancerProfile struct {
	ID                 int64            `json:"id,omitempty"`
	User               int64            `json:"user,omitempty"`
	Education          string           `json:"education"`
	ExperienceYears    int              `json:"experience_years"`
	Skills             []string         `json:"skills"`
	TechStack          []string         `json:"tech_stack"`
	Certifications     string           `json:"certifications"`
	PortfolioURL       string           `json:"portfolio_url"`
	AboutMe            string           `json:"about_me"`
	AvailabilityStatus string           `json:"availability_status"`
	HourlyRate         *decimal.Decimal `json:"hourly_rate,omitempty"`
	ProfilePicture     string           `json:"profile_picture,omitempty"`
}

type RecruiterProfile struct {
	ID          int64  `json:"id,omitempty"`
	User        int64  `json:"user,omitempty"`
	CompanyName string `json:"company_name"`
	Website     string `json:"company_website,omitempty"`
	About       string `json:"about,omitempty"`
}

// ProfilePicture is the upload_picture response.
type ProfilePicture struct {
	ID             int64  `json:"id,omitempty"`
	ProfilePicture string `json:"profile_picture"`
}
