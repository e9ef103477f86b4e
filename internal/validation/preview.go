package validation

import "strings"

// ProfilePreview is the read-only rendering of a profile form, with placeholders
// for anything left blank.
type ProfilePreview struct {
	Name           string   `json:"name"`
	Education      string   `json:"education"`
	Experience     string   `json:"experience"`
	About          string   `json:"about"`
	Skills         []string `json:"skills"`
	TechStack      []string `json:"tech_stack"`
	Certifications string   `json:"certifications"`
	Portfolio      string   `json:"portfolio"`

	SkillsPlaceholder    string `json:"skills_placeholder,omitempty"`
	TechStackPlaceholder string `json:"tech_stack_placeholder,omitempty"`
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// Preview renders f without validating it.
func (f ProfileForm) Preview() ProfilePreview {
	p := ProfilePreview{
		Name:           orDefault(f.FullName, "Your Name"),
		Education:      orDefault(f.Education, "Education"),
		Experience:     "0 years",
		About:          orDefault(f.About, "No description provided"),
		Certifications: orDefault(f.Certifications, "None"),
		Portfolio:      orDefault(f.Portfolio, "Not provided"),
	}
	if exp := strings.TrimSpace(f.Experience); exp != "" {
		p.Experience = exp + " years"
	}
	if s := strings.TrimSpace(f.Skills); s != "" {
		p.Skills = SplitList(s)
	} else {
		p.SkillsPlaceholder = "No skills added"
	}
	if s := strings.TrimSpace(f.TechStack); s != "" {
		p.TechStack = SplitList(s)
	} else {
		p.TechStackPlaceholder = "No tech stack added"
	}
	return p
}
