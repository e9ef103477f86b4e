package validation

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/jobmarket/marketplace-client/pkg/model"
)

// FieldErrors maps a form field to its first validation message.
type FieldErrors map[string]string

func (fe FieldErrors) Error() string {
	keys := make([]string, 0, len(fe))
	for k := range fe {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+fe[k])
	}
	return "invalid form: " + strings.Join(parts, "; ")
}

func (fe FieldErrors) add(field, msg string) {
	if _, ok := fe[field]; !ok {
		fe[field] = msg
	}
}

func (fe FieldErrors) err() error {
	if len(fe) == 0 {
		return nil
	}
	return fe
}

func checkName(fe FieldErrors, name string) {
	if len([]rune(name)) < 2 {
		fe.add("full_name", "Please enter your full name")
	}
}

func checkEmail(fe FieldErrors, email string) {
	switch {
	case email == "":
		fe.add("email", "Email is required")
	case !Email(email):
		fe.add("email", "Please enter a valid email address")
	}
}

// RegistrationForm is the signup form for either role.
type RegistrationForm struct {
	Role        model.Role `json:"role"`
	FullName    string     `json:"full_name"`
	Email       string     `json:"email"`
	Password    string     `json:"password"`
	PhoneNumber string     `json:"phone_number"`
	CompanyName string     `json:"company_name,omitempty"`
	Skills      string     `json:"skills,omitempty"`
}

func (f *RegistrationForm) normalize() {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	f.CompanyName = strings.TrimSpace(f.CompanyName)
	f.Skills = strings.TrimSpace(f.Skills)
}

// Validate trims the inputs and returns FieldErrors when any rule fails.
func (f *RegistrationForm) Validate() error {
	f.normalize()
	fe := FieldErrors{}

	if !f.Role.Valid() {
		fe.add("role", "Please select your role")
	}
	checkName(fe, f.FullName)
	checkEmail(fe, f.Email)

	switch {
	case f.Password == "":
		fe.add("password", "Password is required")
	case !Password(f.Password):
		fe.add("password", fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	if f.Role == model.RoleRecruiter && f.CompanyName == "" {
		fe.add("company_name", "Company name is required")
	}

	switch {
	case f.PhoneNumber == "":
		fe.add("phone_number", "Phone number is required")
	case !Phone(f.PhoneNumber):
		fe.add("phone_number", "Please enter a valid phone number (min 10 digits)")
	}

	if f.Role == model.RoleFreelancer && f.Skills == "" {
		fe.add("skills", "Please enter your skills")
	}
	return fe.err()
}

// Request builds the API payload; the password is echoed as the confirmation.
func (f *RegistrationForm) Request() model.RegisterRequest {
	return model.RegisterRequest{
		Email:           f.Email,
		Password:        f.Password,
		PasswordConfirm: f.Password,
		FullName:        f.FullName,
		PhoneNumber:     f.PhoneNumber,
		Role:            f.Role,
	}
}

type LoginForm struct {
	Email    string     `json:"email"`
	Password string     `json:"password"`
	Role     model.Role `json:"role"`
}

func (f *LoginForm) Validate() error {
	f.Email = strings.TrimSpace(f.Email)
	fe := FieldErrors{}
	checkEmail(fe, f.Email)
	if f.Password == "" {
		fe.add("password", "Password is required")
	}
	if f.Role == "" {
		fe.add("role", "Please select your role")
	}
	return fe.err()
}

// ProfileForm is the freelancer profile editor. Experience is kept as text so
// a non-numeric entry can be reported rather than rejected by the decoder.
type ProfileForm struct {
	FullName       string `json:"full_name"`
	Education      string `json:"education"`
	Experience     string `json:"experience"`
	Skills         string `json:"skills"`
	TechStack      string `json:"tech_stack"`
	Certifications string `json:"certifications"`
	Portfolio      string `json:"portfolio_url"`
	About          string `json:"about_me"`
}

func (f *ProfileForm) normalize() {
	for _, p := range []*string{&f.FullName, &f.Education, &f.Experience, &f.Skills, &f.TechStack, &f.Certifications, &f.Portfolio, &f.About} {
		*p = strings.TrimSpace(*p)
	}
}

// MinAboutLength is the shortest accepted self description.
const MinAboutLength = 20

func (f *ProfileForm) Validate() error {
	f.normalize()
	fe := FieldErrors{}

	checkName(fe, f.FullName)
	if f.Education == "" {
		fe.add("education", "Education is required")
	}
	if years, err := strconv.Atoi(f.Experience); err != nil || years < 0 {
		fe.add("experience", "Please enter valid years of experience")
	}
	if f.Skills == "" {
		fe.add("skills", "Technical skills are required")
	}
	if f.TechStack == "" {
		fe.add("tech_stack", "Tech stack is required")
	}
	if f.Portfolio != "" && !URL(f.Portfolio) {
		fe.add("portfolio_url", "Please enter a valid URL")
	}
	if len([]rune(f.About)) < MinAboutLength {
		fe.add("about_me", fmt.Sprintf("Please provide a description (min %d characters)", MinAboutLength))
	}
	return fe.err()
}

// ToProfile converts a validated form into the API payload.
func (f *ProfileForm) ToProfile() model.FreelancerProfile {
	years, _ := strconv.Atoi(f.Experience)
	return model.FreelancerProfile{
		Education:          f.Education,
		ExperienceYears:    years,
		Skills:             SplitList(f.Skills),
		TechStack:          SplitList(f.TechStack),
		Certifications:     f.Certifications,
		PortfolioURL:       f.Portfolio,
		AboutMe:            f.About,
		AvailabilityStatus: model.AvailabilityAvailable,
	}
}
