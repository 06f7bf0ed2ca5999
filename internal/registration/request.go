package registration

import (
	"strings"

	"smec/conclave/internal/model"
)

const missingFieldsMessage = "All required fields must be filled"

// Request is the register payload as it travels over the wire.
type Request struct {
	FullName    string `json:"fullName"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
	Password    string `json:"password"`
	Gender      string `json:"gender"`
	DateOfBirth string `json:"dateOfBirth"`
	Country     string `json:"country"`
	State       string `json:"state"`
	Pincode     string `json:"pincode"`
	Profession  string `json:"profession"`
	CollegeName string `json:"collegeName,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
}

// Registration is a Request that passed validation.
type Registration struct {
	FullName    string
	PhoneNumber string
	Email       string
	Password    string
	Gender      string
	DateOfBirth string
	Country     string
	State       string
	Pincode     string
	Profession  model.Profession
}

// Validate checks presence first, in form order, then the profession-specific
// affiliation. It stops at the first violation.
func (r Request) Validate() (Registration, error) {
	required := []struct {
		field string
		value string
	}{
		{"fullName", r.FullName},
		{"phoneNumber", r.PhoneNumber},
		{"email", r.Email},
		{"password", r.Password},
		{"gender", r.Gender},
		{"dateOfBirth", r.DateOfBirth},
		{"country", r.Country},
		{"state", r.State},
		{"pincode", r.Pincode},
		{"profession", r.Profession},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return Registration{}, invalid(f.field, missingFieldsMessage)
		}
	}

	category, err := model.ParseCategory(r.Profession)
	if err != nil {
		return Registration{}, invalid("profession", "Profession must be student or professional")
	}

	var profession model.Profession
	switch category {
	case model.CategoryStudent:
		college := strings.TrimSpace(r.CollegeName)
		if college == "" {
			return Registration{}, invalid("collegeName", "College name is required for students")
		}
		profession = model.Student{CollegeName: college}
	case model.CategoryProfessional:
		company := strings.TrimSpace(r.CompanyName)
		if company == "" {
			return Registration{}, invalid("companyName", "Company name is required for professionals")
		}
		profession = model.Professional{CompanyName: company}
	}

	return Registration{
		FullName:    strings.TrimSpace(r.FullName),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
		Email:       strings.TrimSpace(r.Email),
		Password:    r.Password,
		Gender:      strings.TrimSpace(r.Gender),
		DateOfBirth: strings.TrimSpace(r.DateOfBirth),
		Country:     strings.TrimSpace(r.Country),
		State:       strings.TrimSpace(r.State),
		Pincode:     strings.TrimSpace(r.Pincode),
		Profession:  profession,
	}, nil
}

func (r Registration) profile(accountID string) model.Profile {
	return model.Profile{
		ID:          accountID,
		FullName:    r.FullName,
		Phone:       r.PhoneNumber,
		Email:       r.Email,
		Gender:      r.Gender,
		DateOfBirth: r.DateOfBirth,
		Profession:  r.Profession,
		Country:     r.Country,
		State:       r.State,
		Pincode:     r.Pincode,
	}
}
