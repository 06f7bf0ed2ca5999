package model

import (
	"fmt"
	"strings"
)

type Category string

const (
	CategoryStudent      Category = "student"
	CategoryProfessional Category = "professional"
)

func (c Category) Valid() bool {
	return c == CategoryStudent || c == CategoryProfessional
}

func ParseCategory(value string) (Category, error) {
	c := Category(strings.TrimSpace(strings.ToLower(value)))
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", value)
	}
	return c, nil
}

// Profession is either Student or Professional. Each variant carries the one
// affiliation field that is required for it.
type Profession interface {
	Category() Category
	Affiliation() string
	isProfession()
}

type Student struct {
	CollegeName string
}

func (Student) Category() Category    { return CategoryStudent }
func (s Student) Affiliation() string { return s.CollegeName }
func (Student) isProfession()         {}

type Professional struct {
	CompanyName string
}

func (Professional) Category() Category    { return CategoryProfessional }
func (p Professional) Affiliation() string { return p.CompanyName }
func (Professional) isProfession()         {}

// CollegeName returns the college for students and nil otherwise, matching the
// nullable user_profiles.college_name column.
func CollegeName(p Profession) *string {
	if s, ok := p.(Student); ok {
		name := s.CollegeName
		return &name
	}
	return nil
}

func CompanyName(p Profession) *string {
	if pr, ok := p.(Professional); ok {
		name := pr.CompanyName
		return &name
	}
	return nil
}

// ProfessionFromColumns rebuilds the union from stored columns.
func ProfessionFromColumns(category string, college, company *string) (Profession, error) {
	c, err := ParseCategory(category)
	if err != nil {
		return nil, err
	}
	switch c {
	case CategoryStudent:
		return Student{CollegeName: deref(college)}, nil
	default:
		return Professional{CompanyName: deref(company)}, nil
	}
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
