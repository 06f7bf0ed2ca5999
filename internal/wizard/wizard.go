// Package wizard drives the three-step registration flow: pick a category,
// pick a pass from that category, fill in details, submit once.
//
// A Wizard holds one draft in memory and is not safe for concurrent use.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"smec/conclave/internal/catalog"
	"smec/conclave/internal/model"
	"smec/conclave/internal/registration"
)

type State int

const (
	CategorySelection State = iota
	PassSelection
	DetailsForm
	Submitted
)

func (s State) String() string {
	switch s {
	case CategorySelection:
		return "category_selection"
	case PassSelection:
		return "pass_selection"
	case DetailsForm:
		return "details_form"
	case Submitted:
		return "submitted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

type Event int

const (
	PickCategory Event = iota
	PickPass
	Back
	Submit
)

func (e Event) String() string {
	switch e {
	case PickCategory:
		return "pick_category"
	case PickPass:
		return "pick_pass"
	case Back:
		return "back"
	case Submit:
		return "submit"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

var transitions = map[State]map[Event]State{
	CategorySelection: {PickCategory: PassSelection},
	PassSelection:     {PickCategory: PassSelection, PickPass: DetailsForm, Back: CategorySelection},
	DetailsForm:       {Back: PassSelection, Submit: Submitted},
}

var (
	ErrInvalidTransition = errors.New("wizard: event not allowed in current state")
	ErrUnknownPass       = errors.New("wizard: pass not offered for category")

	ErrPasswordMismatch = &registration.Error{
		Kind:    registration.KindValidation,
		Field:   "confirmPassword",
		Message: "Passwords do not match!",
	}
)

// Details are the form fields. ConfirmPassword never leaves the wizard.
type Details struct {
	FullName        string
	PhoneNumber     string
	Email           string
	Password        string
	ConfirmPassword string
	Gender          string
	DateOfBirth     string
	Country         string
	State           string
	Pincode         string
	CollegeName     string
	CompanyName     string
}

type Draft struct {
	Category model.Category
	PassID   string
	Details  Details
}

type Registrar interface {
	Register(ctx context.Context, req registration.Request) (registration.RegisterResult, error)
}

type Result struct {
	Response registration.RegisterResult
	Category model.Category
	Pass     catalog.Pass
}

type Wizard struct {
	state     State
	draft     Draft
	passes    *catalog.Catalog
	registrar Registrar
}

func New(passes *catalog.Catalog, registrar Registrar) *Wizard {
	return &Wizard{state: CategorySelection, passes: passes, registrar: registrar}
}

func (w *Wizard) State() State { return w.state }

func (w *Wizard) Draft() Draft { return w.draft }

// Options lists the passes of the chosen category, recommended first.
func (w *Wizard) Options() []catalog.Pass {
	if w.draft.Category == "" {
		return nil
	}
	return w.passes.Display(w.draft.Category)
}

func (w *Wizard) next(event Event) (State, error) {
	to, ok := transitions[w.state][event]
	if !ok {
		return w.state, fmt.Errorf("%w: %s in %s", ErrInvalidTransition, event, w.state)
	}
	return to, nil
}

// PickCategory selects the attendee category. Changing it drops any pass
// picked earlier, even when the new category offers a pass with the same id.
func (w *Wizard) PickCategory(category model.Category) error {
	to, err := w.next(PickCategory)
	if err != nil {
		return err
	}
	if !category.Valid() || len(w.passes.Passes(category)) == 0 {
		return fmt.Errorf("wizard: unknown category %q", category)
	}
	if category != w.draft.Category {
		w.draft.PassID = ""
	}
	w.draft.Category = category
	w.state = to
	return nil
}

func (w *Wizard) PickPass(passID string) error {
	to, err := w.next(PickPass)
	if err != nil {
		return err
	}
	if _, ok := w.passes.Lookup(w.draft.Category, passID); !ok {
		return fmt.Errorf("%w: %s/%s", ErrUnknownPass, w.draft.Category, passID)
	}
	w.draft.PassID = passID
	w.state = to
	return nil
}

// Back returns to the previous step and keeps everything entered so far.
func (w *Wizard) Back() error {
	to, err := w.next(Back)
	if err != nil {
		return err
	}
	w.state = to
	return nil
}

// UpdateDetails replaces the form fields. When the country changes, a state
// that is not in the new country's list is cleared.
func (w *Wizard) UpdateDetails(details Details) error {
	if w.state != DetailsForm {
		return fmt.Errorf("%w: details edit in %s", ErrInvalidTransition, w.state)
	}
	if details.Country != w.draft.Details.Country && !slices.Contains(w.passes.States(details.Country), details.State) {
		details.State = ""
	}
	w.draft.Details = details
	return nil
}

// Submit checks the password confirmation and the shared register rules
// locally, then sends exactly one register request. On failure the wizard
// stays on the details step with the draft intact.
func (w *Wizard) Submit(ctx context.Context) (Result, error) {
	to, err := w.next(Submit)
	if err != nil {
		return Result{}, err
	}
	d := w.draft.Details
	if d.Password != d.ConfirmPassword {
		return Result{}, ErrPasswordMismatch
	}
	req := w.request()
	if _, err := req.Validate(); err != nil {
		return Result{}, err
	}
	pass, ok := w.passes.Lookup(w.draft.Category, w.draft.PassID)
	if !ok {
		return Result{}, fmt.Errorf("%w: %s/%s", ErrUnknownPass, w.draft.Category, w.draft.PassID)
	}

	resp, err := w.registrar.Register(ctx, req)
	if err != nil {
		return Result{}, err
	}
	result := Result{Response: resp, Category: w.draft.Category, Pass: pass}
	w.draft = Draft{}
	w.state = to
	return result, nil
}

// Reset discards the draft and starts over from category selection.
func (w *Wizard) Reset() {
	w.draft = Draft{}
	w.state = CategorySelection
}

func (w *Wizard) request() registration.Request {
	d := w.draft.Details
	req := registration.Request{
		FullName:    d.FullName,
		PhoneNumber: d.PhoneNumber,
		Email:       d.Email,
		Password:    d.Password,
		Gender:      d.Gender,
		DateOfBirth: d.DateOfBirth,
		Country:     d.Country,
		State:       d.State,
		Pincode:     d.Pincode,
		Profession:  string(w.draft.Category),
	}
	switch w.draft.Category {
	case model.CategoryStudent:
		req.CollegeName = d.CollegeName
	case model.CategoryProfessional:
		req.CompanyName = d.CompanyName
	}
	return req
}
