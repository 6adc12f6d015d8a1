package http

import (
	"time"

	"mealbook/internal/ledger"
	"mealbook/internal/session"
)

type openRequest struct {
	Month *int `json:"month" validate:"required,min=0,max=11"`
	Year  int  `json:"year" validate:"required,min=1900,max=9999"`
}

type detailsRequest struct {
	SchoolName  string `json:"schoolName" validate:"max=200"`
	ClassName   string `json:"className" validate:"max=100"`
	TeacherName string `json:"teacherName" validate:"max=200"`
	Location    string `json:"location" validate:"max=200"`
}

func (d detailsRequest) toDetails() ledger.Details {
	return ledger.Details{
		SchoolName:  sanitizeInput(d.SchoolName),
		ClassName:   sanitizeInput(d.ClassName),
		TeacherName: sanitizeInput(d.TeacherName),
		Location:    sanitizeInput(d.Location),
	}
}

type quotaRequest struct {
	S  int `json:"S" validate:"min=0,max=31"`
	T1 int `json:"T1" validate:"min=0,max=31"`
	T2 int `json:"T2" validate:"min=0,max=31"`
}

type signatureRequest struct {
	Day   int `json:"day" validate:"min=1,max=31"`
	Month int `json:"month" validate:"min=1,max=12"`
	Year  int `json:"year" validate:"min=1900,max=9999"`
}

type renameRequest struct {
	Name string `json:"name" validate:"max=100"`
}

type cellRequest struct {
	StudentID string `json:"studentId" validate:"required,max=64"`
	Day       int    `json:"day" validate:"min=1,max=31"`
	Meal      string `json:"meal" validate:"required,meal"`
	Value     *bool  `json:"value,omitempty"`
}

func (c cellRequest) meal() (ledger.Meal, error) { return ledger.ParseMeal(c.Meal) }

type columnRequest struct {
	Day  int    `json:"day" validate:"min=1,max=31"`
	Meal string `json:"meal" validate:"required,meal"`
}

func (c columnRequest) meal() (ledger.Meal, error) { return ledger.ParseMeal(c.Meal) }

type applyImportRequest struct {
	Names []string `json:"names" validate:"required,min=1,max=200,dive,max=100"`
}

type studentResponse struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Meals ledger.DayMarks `json:"meals"`
}

type ledgerResponse struct {
	OwnerID       string                 `json:"ownerId"`
	Month         int                    `json:"month"`
	Year          int                    `json:"year"`
	DaysInMonth   int                    `json:"daysInMonth"`
	SchoolName    string                 `json:"schoolName"`
	ClassName     string                 `json:"className"`
	TeacherName   string                 `json:"teacherName"`
	Location      string                 `json:"location"`
	StandardMeals ledger.Quota           `json:"standardMeals"`
	SignatureDate ledger.SignatureDate   `json:"signatureDate"`
	Students      []studentResponse      `json:"students"`
	Totals        []ledger.StudentTotals `json:"totals"`
	Headcounts    []ledger.Counts        `json:"headcounts"`
	UpdatedAt     *time.Time             `json:"updatedAt,omitempty"`
	Status        session.Status         `json:"status"`
}

func newLedgerResponse(l ledger.Ledger, st session.Status) ledgerResponse {
	resp := ledgerResponse{
		OwnerID:       l.OwnerID,
		Month:         l.Month,
		Year:          l.Year,
		DaysInMonth:   l.DaysInMonth(),
		SchoolName:    l.SchoolName,
		ClassName:     l.ClassName,
		TeacherName:   l.TeacherName,
		Location:      l.Location,
		StandardMeals: l.StandardMeals,
		SignatureDate: l.EffectiveSignatureDate(),
		Students:      make([]studentResponse, len(l.Students)),
		Totals:        l.Totals(),
		Headcounts:    l.DailyHeadcounts(),
		Status:        st,
	}
	for i, s := range l.Students {
		meals := s.Meals
		if meals == nil {
			meals = ledger.DayMarks{}
		}
		resp.Students[i] = studentResponse{ID: s.ID, Name: s.Name, Meals: meals}
	}
	if !l.UpdatedAt.IsZero() {
		t := l.UpdatedAt
		resp.UpdatedAt = &t
	}
	return resp
}

type openResponse struct {
	Ledger  ledgerResponse `json:"ledger"`
	Seeded  bool           `json:"seeded"`
	Created bool           `json:"created"`
}

type studentAddedResponse struct {
	Student studentResponse `json:"student"`
	Ledger  ledgerResponse  `json:"ledger"`
}

type syncResponse struct {
	Result ledger.SyncResult `json:"result"`
	Ledger ledgerResponse    `json:"ledger"`
}
