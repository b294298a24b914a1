package processor

import (
	"fmt"
	"math"
	"strconv"

	"postapi/internal/content"
)

const (
	BundleReport   = "report"
	BundleJob      = "job"
	BundleTraining = "training"
)

// TermID is a taxonomy term id. Providers send ids as JSON numbers and some
// encode them as floats, so any integral number is accepted: 123, 123.0, 1.23e2.
type TermID int

func (id *TermID) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		*id = TermID(n)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return fmt.Errorf("term id %s is not an integer", s)
	}
	*id = TermID(f)
	return nil
}

func termIDs(ids []TermID) []int {
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out
}

type FileRef struct {
	URL         string `json:"url" validate:"required,url"`
	Description string `json:"description" validate:"max=1024"`
	Language    string `json:"language" validate:"omitempty,len=2"`
}

type ImageRef struct {
	URL       string `json:"url" validate:"required,url"`
	Caption   string `json:"caption" validate:"max=1024"`
	Copyright string `json:"copyright" validate:"max=255"`
}

func attachmentURLs(files []FileRef, image *ImageRef) []string {
	urls := make([]string, 0, len(files)+1)
	for _, f := range files {
		urls = append(urls, f.URL)
	}
	if image != nil {
		urls = append(urls, image.URL)
	}
	return urls
}

type ReportPayload struct {
	Title          string    `json:"title" validate:"required,min=10,max=255"`
	Body           string    `json:"body" validate:"max=100000"`
	URL            string    `json:"url" validate:"required,url"`
	Source         []TermID  `json:"source" validate:"required,min=1,dive,gt=0"`
	Language       []TermID  `json:"language" validate:"required,min=1,dive,gt=0"`
	Country        []TermID  `json:"country" validate:"omitempty,dive,gt=0"`
	PrimaryCountry TermID    `json:"primary_country" validate:"omitempty,gt=0"`
	Format         []TermID  `json:"format" validate:"required,min=1,dive,gt=0"`
	Theme          []TermID  `json:"theme" validate:"omitempty,dive,gt=0"`
	Published      string    `json:"published" validate:"required,datetime=2006-01-02"`
	Origin         string    `json:"origin" validate:"omitempty,url"`
	File           []FileRef `json:"file" validate:"omitempty,dive"`
	Image          *ImageRef `json:"image" validate:"omitempty"`
}

func (p ReportPayload) DocumentURL() string      { return p.URL }
func (p ReportPayload) DocumentTitle() string    { return p.Title }
func (p ReportPayload) Sources() []int           { return termIDs(p.Source) }
func (p ReportPayload) AttachmentURLs() []string { return attachmentURLs(p.File, p.Image) }

type JobPayload struct {
	Title          string   `json:"title" validate:"required,min=10,max=255"`
	Body           string   `json:"body" validate:"required,min=400,max=100000"`
	HowToApply     string   `json:"how_to_apply" validate:"required,min=100,max=10000"`
	URL            string   `json:"url" validate:"required,url"`
	Source         []TermID `json:"source" validate:"required,min=1,dive,gt=0"`
	Country        []TermID `json:"country" validate:"omitempty,dive,gt=0"`
	City           string   `json:"city" validate:"max=255"`
	JobType        TermID   `json:"job_type" validate:"required,gt=0"`
	Experience     TermID   `json:"job_experience" validate:"required,gt=0"`
	CareerCategory []TermID `json:"career_categories" validate:"omitempty,dive,gt=0"`
	Theme          []TermID `json:"theme" validate:"omitempty,dive,gt=0"`
	ClosingDate    string   `json:"job_closing_date" validate:"required,datetime=2006-01-02"`
}

func (p JobPayload) DocumentURL() string      { return p.URL }
func (p JobPayload) DocumentTitle() string    { return p.Title }
func (p JobPayload) Sources() []int           { return termIDs(p.Source) }
func (p JobPayload) AttachmentURLs() []string { return nil }

type TrainingPayload struct {
	Title                string   `json:"title" validate:"required,min=10,max=255"`
	Body                 string   `json:"body" validate:"required,min=400,max=100000"`
	HowToRegister        string   `json:"how_to_register" validate:"required,min=100,max=10000"`
	URL                  string   `json:"url" validate:"required,url"`
	EventURL             string   `json:"event_url" validate:"omitempty,url"`
	Source               []TermID `json:"source" validate:"required,min=1,dive,gt=0"`
	Country              []TermID `json:"country" validate:"omitempty,dive,gt=0"`
	City                 string   `json:"city" validate:"max=255"`
	Format               []TermID `json:"training_format" validate:"required,min=1,dive,gt=0"`
	TrainingType         []TermID `json:"training_type" validate:"required,min=1,dive,gt=0"`
	Language             []TermID `json:"training_language" validate:"required,min=1,dive,gt=0"`
	Cost                 string   `json:"cost" validate:"required,oneof=free fee"`
	FeeInformation       string   `json:"fee_information" validate:"required_if=Cost fee,max=10000"`
	Ongoing              bool     `json:"ongoing"`
	StartDate            string   `json:"training_start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate              string   `json:"training_end_date" validate:"omitempty,datetime=2006-01-02"`
	RegistrationDeadline string   `json:"registration_deadline" validate:"omitempty,datetime=2006-01-02"`
}

func (p TrainingPayload) DocumentURL() string   { return p.URL }
func (p TrainingPayload) DocumentTitle() string { return p.Title }
func (p TrainingPayload) Sources() []int        { return termIDs(p.Source) }

// AttachmentURLs includes the event page, which must also belong to the provider.
func (p TrainingPayload) AttachmentURLs() []string {
	if p.EventURL == "" {
		return nil
	}
	return []string{p.EventURL}
}

func NewReportProcessor(providers ProviderLookup, repo content.Repository) Processor {
	return newDocumentProcessor[ReportPayload](BundleReport, providers, repo)
}

func NewJobProcessor(providers ProviderLookup, repo content.Repository) Processor {
	return newDocumentProcessor[JobPayload](BundleJob, providers, repo)
}

func NewTrainingProcessor(providers ProviderLookup, repo content.Repository) Processor {
	return newDocumentProcessor[TrainingPayload](BundleTraining, providers, repo)
}

// DefaultProcessors returns the processors for every supported bundle.
func DefaultProcessors(providers ProviderLookup, repo content.Repository) []Processor {
	return []Processor{
		NewReportProcessor(providers, repo),
		NewJobProcessor(providers, repo),
		NewTrainingProcessor(providers, repo),
	}
}
