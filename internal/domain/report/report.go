package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CurrentSchemaVersion is the shape written by this service.
// Version 0 rows predate the column and are migrated on read.
const CurrentSchemaVersion = 1

const MaxTitleLength = 200

var (
	ErrInvalidRecord     = errors.New("invalid report record")
	ErrInvalidTransition = errors.New("invalid report status transition")
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// CanTransition reports whether from -> to is allowed. Only processing may move,
// and only to a terminal status.
func CanTransition(from, to Status) bool {
	return from == StatusProcessing && to.Terminal()
}

type WorksheetType string

const (
	WorksheetMath       WorksheetType = "Math"
	WorksheetBalanced   WorksheetType = "Balanced"
	WorksheetEssayHeavy WorksheetType = "Essay-Heavy"
)

func (w WorksheetType) Valid() bool {
	switch w {
	case WorksheetMath, WorksheetBalanced, WorksheetEssayHeavy:
		return true
	}
	return false
}

type MarkschemeType string

const (
	MarkschemeSkip     MarkschemeType = "skip"
	MarkschemeExisting MarkschemeType = "existing"
	MarkschemeNew      MarkschemeType = "new"
)

func (m MarkschemeType) Valid() bool {
	switch m {
	case MarkschemeSkip, MarkschemeExisting, MarkschemeNew:
		return true
	}
	return false
}

// Options selects which sections the student wants in the report.
type Options struct {
	FullGrade          bool `json:"fullGrade"`
	MistakeExplanation bool `json:"mistakeExplanation"`
	Tips               bool `json:"tips"`
	SkillsSummary      bool `json:"skillsSummary"`
}

func DefaultOptions() Options {
	return Options{FullGrade: true, MistakeExplanation: true, Tips: true, SkillsSummary: true}
}

type Report struct {
	ID             uuid.UUID                    `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	OwnerUserID    uuid.UUID                    `gorm:"type:uuid;not null;index" json:"owner_user_id"`
	Title          string                       `gorm:"column:title;not null" json:"title"`
	WorksheetType  WorksheetType                `gorm:"column:worksheet_type;not null" json:"worksheet_type"`
	WorksheetURL   string                       `gorm:"column:worksheet_url;not null" json:"worksheet_url"`
	MarkschemeType MarkschemeType               `gorm:"column:markscheme_type;not null" json:"markscheme_type"`
	MarkschemeID   *uuid.UUID                   `gorm:"type:uuid;column:markscheme_id;index" json:"markscheme_id,omitempty"`
	MarkschemeURL  string                       `gorm:"column:markscheme_url" json:"markscheme_url,omitempty"`
	ReportOptions  datatypes.JSONType[Options]  `gorm:"column:report_options;type:jsonb" json:"report_options"`
	Status         Status                       `gorm:"column:status;not null;index" json:"status"`
	GradingResult  datatypes.JSON               `gorm:"column:grading_result;type:jsonb" json:"grading_result,omitempty"`
	Error          string                       `gorm:"column:error" json:"error,omitempty"`
	SchemaVersion  int                          `gorm:"column:schema_version;not null;default:0" json:"schema_version"`
	CreatedAt      time.Time                    `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt      time.Time                    `gorm:"not null;default:now()" json:"updated_at"`
	CompletedAt    *time.Time                   `gorm:"column:completed_at" json:"completed_at,omitempty"`
	FailedAt       *time.Time                   `gorm:"column:failed_at" json:"failed_at,omitempty"`
	DeletedAt      gorm.DeletedAt               `gorm:"index" json:"-"`
}

func (Report) TableName() string { return "report" }

func (r *Report) Options() Options { return r.ReportOptions.Data() }

// Result decodes the stored grading result. It returns nil when none is attached.
func (r *Report) Result() (*GradingResult, error) {
	if len(r.GradingResult) == 0 || strings.TrimSpace(string(r.GradingResult)) == "null" {
		return nil, nil
	}
	var out GradingResult
	if err := json.Unmarshal(r.GradingResult, &out); err != nil {
		return nil, fmt.Errorf("%w: grading_result: %v", ErrInvalidRecord, err)
	}
	return &out, nil
}

// HasMarkscheme reports whether grading should attach a markscheme.
func (r *Report) HasMarkscheme() bool {
	return r.MarkschemeType != MarkschemeSkip && strings.TrimSpace(r.MarkschemeURL) != ""
}

// Upgrade migrates an older stored shape to CurrentSchemaVersion in memory.
func (r *Report) Upgrade() error {
	switch r.SchemaVersion {
	case CurrentSchemaVersion:
		return nil
	case 0:
		if r.WorksheetType == "" {
			r.WorksheetType = WorksheetBalanced
		}
		if r.MarkschemeType == "" {
			if strings.TrimSpace(r.MarkschemeURL) != "" {
				r.MarkschemeType = MarkschemeNew
			} else {
				r.MarkschemeType = MarkschemeSkip
			}
		}
		r.SchemaVersion = CurrentSchemaVersion
		return nil
	default:
		return fmt.Errorf("%w: unsupported schema_version %d", ErrInvalidRecord, r.SchemaVersion)
	}
}

// Validate enforces the record invariants. Callers should Upgrade first.
func (r *Report) Validate() error {
	if r == nil {
		return fmt.Errorf("%w: nil report", ErrInvalidRecord)
	}
	if r.SchemaVersion != CurrentSchemaVersion {
		return fmt.Errorf("%w: schema_version %d", ErrInvalidRecord, r.SchemaVersion)
	}
	if r.OwnerUserID == uuid.Nil {
		return fmt.Errorf("%w: missing owner", ErrInvalidRecord)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: status %q", ErrInvalidRecord, r.Status)
	}
	if !r.WorksheetType.Valid() {
		return fmt.Errorf("%w: worksheet_type %q", ErrInvalidRecord, r.WorksheetType)
	}
	if !r.MarkschemeType.Valid() {
		return fmt.Errorf("%w: markscheme_type %q", ErrInvalidRecord, r.MarkschemeType)
	}
	if strings.TrimSpace(r.WorksheetURL) == "" {
		return fmt.Errorf("%w: missing worksheet_url", ErrInvalidRecord)
	}
	hasResult := len(r.GradingResult) > 0 && strings.TrimSpace(string(r.GradingResult)) != "null"
	switch r.Status {
	case StatusCompleted:
		if !hasResult {
			return fmt.Errorf("%w: completed without grading_result", ErrInvalidRecord)
		}
		if r.Error != "" {
			return fmt.Errorf("%w: completed with error", ErrInvalidRecord)
		}
	case StatusFailed:
		if hasResult {
			return fmt.Errorf("%w: failed with grading_result", ErrInvalidRecord)
		}
		if strings.TrimSpace(r.Error) == "" {
			return fmt.Errorf("%w: failed without error", ErrInvalidRecord)
		}
	case StatusProcessing:
		if hasResult || r.Error != "" {
			return fmt.Errorf("%w: processing with terminal fields", ErrInvalidRecord)
		}
	}
	return nil
}
