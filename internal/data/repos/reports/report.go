package reports

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	types "github.com/checkyourpaper/checkyourpaper-backend/internal/domain"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/dbctx"
	"github.com/checkyourpaper/checkyourpaper-backend/internal/platform/logger"
)

const defaultListLimit = 200

type ReportRepo interface {
	Create(dbc dbctx.Context, r *types.Report) (*types.Report, error)
	GetForOwner(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.Report, error)
	List(dbc dbctx.Context, ownerUserID uuid.UUID, query string, limit int) ([]*types.Report, error)
	ListMarkschemes(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Report, error)
	CountMarkschemeRefs(dbc dbctx.Context, ownerUserID uuid.UUID, markschemeURL string, excludeID uuid.UUID) (int64, error)
	Rename(dbc dbctx.Context, ownerUserID, id uuid.UUID, title string) (bool, error)
	SoftDelete(dbc dbctx.Context, ownerUserID, id uuid.UUID) (bool, error)
	MarkCompleted(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) (bool, error)
	MarkFailed(dbc dbctx.Context, id uuid.UUID, message string) (bool, error)
	ListStaleProcessing(dbc dbctx.Context, updatedBefore time.Time, limit int) ([]*types.Report, error)
	Touch(dbc dbctx.Context, id uuid.UUID) error
}

type reportRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
	return &reportRepo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

func (r *reportRepo) Create(dbc dbctx.Context, rep *types.Report) (*types.Report, error) {
	if rep == nil {
		return nil, fmt.Errorf("%w: nil report", types.ErrInvalidRecord)
	}
	if rep.ID == uuid.Nil {
		rep.ID = uuid.New()
	}
	rep.Status = types.ReportProcessing
	rep.SchemaVersion = types.ReportSchemaVersion
	rep.GradingResult = nil
	rep.Error = ""
	if err := rep.Validate(); err != nil {
		return nil, err
	}
	if err := dbc.Resolve(r.db).Create(rep).Error; err != nil {
		return nil, err
	}
	return rep, nil
}

// GetForOwner returns nil, nil when the report does not exist or belongs to
// someone else. A stored row that fails validation yields ErrInvalidRecord.
func (r *reportRepo) GetForOwner(dbc dbctx.Context, ownerUserID, id uuid.UUID) (*types.Report, error) {
	if ownerUserID == uuid.Nil || id == uuid.Nil {
		return nil, nil
	}
	var rep types.Report
	err := dbc.Resolve(r.db).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		First(&rep).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := checkRecord(&rep); err != nil {
		return nil, fmt.Errorf("report %s: %w", id, err)
	}
	return &rep, nil
}

func (r *reportRepo) List(dbc dbctx.Context, ownerUserID uuid.UUID, query string, limit int) ([]*types.Report, error) {
	out := []*types.Report{}
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	if limit <= 0 || limit > defaultListLimit {
		limit = defaultListLimit
	}
	q := dbc.Resolve(r.db).Where("owner_user_id = ?", ownerUserID)
	if s := strings.TrimSpace(query); s != "" {
		pattern := "%" + escapeLike(s) + "%"
		q = q.Where("(title ILIKE ? OR worksheet_type ILIKE ?)", pattern, pattern)
	}
	var rows []*types.Report
	if err := q.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.keepValid(rows), nil
}

func (r *reportRepo) ListMarkschemes(dbc dbctx.Context, ownerUserID uuid.UUID) ([]*types.Report, error) {
	out := []*types.Report{}
	if ownerUserID == uuid.Nil {
		return out, nil
	}
	var rows []*types.Report
	if err := dbc.Resolve(r.db).
		Where("owner_user_id = ? AND markscheme_type = ? AND markscheme_url <> ''", ownerUserID, "new").
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return r.keepValid(rows), nil
}

func (r *reportRepo) CountMarkschemeRefs(dbc dbctx.Context, ownerUserID uuid.UUID, markschemeURL string, excludeID uuid.UUID) (int64, error) {
	if ownerUserID == uuid.Nil || strings.TrimSpace(markschemeURL) == "" {
		return 0, nil
	}
	var count int64
	err := dbc.Resolve(r.db).
		Model(&types.Report{}).
		Where("owner_user_id = ? AND markscheme_url = ? AND id <> ?", ownerUserID, markschemeURL, excludeID).
		Count(&count).Error
	return count, err
}

func (r *reportRepo) Rename(dbc dbctx.Context, ownerUserID, id uuid.UUID, title string) (bool, error) {
	res := dbc.Resolve(r.db).
		Model(&types.Report{}).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Updates(map[string]interface{}{
			"title":      title,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *reportRepo) SoftDelete(dbc dbctx.Context, ownerUserID, id uuid.UUID) (bool, error) {
	res := dbc.Resolve(r.db).
		Where("id = ? AND owner_user_id = ?", id, ownerUserID).
		Delete(&types.Report{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// MarkCompleted writes the terminal success state. It returns false when the
// report is no longer processing, so a second terminal write never lands.
func (r *reportRepo) MarkCompleted(dbc dbctx.Context, id uuid.UUID, result datatypes.JSON) (bool, error) {
	if len(result) == 0 {
		return false, fmt.Errorf("%w: completed without grading_result", types.ErrInvalidTransition)
	}
	now := time.Now()
	return r.finish(dbc, id, map[string]interface{}{
		"status":         string(types.ReportCompleted),
		"grading_result": result,
		"error":          "",
		"completed_at":   now,
		"updated_at":     now,
	})
}

func (r *reportRepo) MarkFailed(dbc dbctx.Context, id uuid.UUID, message string) (bool, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		message = "grading failed"
	}
	now := time.Now()
	return r.finish(dbc, id, map[string]interface{}{
		"status":         string(types.ReportFailed),
		"grading_result": nil,
		"error":          message,
		"failed_at":      now,
		"updated_at":     now,
	})
}

func (r *reportRepo) finish(dbc dbctx.Context, id uuid.UUID, updates map[string]interface{}) (bool, error) {
	if id == uuid.Nil {
		return false, nil
	}
	res := dbc.Resolve(r.db).
		Model(&types.Report{}).
		Where("id = ? AND status = ?", id, string(types.ReportProcessing)).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// ListStaleProcessing returns raw rows; only id, owner and timestamps are relied on.
func (r *reportRepo) ListStaleProcessing(dbc dbctx.Context, updatedBefore time.Time, limit int) ([]*types.Report, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []*types.Report
	if err := dbc.Resolve(r.db).
		Where("status = ? AND updated_at < ?", string(types.ReportProcessing), updatedBefore).
		Order("updated_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Touch bumps updated_at on a processing report so the sweeper skips it for a cycle.
func (r *reportRepo) Touch(dbc dbctx.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	return dbc.Resolve(r.db).
		Model(&types.Report{}).
		Where("id = ? AND status = ?", id, string(types.ReportProcessing)).
		Update("updated_at", time.Now()).Error
}

func (r *reportRepo) keepValid(rows []*types.Report) []*types.Report {
	out := make([]*types.Report, 0, len(rows))
	for _, row := range rows {
		if err := checkRecord(row); err != nil {
			r.log.Warn("Skipping invalid report record", "report_id", row.ID, "error", err)
			continue
		}
		out = append(out, row)
	}
	return out
}

func checkRecord(rep *types.Report) error {
	if err := rep.Upgrade(); err != nil {
		return err
	}
	return rep.Validate()
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
