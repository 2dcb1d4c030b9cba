package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Spok95/school-attendance/internal/attendance"
	"github.com/Spok95/school-attendance/internal/ctxutil"
	"github.com/Spok95/school-attendance/internal/db"
	"github.com/Spok95/school-attendance/internal/export"
	"github.com/Spok95/school-attendance/internal/logging"
	"github.com/Spok95/school-attendance/internal/metrics"
	"github.com/Spok95/school-attendance/internal/models"
	"github.com/Spok95/school-attendance/internal/observability"
)

type Options struct {
	Threshold     int
	ResolveWindow time.Duration
	OutboxBatch   int
	Location      *time.Location
	Now           func() time.Time
}

// Service: посещаемость, уведомления по пропускам и группа риска.
// Школа всегда передаётся явно.
type Service struct {
	db      *sql.DB
	log     *zap.Logger
	limiter *ClassLimiter
	opts    Options
	kick    chan struct{}
}

func NewService(database *sql.DB, log *zap.Logger, opts Options) *Service {
	if opts.Threshold <= 0 {
		opts.Threshold = attendance.DefaultThreshold
	}
	if opts.ResolveWindow <= 0 {
		opts.ResolveWindow = 7 * 24 * time.Hour
	}
	if opts.OutboxBatch <= 0 {
		opts.OutboxBatch = 50
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:      database,
		log:     log,
		limiter: NewClassLimiter(),
		opts:    opts,
		kick:    make(chan struct{}, 1),
	}
}

// Kicks сигналит обработчику outbox, что появилось новое событие.
func (s *Service) Kicks() <-chan struct{} { return s.kick }

func (s *Service) notifyOutbox() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// SaveAttendance сохраняет журнал класса за день. Журнал, счётчики серий и событие
// outbox пишутся одной транзакцией; уведомления строятся позже обработчиком outbox,
// поэтому их сбой никогда не ломает сохранение.
func (s *Service) SaveAttendance(ctx context.Context, schoolID string, rec models.AttendanceRecord) (int64, error) {
	if err := normalizeRoster(schoolID, &rec); err != nil {
		metrics.AttendanceSaves.WithLabelValues("invalid").Inc()
		return 0, err
	}

	unlock := s.limiter.lock(classKey(schoolID, rec.Date, rec.Grade, rec.ClassName))
	defer unlock()

	var recordID int64
	var eventID string
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		removed, err := db.RemovedFromRoster(ctx, tx, schoolID, rec)
		if err != nil {
			return err
		}
		id, err := db.UpsertAttendance(ctx, tx, schoolID, rec)
		if err != nil {
			return err
		}
		recordID = id

		stale, err := db.ApplyRosterStreaks(ctx, tx, schoolID, rec.Date, rec.Records)
		if err != nil {
			return err
		}
		// ученики, вычеркнутые из журнала, пересчитываются по истории вместе с записанными задним числом
		stale = append(stale, removed...)
		if len(stale) > 0 {
			if err := db.RebuildStreaks(ctx, tx, schoolID, stale); err != nil {
				return err
			}
		}

		eventID, err = db.EnqueueAttendanceEvent(ctx, tx, schoolID, id, rec)
		return err
	})
	if err != nil {
		metrics.AttendanceSaves.WithLabelValues("error").Inc()
		return 0, fmt.Errorf("save attendance: %w", err)
	}

	metrics.AttendanceSaves.WithLabelValues("ok").Inc()
	s.log.Info("attendance saved",
		logging.School(schoolID),
		logging.Class(rec.Date, rec.Grade, rec.ClassName),
		zap.Int("students", len(rec.Records)),
		zap.String("event_id", eventID),
	)
	s.notifyOutbox()
	return recordID, nil
}

func normalizeRoster(schoolID string, rec *models.AttendanceRecord) error {
	if strings.TrimSpace(schoolID) == "" {
		return NewValidationError(errors.New("school id is required"), FieldError{Field: "schoolId", Error: "required"})
	}
	rec.SchoolID = schoolID
	seen := make(map[string]struct{}, len(rec.Records))
	var flds []FieldError
	for i := range rec.Records {
		e := &rec.Records[i]
		if e.Status == "" {
			e.Status = models.StatusPresent
		}
		if !e.Status.Valid() {
			flds = append(flds, FieldError{Field: fmt.Sprintf("Records[%d].Status", i), Error: fmt.Sprintf("unknown status %q", e.Status)})
		}
		if _, dup := seen[e.StudentID]; dup && e.StudentID != "" {
			flds = append(flds, FieldError{Field: fmt.Sprintf("Records[%d].StudentID", i), Error: "duplicate student"})
		}
		seen[e.StudentID] = struct{}{}
	}
	if len(flds) > 0 {
		return NewValidationError(errors.New("invalid roster"), flds...)
	}
	return validateStruct(rec)
}

// ProcessOutbox забирает пачку событий и строит по ним уведомления.
// Каждое событие обрабатывается не более одного раза: при сбое оно помечается failed
// с текстом ошибки и не повторяется.
func (s *Service) ProcessOutbox(ctx context.Context) (int, error) {
	events, err := db.ClaimAttendanceEvents(ctx, s.db, s.opts.OutboxBatch)
	if err != nil {
		return 0, fmt.Errorf("claim events: %w", err)
	}

	failed := 0
	for _, ev := range events {
		if err := s.processEvent(ctx, ev); err != nil {
			failed++
			metrics.OutboxEvents.WithLabelValues("failed").Inc()
			s.log.Error("notification derivation failed",
				logging.School(ev.SchoolID),
				logging.Class(ev.Date, ev.Grade, ev.ClassName),
				zap.String("event_id", ev.ID),
				zap.Error(err),
			)
			observability.CaptureErrWith(err, map[string]string{"school_id": ev.SchoolID, "event_id": ev.ID})
			s.failEvent(ctx, ev.ID, err)
			continue
		}
		metrics.OutboxEvents.WithLabelValues("done").Inc()
	}
	if failed > 0 {
		return len(events), fmt.Errorf("%d of %d attendance events failed", failed, len(events))
	}
	return len(events), nil
}

// failEvent помечает событие failed и тогда, когда контекст пачки уже истёк или отменён.
// Событие не должно остаться в processing.
func (s *Service) failEvent(ctx context.Context, id string, cause error) {
	c, cancel := ctxutil.WithDBTimeout(context.WithoutCancel(ctx))
	defer cancel()
	if err := db.MarkEventFailed(c, s.db, id, cause); err != nil {
		s.log.Error("mark event failed", zap.String("event_id", id), zap.Error(err))
	}
}

// processEvent собирает входные данные один раз на журнал: аудиторию эскалаций,
// последние threshold+1 журналов класса (этого хватает, чтобы отличить серию
// ровно threshold от более длинной) и объяснительные учеников журнала за это окно.
func (s *Service) processEvent(ctx context.Context, ev db.AttendanceEvent) error {
	roster := ev.Roster()

	c, cancel := ctxutil.WithDBTimeout(ctx)
	defer cancel()

	audience, err := db.ListEscalationStaff(c, s.db, ev.SchoolID)
	if err != nil {
		return fmt.Errorf("escalation staff: %w", err)
	}
	history, err := db.ListClassAttendanceUpTo(c, s.db, ev.SchoolID, ev.Grade, ev.ClassName, ev.Date, s.opts.Threshold+1)
	if err != nil {
		return fmt.Errorf("class history: %w", err)
	}

	from := ev.Date
	if len(history) > 0 && history[len(history)-1].Date < from {
		from = history[len(history)-1].Date
	}
	ids := make([]string, 0, len(roster.Records))
	for _, e := range roster.Records {
		ids = append(ids, e.StudentID)
	}
	excuses, err := db.ListExcusesForStudents(c, s.db, ev.SchoolID, ids, from)
	if err != nil {
		return fmt.Errorf("excuses: %w", err)
	}

	derived := attendance.DeriveNotifications(attendance.DeriveInput{
		Roster:    roster,
		History:   history,
		Excuses:   excuses,
		Audience:  audience,
		Threshold: s.opts.Threshold,
	})

	err = db.InTx(c, s.db, func(tx *sql.Tx) error {
		if err := db.InsertNotifications(c, tx, ev.SchoolID, derived.Notifications); err != nil {
			return err
		}
		return db.MarkEventDone(c, tx, ev.ID, len(derived.Notifications))
	})
	if err != nil {
		return err
	}

	for _, n := range derived.Notifications {
		metrics.NotificationsEmitted.WithLabelValues(string(n.Type)).Inc()
	}
	if len(derived.Escalated) > 0 {
		metrics.Escalations.Add(float64(len(derived.Escalated)))
		s.log.Warn("consecutive absence threshold reached",
			logging.School(ev.SchoolID),
			zap.Strings("students", derived.Escalated),
			zap.Int("staff", len(audience)),
		)
	}
	return nil
}

// ClassDay: журнал класса за дату; db.ErrNotFound, если его нет.
func (s *Service) ClassDay(ctx context.Context, schoolID, date, grade, className string) (*models.AttendanceRecord, error) {
	if err := checkDate(date); err != nil {
		return nil, err
	}
	return db.GetAttendance(ctx, s.db, schoolID, date, grade, className)
}

// ClassHistory: вся история класса от новых дат к старым.
func (s *Service) ClassHistory(ctx context.Context, schoolID, grade, className string) ([]models.AttendanceRecord, error) {
	return db.ListClassAttendance(ctx, s.db, schoolID, grade, className)
}

// StudentHistory: личная история ученика от новых дат к старым.
func (s *Service) StudentHistory(ctx context.Context, schoolID, studentID, grade, className string) ([]models.StudentDay, error) {
	return db.StudentAttendance(ctx, s.db, schoolID, studentID, grade, className)
}

// AtRisk: ученики с «сырой» серией пропусков не короче порога, по которым
// не реагировали в течение окна подавления.
func (s *Service) AtRisk(ctx context.Context, schoolID string) ([]models.AtRiskStudent, error) {
	runs, err := db.ListStreaks(ctx, s.db, schoolID, s.opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("streaks: %w", err)
	}
	resolved, err := db.ResolvedSince(ctx, s.db, schoolID, s.opts.Now().Add(-s.opts.ResolveWindow))
	if err != nil {
		return nil, fmt.Errorf("risk actions: %w", err)
	}
	return attendance.AtRisk(runs, resolved, s.opts.Threshold), nil
}

// ResolveRisk фиксирует реакцию сотрудника; саму серию это не сбрасывает.
func (s *Service) ResolveRisk(ctx context.Context, schoolID, studentID, actionType, staffID string) (models.RiskAction, error) {
	if strings.TrimSpace(studentID) == "" || strings.TrimSpace(actionType) == "" {
		return models.RiskAction{}, NewValidationError(errors.New("student id and action type are required"))
	}
	a, err := db.InsertRiskAction(ctx, s.db, schoolID, models.RiskAction{
		StudentID:  studentID,
		ActionType: actionType,
		StaffID:    staffID,
		ResolvedAt: s.opts.Now(),
	})
	if err != nil {
		return a, err
	}
	s.log.Info("risk resolved", logging.School(schoolID), zap.String("student_id", studentID), zap.String("action", actionType))
	return a, nil
}

// Monitor строит сводку по ученикам класса; уважительным считается только APPROVED.
func (s *Service) Monitor(ctx context.Context, schoolID, grade, className string) ([]models.StudentTally, error) {
	history, err := db.ListClassAttendance(ctx, s.db, schoolID, grade, className)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{})
	var ids []string
	for _, rec := range history {
		for _, e := range rec.Records {
			if _, ok := seen[e.StudentID]; !ok {
				seen[e.StudentID] = struct{}{}
				ids = append(ids, e.StudentID)
			}
		}
	}
	excuses, err := db.ListExcusesForStudents(ctx, s.db, schoolID, ids, "")
	if err != nil {
		return nil, err
	}
	return attendance.Monitor(history, excuses), nil
}

// ClearAttendance удаляет все журналы школы вместе со счётчиками серий.
func (s *Service) ClearAttendance(ctx context.Context, schoolID string) (int64, error) {
	var n int64
	err := db.InTx(ctx, s.db, func(tx *sql.Tx) error {
		var err error
		if n, err = db.ClearAttendance(ctx, tx, schoolID); err != nil {
			return err
		}
		return db.ClearStreaks(ctx, tx, schoolID)
	})
	if err != nil {
		return 0, err
	}
	s.log.Warn("attendance cleared", logging.School(schoolID), zap.Int64("records", n))
	return n, nil
}

func (s *Service) CreateExcuse(ctx context.Context, schoolID string, e models.ExcuseRequest) (models.ExcuseRequest, error) {
	if e.Status != "" && !e.Status.Valid() {
		return e, NewValidationError(fmt.Errorf("unknown excuse status %q", e.Status))
	}
	if err := validateStruct(e); err != nil {
		return e, err
	}
	return db.CreateExcuse(ctx, s.db, schoolID, e)
}

func (s *Service) SetExcuseStatus(ctx context.Context, schoolID, id string, status models.ExcuseStatus) (*models.ExcuseRequest, error) {
	if !status.Valid() {
		return nil, NewValidationError(fmt.Errorf("unknown excuse status %q", status))
	}
	return db.SetExcuseStatus(ctx, s.db, schoolID, id, status)
}

func (s *Service) ListExcuses(ctx context.Context, schoolID, studentID string) ([]models.ExcuseRequest, error) {
	return db.ListExcuses(ctx, s.db, schoolID, studentID)
}

func (s *Service) UpsertStaff(ctx context.Context, schoolID string, u models.StaffUser) error {
	if err := validateStruct(u); err != nil {
		return err
	}
	return db.UpsertStaff(ctx, s.db, schoolID, u)
}

func (s *Service) Notifications(ctx context.Context, schoolID, target string, limit int) ([]models.Notification, error) {
	if strings.TrimSpace(target) == "" {
		return nil, NewValidationError(errors.New("target is required"))
	}
	return db.ListNotifications(ctx, s.db, schoolID, target, limit)
}

func (s *Service) MarkNotificationRead(ctx context.Context, schoolID, id string) error {
	return db.MarkNotificationRead(ctx, s.db, schoolID, id)
}

// Events: журнал outbox для разбора сбоев рассылки.
func (s *Service) Events(ctx context.Context, schoolID, status string, limit int) ([]db.AttendanceEvent, error) {
	switch status {
	case db.EventPending, db.EventProcessing, db.EventDone, db.EventFailed:
	default:
		return nil, NewValidationError(fmt.Errorf("unknown event status %q", status))
	}
	return db.ListAttendanceEvents(ctx, s.db, schoolID, status, limit)
}

// ExportAttendance пишет xlsx с журналами школы в окне [from, to) и возвращает имя файла.
// Пустые границы: текущий учебный год.
func (s *Service) ExportAttendance(ctx context.Context, schoolID, from, to string, w io.Writer) (string, error) {
	if from == "" || to == "" {
		f, t := export.SchoolYearBounds(s.opts.Now().In(s.opts.Location))
		if from == "" {
			from = f.Format(models.DateLayout)
		}
		if to == "" {
			to = t.Format(models.DateLayout)
		}
	}
	if err := checkDate(from); err != nil {
		return "", err
	}
	if err := checkDate(to); err != nil {
		return "", err
	}
	records, err := db.ListSchoolAttendanceRange(ctx, s.db, schoolID, from, to)
	if err != nil {
		return "", err
	}
	if err := export.WriteAttendanceWorkbook(w, records); err != nil {
		return "", err
	}
	return export.AttendanceFilename(schoolID, from, to), nil
}

func checkDate(d string) error {
	if _, err := time.Parse(models.DateLayout, d); err != nil {
		return NewValidationError(fmt.Errorf("bad date %q", d), FieldError{Field: "date", Error: "expected YYYY-MM-DD"})
	}
	return nil
}
