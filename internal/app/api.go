package app

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Spok95/school-attendance/internal/ctxutil"
	"github.com/Spok95/school-attendance/internal/db"
	"github.com/Spok95/school-attendance/internal/metrics"
	"github.com/Spok95/school-attendance/internal/models"
	"github.com/Spok95/school-attendance/internal/observability"
)

type apiHandler struct {
	svc *Service
	log *zap.Logger
}

func (h *apiHandler) routes(r chi.Router) {
	r.Put("/attendance", h.saveAttendance)
	r.Delete("/attendance", h.clearAttendance)
	r.Get("/attendance/export", h.exportAttendance)
	r.Get("/attendance/events", h.listEvents)
	r.Get("/attendance/{date}/{grade}/{class}", h.classDay)

	r.Get("/classes/{grade}/{class}/attendance", h.classHistory)
	r.Get("/classes/{grade}/{class}/monitor", h.monitor)
	r.Get("/students/{studentID}/attendance", h.studentHistory)

	r.Get("/risk", h.atRisk)
	r.Post("/risk/{studentID}/resolve", h.resolveRisk)

	r.Get("/excuses", h.listExcuses)
	r.Post("/excuses", h.createExcuse)
	r.Patch("/excuses/{id}", h.setExcuseStatus)

	r.Put("/staff/{staffID}", h.upsertStaff)

	r.Get("/notifications", h.listNotifications)
	r.Post("/notifications/{id}/read", h.markNotificationRead)
}

func (h *apiHandler) saveAttendance(w http.ResponseWriter, r *http.Request) {
	var rec models.AttendanceRecord
	if !decode(w, r, &rec) {
		return
	}
	ctx := ctxutil.WithOp(r.Context(), "save_attendance")
	id, err := h.svc.SaveAttendance(ctx, chi.URLParam(r, "schoolID"), rec)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("X-Record-ID", strconv.FormatInt(id, 10))
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) clearAttendance(w http.ResponseWriter, r *http.Request) {
	n, err := h.svc.ClearAttendance(r.Context(), chi.URLParam(r, "schoolID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *apiHandler) classDay(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.ClassDay(r.Context(), chi.URLParam(r, "schoolID"),
		chi.URLParam(r, "date"), chi.URLParam(r, "grade"), chi.URLParam(r, "class"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *apiHandler) classHistory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.svc.ClassHistory(r.Context(), chi.URLParam(r, "schoolID"), chi.URLParam(r, "grade"), chi.URLParam(r, "class"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *apiHandler) monitor(w http.ResponseWriter, r *http.Request) {
	tallies, err := h.svc.Monitor(r.Context(), chi.URLParam(r, "schoolID"), chi.URLParam(r, "grade"), chi.URLParam(r, "class"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tallies)
}

func (h *apiHandler) studentHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	days, err := h.svc.StudentHistory(r.Context(), chi.URLParam(r, "schoolID"), chi.URLParam(r, "studentID"),
		q.Get("grade"), q.Get("class"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, days)
}

func (h *apiHandler) atRisk(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.AtRisk(r.Context(), chi.URLParam(r, "schoolID"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

type resolveRequest struct {
	ActionType string `json:"actionType"`
	StaffID    string `json:"staffId"`
}

func (h *apiHandler) resolveRisk(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decode(w, r, &req) {
		return
	}
	a, err := h.svc.ResolveRisk(r.Context(), chi.URLParam(r, "schoolID"), chi.URLParam(r, "studentID"), req.ActionType, req.StaffID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *apiHandler) listExcuses(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListExcuses(r.Context(), chi.URLParam(r, "schoolID"), r.URL.Query().Get("studentId"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *apiHandler) createExcuse(w http.ResponseWriter, r *http.Request) {
	var e models.ExcuseRequest
	if !decode(w, r, &e) {
		return
	}
	created, err := h.svc.CreateExcuse(r.Context(), chi.URLParam(r, "schoolID"), e)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

type excuseStatusRequest struct {
	Status models.ExcuseStatus `json:"status"`
}

func (h *apiHandler) setExcuseStatus(w http.ResponseWriter, r *http.Request) {
	var req excuseStatusRequest
	if !decode(w, r, &req) {
		return
	}
	e, err := h.svc.SetExcuseStatus(r.Context(), chi.URLParam(r, "schoolID"), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (h *apiHandler) upsertStaff(w http.ResponseWriter, r *http.Request) {
	var u models.StaffUser
	if !decode(w, r, &u) {
		return
	}
	u.ID = chi.URLParam(r, "staffID")
	if err := h.svc.UpsertStaff(r.Context(), chi.URLParam(r, "schoolID"), u); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) listNotifications(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.Notifications(r.Context(), chi.URLParam(r, "schoolID"), q.Get("target"), limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *apiHandler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkNotificationRead(r.Context(), chi.URLParam(r, "schoolID"), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *apiHandler) listEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := q.Get("status")
	if status == "" {
		status = db.EventFailed
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	list, err := h.svc.Events(r.Context(), chi.URLParam(r, "schoolID"), status, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *apiHandler) exportAttendance(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	// книга собирается в память целиком, поэтому ошибку можно отдать до заголовков
	var buf bytes.Buffer
	name, err := h.svc.ExportAttendance(r.Context(), chi.URLParam(r, "schoolID"), q.Get("from"), q.Get("to"), &buf)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	_, _ = w.Write(buf.Bytes())
}

// fail переводит ошибку сервиса в HTTP-ответ: 400 для валидации, 404 если данных нет,
// 409 при нарушении ограничения БД или чужом ключе, остальное 500 и Sentry.
func (h *apiHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	var ve *ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": ve.Error(), "fields": ve.Fields})
	case errors.Is(err, db.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, db.ErrConflict), db.IsConstraintViolation(err), db.IsUniqueViolation(err):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		metrics.HandlerErrors.Inc()
		rid, _ := ctxutil.RequestID(r.Context())
		op, _ := ctxutil.Op(r.Context())
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", rid),
			zap.String("op", op),
			zap.Error(err),
		)
		observability.CaptureErrWith(err, map[string]string{"request_id": rid, "school_id": chi.URLParam(r, "schoolID")})
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

// parseLimit: пустое значение означает лимит по умолчанию.
func parseLimit(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, NewValidationError(fmt.Errorf("bad limit %q", raw), FieldError{Field: "limit", Error: "must be a non-negative integer"})
	}
	return n, nil
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad json: " + err.Error()})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
