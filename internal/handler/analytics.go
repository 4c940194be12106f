package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/mmeshcher/rentshop/internal/analytics"
	"github.com/mmeshcher/rentshop/internal/model"
	"github.com/mmeshcher/rentshop/internal/report"
	"github.com/mmeshcher/rentshop/internal/service"
	"github.com/mmeshcher/rentshop/internal/validation"
)

// incomeQuery разбирает параметры from, to, groupBy, merchantId и outletId.
// Без from и to берётся текущий месяц.
func (h *Handler) incomeQuery(r *http.Request) (service.IncomeQuery, error) {
	var q service.IncomeQuery

	g, err := analytics.ParseGranularity(r.URL.Query().Get("groupBy"))
	if err != nil {
		return q, err
	}
	q.Granularity = g

	if q.MerchantID, q.OutletID, err = scopeParams(r); err != nil {
		return q, err
	}

	from, err := h.queryTime(r, "from")
	if err != nil {
		return q, err
	}
	to, err := h.queryTime(r, "to")
	if err != nil {
		return q, err
	}

	now := time.Now().In(h.loc)
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, h.loc)
	q.From, q.To = monthStart, monthStart.AddDate(0, 1, -1)
	if from != nil {
		q.From = *from
	}
	if to != nil {
		q.To = *to
	}

	return q, nil
}

// Income возвращает отчёт о доходе за период с разбивкой по дням или месяцам.
func (h *Handler) Income(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q, err := h.incomeQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rep, err := h.service.IncomeReport(r.Context(), p, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, rep)
}

// ExportIncome выгружает отчёт о доходе в XLSX.
func (h *Handler) ExportIncome(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	q, err := h.incomeQuery(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	rep, err := h.service.IncomeReport(r.Context(), p, q)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteIncomeXLSX(&buf, rep); err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", report.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.IncomeFileName(rep)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Dashboard возвращает сводку для главного экрана.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	merchantID, outletID, err := scopeParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	d, err := h.service.Dashboard(r.Context(), p, merchantID, outletID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// Calendar возвращает плановые выдачи и возвраты на месяц month=YYYY-MM.
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	merchantID, outletID, err := scopeParams(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	month := time.Now().In(h.loc)
	if v := r.URL.Query().Get("month"); v != "" {
		month, err = time.ParseInLocation("2006-01", v, h.loc)
		if err != nil {
			h.writeError(w, r, fmt.Errorf("%w: month must be YYYY-MM", validation.ErrInvalid))
			return
		}
	}

	days, err := h.service.Calendar(r.Context(), p, month, merchantID, outletID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, days)
}

// AuditLogs возвращает журнал изменений.
func (h *Handler) AuditLogs(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	var (
		f   model.AuditFilter
		err error
	)
	q := r.URL.Query()
	f.Action = q.Get("action")
	f.EntityType = q.Get("entityType")

	if f.MerchantID, err = queryID(r, "merchantId"); err == nil {
		f.UserID, err = queryID(r, "userId")
	}
	if err == nil {
		f.From, err = h.queryTime(r, "from")
	}
	if err == nil {
		f.To, err = h.queryTime(r, "to")
	}
	if err == nil {
		f.Limit, f.Offset, err = pagination(r)
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	logs, err := h.service.ListAuditLogs(r.Context(), p, f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, logs)
}
