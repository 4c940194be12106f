package service

import (
	"context"
	"time"

	"github.com/mmeshcher/rentshop/internal/analytics"
	"github.com/mmeshcher/rentshop/internal/model"
)

// IncomeQuery задаёт параметры отчёта о доходе.
type IncomeQuery struct {
	From        time.Time
	To          time.Time
	Granularity analytics.Granularity
	MerchantID  *int64
	OutletID    *int64
}

// IncomeReport строит отчёт о доходе за период.
// Доход каждый раз пересчитывается по текущему состоянию заказов.
func (s *Service) IncomeReport(ctx context.Context, p model.Principal, q IncomeQuery) (*analytics.IncomeReport, error) {
	merchantID, outletID, err := s.reportScope(p, q.MerchantID, q.OutletID)
	if err != nil {
		return nil, err
	}

	buckets, err := analytics.Buckets(q.From, q.To, q.Granularity, s.resolver.Location())
	if err != nil {
		return nil, err
	}

	orders, err := s.repo.ListOrdersForPeriod(ctx, model.PeriodOrdersFilter{
		MerchantID: merchantID,
		OutletID:   outletID,
		From:       buckets[0].Start,
		Until:      buckets[len(buckets)-1].Until,
	})
	if err != nil {
		return nil, err
	}

	return analytics.BuildIncomeReport(orders, q.From, q.To, q.Granularity, s.resolver)
}

// Dashboard возвращает сводку для главного экрана.
func (s *Service) Dashboard(ctx context.Context, p model.Principal, merchantID, outletID *int64) (*analytics.Dashboard, error) {
	merchantID, outletID, err := s.reportScope(p, merchantID, outletID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	loc := s.resolver.Location()
	local := now.In(loc)
	since := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)

	orders, err := s.repo.ListOrdersForDashboard(ctx, merchantID, outletID, since)
	if err != nil {
		return nil, err
	}

	d := analytics.BuildDashboard(orders, now, s.resolver)
	return &d, nil
}

// Calendar возвращает плановые выдачи и возвраты на каждый день месяца.
func (s *Service) Calendar(ctx context.Context, p model.Principal, month time.Time, merchantID, outletID *int64) ([]analytics.CalendarDay, error) {
	merchantID, outletID, err := s.reportScope(p, merchantID, outletID)
	if err != nil {
		return nil, err
	}

	loc := s.resolver.Location()
	local := month.In(loc)
	start := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, loc)

	orders, err := s.repo.ListOrdersForCalendar(ctx, model.PeriodOrdersFilter{
		MerchantID: merchantID,
		OutletID:   outletID,
		From:       start,
		Until:      start.AddDate(0, 1, 0),
	})
	if err != nil {
		return nil, err
	}

	return analytics.BuildCalendar(orders, start, loc), nil
}

// ListAuditLogs возвращает журнал изменений. Владелец арендатора видит только свои записи.
func (s *Service) ListAuditLogs(ctx context.Context, p model.Principal, f model.AuditFilter) ([]model.AuditLog, error) {
	if p.Role == model.RoleOutletStaff {
		return nil, ErrForbidden
	}
	scope, err := merchantScope(p, f.MerchantID)
	if err != nil {
		return nil, err
	}
	f.MerchantID = scope
	return s.repo.ListAuditLogs(ctx, f)
}

func (s *Service) reportScope(p model.Principal, merchantID, outletID *int64) (*int64, *int64, error) {
	m, err := merchantScope(p, merchantID)
	if err != nil {
		return nil, nil, err
	}
	o, err := outletScope(p, outletID)
	if err != nil {
		return nil, nil, err
	}
	return m, o, nil
}
