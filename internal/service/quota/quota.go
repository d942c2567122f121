package quotasrv

import (
	"context"
	"time"

	"github.com/fazamuttaqien/remitquota/internal/dto"
	"github.com/fazamuttaqien/remitquota/internal/repository"
	"github.com/fazamuttaqien/remitquota/internal/service"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type quotaService struct {
	limitRepository      repository.LimitRepository
	remittanceRepository repository.RemittanceRepository

	meter             metric.Meter
	tracer            trace.Tracer
	log               *zap.Logger
	operationDuration metric.Float64Histogram
	operationCount    metric.Int64Counter
	errorCount        metric.Int64Counter
	limitsResolved    metric.Int64Counter
	checksAllowed     metric.Int64Counter
	checksDenied      metric.Int64Counter
}

// Resolve implements QuotaServices
func (q *quotaService) Resolve(ctx context.Context, userID uint64, asOf time.Time) (*dto.ResolvedLimit, error) {
	ctx, span := q.tracer.Start(ctx, "service.ResolveLimit")
	defer span.End()

	start := time.Now()

	q.log.Debug("Resolving effective limit",
		zap.Uint64("user_id", userID),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	q.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "resolve_limit"),
			attribute.String("service", "quota"),
		),
	)

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.String("service", "quota"),
	)

	override, err := q.limitRepository.GetOverride(ctx, userID)
	if err != nil {
		span.SetStatus(codes.Error, "Failed to fetch user limit override")
		span.RecordError(err)

		q.log.Error("Failed to fetch user limit override",
			zap.Uint64("user_id", userID),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)

		q.errorCount.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("operation", "resolve_limit"),
				attribute.String("service", "quota"),
				attribute.String("error_type", "repository_error"),
			),
		)

		duration := float64(time.Since(start).Milliseconds())
		q.operationDuration.Record(ctx, duration,
			metric.WithAttributes(
				attribute.String("operation", "resolve_limit"),
				attribute.String("service", "quota"),
				attribute.String("status", "error"),
			),
		)

		return nil, err
	}

	resolved := &dto.ResolvedLimit{}
	if override != nil {
		resolved.Limits = override.Limits
		resolved.Source = dto.SourceOverride
	} else {
		defaultLimit, err := q.limitRepository.GetActiveDefault(ctx)
		if err != nil {
			span.SetStatus(codes.Error, "Failed to fetch default limit")
			span.RecordError(err)

			q.log.Error("Failed to fetch default limit",
				zap.Uint64("user_id", userID),
				zap.String("trace_id", span.SpanContext().TraceID().String()),
				zap.Error(err),
			)

			q.errorCount.Add(ctx, 1,
				metric.WithAttributes(
					attribute.String("operation", "resolve_limit"),
					attribute.String("service", "quota"),
					attribute.String("error_type", "repository_error"),
				),
			)

			duration := float64(time.Since(start).Milliseconds())
			q.operationDuration.Record(ctx, duration,
				metric.WithAttributes(
					attribute.String("operation", "resolve_limit"),
					attribute.String("service", "quota"),
					attribute.String("status", "error"),
				),
			)

			return nil, err
		}

		if defaultLimit == nil {
			// No override and no default means the system is misconfigured.
			// Resolving to zero limits would silently block every transfer.
			err := common.ErrDefaultLimitNotSet
			span.SetStatus(codes.Error, "No default limit configured")
			span.RecordError(err)

			q.log.Error("No default limit configured",
				zap.Uint64("user_id", userID),
				zap.String("trace_id", span.SpanContext().TraceID().String()),
			)

			q.errorCount.Add(ctx, 1,
				metric.WithAttributes(
					attribute.String("operation", "resolve_limit"),
					attribute.String("service", "quota"),
					attribute.String("error_type", "default_limit_not_set"),
				),
			)

			duration := float64(time.Since(start).Milliseconds())
			q.operationDuration.Record(ctx, duration,
				metric.WithAttributes(
					attribute.String("operation", "resolve_limit"),
					attribute.String("service", "quota"),
					attribute.String("status", "error"),
				),
			)

			return nil, err
		}

		resolved.Limits = defaultLimit.Limits
		resolved.Source = dto.SourceDefault
	}

	// Usage windows are computed in UTC regardless of the caller's zone so
	// every instance draws the same day boundary.
	asOfUTC := asOf.UTC()
	startOfDay := time.Date(asOfUTC.Year(), asOfUTC.Month(), asOfUTC.Day(), 0, 0, 0, 0, time.UTC)
	startOfMonth := time.Date(asOfUTC.Year(), asOfUTC.Month(), 1, 0, 0, 0, 0, time.UTC)

	usedToday, err := q.remittanceRepository.SumCompletedInRange(ctx, userID, startOfDay, asOfUTC)
	if err == nil {
		resolved.UsedThisMonth, err = q.remittanceRepository.SumCompletedInRange(ctx, userID, startOfMonth, asOfUTC)
	}
	if err != nil {
		span.SetStatus(codes.Error, "Failed to sum completed remittances")
		span.RecordError(err)

		q.log.Error("Failed to sum completed remittances",
			zap.Uint64("user_id", userID),
			zap.String("trace_id", span.SpanContext().TraceID().String()),
			zap.Error(err),
		)

		q.errorCount.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("operation", "resolve_limit"),
				attribute.String("service", "quota"),
				attribute.String("error_type", "usage_sum_error"),
			),
		)

		duration := float64(time.Since(start).Milliseconds())
		q.operationDuration.Record(ctx, duration,
			metric.WithAttributes(
				attribute.String("operation", "resolve_limit"),
				attribute.String("service", "quota"),
				attribute.String("status", "error"),
			),
		)

		return nil, err
	}
	resolved.UsedToday = usedToday

	resolved.AvailableDaily = max(0, resolved.Limits.Daily-resolved.UsedToday)
	resolved.AvailableMonthly = max(0, resolved.Limits.Monthly-resolved.UsedThisMonth)

	q.limitsResolved.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("service", "quota"),
			attribute.String("source", string(resolved.Source)),
		),
	)

	duration := float64(time.Since(start).Milliseconds())
	q.operationDuration.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("operation", "resolve_limit"),
			attribute.String("service", "quota"),
			attribute.String("status", "success"),
		),
	)

	q.log.Info("Effective limit resolved",
		zap.Uint64("user_id", userID),
		zap.String("source", string(resolved.Source)),
		zap.Float64("available_daily", resolved.AvailableDaily),
		zap.Float64("available_monthly", resolved.AvailableMonthly),
		zap.Float64("duration_ms", duration),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	span.SetStatus(codes.Ok, "Effective limit resolved")
	span.SetAttributes(
		attribute.String("limit.source", string(resolved.Source)),
		attribute.Float64("limit.available_daily", resolved.AvailableDaily),
		attribute.Float64("limit.available_monthly", resolved.AvailableMonthly),
	)

	return resolved, nil
}

// GetUserLimit implements QuotaServices
func (q *quotaService) GetUserLimit(ctx context.Context, userID uint64) (*dto.UserLimitResponse, error) {
	ctx, span := q.tracer.Start(ctx, "service.GetUserLimit")
	defer span.End()

	span.SetAttributes(
		attribute.Int64("user.id", int64(userID)),
		attribute.String("service", "quota"),
	)

	resolved, err := q.Resolve(ctx, userID, time.Now())
	if err != nil {
		return nil, err
	}

	return &dto.UserLimitResponse{
		DailyLimit:   resolved.Limits.Daily,
		MonthlyLimit: resolved.Limits.Monthly,
		SingleLimit:  resolved.Limits.Single,
		LimitType:    resolved.Source,
	}, nil
}

// CheckLimit implements QuotaServices
func (q *quotaService) CheckLimit(ctx context.Context, req dto.CheckLimitRequest) (*dto.CheckLimitResponse, error) {
	ctx, span := q.tracer.Start(ctx, "service.CheckLimit")
	defer span.End()

	start := time.Now()

	q.log.Debug("Checking transfer amount against limits",
		zap.Uint64("user_id", req.UserID),
		zap.Float64("amount", req.Amount),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
	)

	q.operationCount.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("operation", "check_limit"),
			attribute.String("service", "quota"),
		),
	)

	span.SetAttributes(
		attribute.Int64("user.id", int64(req.UserID)),
		attribute.Float64("check.amount", req.Amount),
		attribute.String("service", "quota"),
	)

	resolved, err := q.Resolve(ctx, req.UserID, time.Now())
	if err != nil {
		span.SetStatus(codes.Error, "Failed to resolve limit for check")
		span.RecordError(err)

		q.errorCount.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("operation", "check_limit"),
				attribute.String("service", "quota"),
				attribute.String("error_type", "resolve_error"),
			),
		)

		duration := float64(time.Since(start).Milliseconds())
		q.operationDuration.Record(ctx, duration,
			metric.WithAttributes(
				attribute.String("operation", "check_limit"),
				attribute.String("service", "quota"),
				attribute.String("status", "error"),
			),
		)

		return nil, err
	}

	response := &dto.CheckLimitResponse{
		Allowed:         true,
		RequestedAmount: req.Amount,
		DailyLimit:      resolved.Limits.Daily,
		MonthlyLimit:    resolved.Limits.Monthly,
		TodayAmount:     resolved.UsedToday,
		MonthAmount:     resolved.UsedThisMonth,
	}

	dailyExcess := resolved.UsedToday + req.Amount - resolved.Limits.Daily
	monthlyExcess := resolved.UsedThisMonth + req.Amount - resolved.Limits.Monthly

	switch {
	case dailyExcess > 0 && monthlyExcess > 0:
		response.Allowed = false
		response.ExceededType = dto.ExceededBoth
		response.DailyExceededAmount = dailyExcess
		response.MonthlyExceededAmount = monthlyExcess
	case dailyExcess > 0:
		response.Allowed = false
		response.ExceededType = dto.ExceededDaily
		response.DailyExceededAmount = dailyExcess
	case monthlyExcess > 0:
		response.Allowed = false
		response.ExceededType = dto.ExceededMonthly
		response.MonthlyExceededAmount = monthlyExcess
	}

	if response.Allowed {
		q.checksAllowed.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("service", "quota"),
			),
		)
	} else {
		q.checksDenied.Add(ctx, 1,
			metric.WithAttributes(
				attribute.String("service", "quota"),
				attribute.String("exceeded_type", string(response.ExceededType)),
			),
		)
	}

	duration := float64(time.Since(start).Milliseconds())
	q.operationDuration.Record(ctx, duration,
		metric.WithAttributes(
			attribute.String("operation", "check_limit"),
			attribute.String("service", "quota"),
			attribute.String("status", "success"),
		),
	)

	q.log.Info("Limit check completed",
		zap.Uint64("user_id", req.UserID),
		zap.Float64("amount", req.Amount),
		zap.Bool("allowed", response.Allowed),
		zap.String("exceeded_type", string(response.ExceededType)),
		zap.Float64("duration_ms", duration),
		zap.String("trace_id", span.SpanContext().TraceID().String()),
		zap.String("span_id", span.SpanContext().SpanID().String()),
	)

	span.SetStatus(codes.Ok, "Limit check completed")
	span.SetAttributes(
		attribute.Bool("check.allowed", response.Allowed),
		attribute.String("check.exceeded_type", string(response.ExceededType)),
	)

	return response, nil
}

func NewQuotaService(
	limitRepository repository.LimitRepository,
	remittanceRepository repository.RemittanceRepository,
	meter metric.Meter,
	tracer trace.Tracer,
	log *zap.Logger,
) service.QuotaServices {
	operationDuration, _ := meter.Float64Histogram(
		"service.operation.duration",
		metric.WithDescription("Duration of service operations"),
		metric.WithUnit("ms"),
	)

	operationCount, _ := meter.Int64Counter(
		"service.operation.count",
		metric.WithDescription("Number of service operations"),
		metric.WithUnit("{operation}"),
	)

	errorCount, _ := meter.Int64Counter(
		"service.error.count",
		metric.WithDescription("Number of service errors"),
		metric.WithUnit("{error}"),
	)

	limitsResolved, _ := meter.Int64Counter(
		"service.limits.resolved",
		metric.WithDescription("Number of effective limits resolved"),
		metric.WithUnit("{limit}"),
	)

	checksAllowed, _ := meter.Int64Counter(
		"service.checks.allowed",
		metric.WithDescription("Number of limit checks that passed"),
		metric.WithUnit("{check}"),
	)

	checksDenied, _ := meter.Int64Counter(
		"service.checks.denied",
		metric.WithDescription("Number of limit checks that exceeded a bound"),
		metric.WithUnit("{check}"),
	)

	return &quotaService{
		limitRepository:      limitRepository,
		remittanceRepository: remittanceRepository,

		meter:             meter,
		tracer:            tracer,
		log:               log,
		operationDuration: operationDuration,
		operationCount:    operationCount,
		errorCount:        errorCount,
		limitsResolved:    limitsResolved,
		checksAllowed:     checksAllowed,
		checksDenied:      checksDenied,
	}
}
