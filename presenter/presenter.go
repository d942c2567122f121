package presenter

import (
	"github.com/fazamuttaqien/remitquota/config"
	adminhandler "github.com/fazamuttaqien/remitquota/internal/handler/admin"
	quotahandler "github.com/fazamuttaqien/remitquota/internal/handler/quota"
	requesthandler "github.com/fazamuttaqien/remitquota/internal/handler/request"
	limitrepo "github.com/fazamuttaqien/remitquota/internal/repository/limit"
	outboxrepo "github.com/fazamuttaqien/remitquota/internal/repository/outbox"
	remittancerepo "github.com/fazamuttaqien/remitquota/internal/repository/remittance"
	requestrepo "github.com/fazamuttaqien/remitquota/internal/repository/request"
	userrepo "github.com/fazamuttaqien/remitquota/internal/repository/user"
	adminsrv "github.com/fazamuttaqien/remitquota/internal/service/admin"
	cloudinarysrv "github.com/fazamuttaqien/remitquota/internal/service/cloudinary"
	outboxsrv "github.com/fazamuttaqien/remitquota/internal/service/outbox"
	quotasrv "github.com/fazamuttaqien/remitquota/internal/service/quota"
	requestsrv "github.com/fazamuttaqien/remitquota/internal/service/request"
	"github.com/fazamuttaqien/remitquota/pkg/mailer"
	"github.com/fazamuttaqien/remitquota/pkg/telemetry"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Presenter struct {
	QuotaPresenter   *quotahandler.QuotaHandler
	RequestPresenter *requesthandler.RequestHandler
	AdminPresenter   *adminhandler.AdminHandler
	OutboxDispatcher *outboxsrv.Dispatcher
}

func NewPresenter(
	db *gorm.DB,
	cfg *config.Config,
	tel *telemetry.OpenTelemetry,
) Presenter {
	// Repository
	limitRepositoryMeter := tel.MeterProvider.Meter("limit-repository-meter")
	limitRepositoryTracer := tel.TracerProvider.Tracer("limit-repository-tracer")
	limitRepository := limitrepo.NewLimitRepository(
		db,
		limitRepositoryMeter,
		limitRepositoryTracer,
		tel.Log,
	)

	requestRepositoryMeter := tel.MeterProvider.Meter("request-repository-meter")
	requestRepositoryTracer := tel.TracerProvider.Tracer("request-repository-tracer")
	requestRepository := requestrepo.NewRequestRepository(
		db,
		requestRepositoryMeter,
		requestRepositoryTracer,
		tel.Log,
	)

	remittanceRepositoryMeter := tel.MeterProvider.Meter("remittance-repository-meter")
	remittanceRepositoryTracer := tel.TracerProvider.Tracer("remittance-repository-tracer")
	remittanceRepository := remittancerepo.NewRemittanceRepository(
		db,
		remittanceRepositoryMeter,
		remittanceRepositoryTracer,
		tel.Log,
	)

	userRepositoryMeter := tel.MeterProvider.Meter("user-repository-meter")
	userRepositoryTracer := tel.TracerProvider.Tracer("user-repository-tracer")
	userRepository := userrepo.NewUserRepository(
		db,
		userRepositoryMeter,
		userRepositoryTracer,
		tel.Log,
	)

	outboxRepositoryMeter := tel.MeterProvider.Meter("outbox-repository-meter")
	outboxRepositoryTracer := tel.TracerProvider.Tracer("outbox-repository-tracer")
	outboxRepository := outboxrepo.NewOutboxRepository(
		db,
		outboxRepositoryMeter,
		outboxRepositoryTracer,
		tel.Log,
	)

	// File storage
	fileStore, err := cloudinarysrv.NewCloudinaryStore(cloudinarysrv.CloudinaryConfig{
		CloudName: cfg.CLOUDINARY_CLOUD,
		APIKey:    cfg.CLOUDINARY_API_KEY,
		APISecret: cfg.CLOUDINARY_API_SECRET,
	}, tel.Log)
	if err != nil {
		zap.L().Fatal("Failed to initialize Cloudinary store", zap.Error(err))
	}

	// Service
	quotaServiceMeter := tel.MeterProvider.Meter("quota-service-meter")
	quotaServiceTracer := tel.TracerProvider.Tracer("quota-service-trace")
	quotaService := quotasrv.NewQuotaService(
		limitRepository,
		remittanceRepository,
		quotaServiceMeter,
		quotaServiceTracer,
		tel.Log,
	)

	requestServiceMeter := tel.MeterProvider.Meter("request-service-meter")
	requestServiceTracer := tel.TracerProvider.Tracer("request-service-trace")
	requestService := requestsrv.NewRequestService(
		requestRepository,
		limitRepository,
		fileStore,
		requestServiceMeter,
		requestServiceTracer,
		tel.Log,
	)

	adminServiceMeter := tel.MeterProvider.Meter("admin-service-meter")
	adminServiceTracer := tel.TracerProvider.Tracer("admin-service-trace")
	adminService := adminsrv.NewAdminService(
		db,
		requestRepository,
		limitRepository,
		userRepository,
		outboxRepository,
		adminServiceMeter,
		adminServiceTracer,
		tel.Log,
	)

	// Outbox dispatcher
	decisionMailer := mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.SMTP_HOST,
		Port:     cfg.SMTP_PORT,
		Username: cfg.SMTP_USERNAME,
		Password: cfg.SMTP_PASSWORD,
		From:     cfg.SMTP_FROM,
	})
	outboxMeter := tel.MeterProvider.Meter("outbox-dispatcher-meter")
	outboxTracer := tel.TracerProvider.Tracer("outbox-dispatcher-trace")
	dispatcher := outboxsrv.NewDispatcher(
		outboxRepository,
		decisionMailer,
		cfg.OUTBOX_INTERVAL,
		cfg.OUTBOX_BATCH_SIZE,
		cfg.OUTBOX_MAX_ATTEMPTS,
		outboxMeter,
		outboxTracer,
		tel.Log,
	)

	// Handler
	quotaHandlerMeter := tel.MeterProvider.Meter("quota-handler-meter")
	quotaHandlerTracer := tel.TracerProvider.Tracer("quota-handler-trace")
	quotaHandler := quotahandler.NewQuotaHandler(
		quotaService,
		quotaHandlerMeter,
		quotaHandlerTracer,
		tel.Log,
	)

	requestHandlerMeter := tel.MeterProvider.Meter("request-handler-meter")
	requestHandlerTracer := tel.TracerProvider.Tracer("request-handler-trace")
	requestHandler := requesthandler.NewRequestHandler(
		requestService,
		requestHandlerMeter,
		requestHandlerTracer,
		tel.Log,
	)

	adminHandlerMeter := tel.MeterProvider.Meter("admin-handler-meter")
	adminHandlerTracer := tel.TracerProvider.Tracer("admin-handler-trace")
	adminHandler := adminhandler.NewAdminHandler(
		adminService,
		adminHandlerMeter,
		adminHandlerTracer,
		tel.Log,
	)

	return Presenter{
		QuotaPresenter:   quotaHandler,
		RequestPresenter: requestHandler,
		AdminPresenter:   adminHandler,
		OutboxDispatcher: dispatcher,
	}
}
