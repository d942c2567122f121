package requesthandler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fazamuttaqien/remitquota/internal/domain"
	"github.com/fazamuttaqien/remitquota/internal/dto"
	requesthandler "github.com/fazamuttaqien/remitquota/internal/handler/request"
	"github.com/fazamuttaqien/remitquota/pkg/common"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

type mockRequestService struct {
	// Fields to control mock behavior
	MockCreateResult *dto.LimitRequestResponse
	MockUpdateResult *dto.LimitRequestResponse
	MockListResult   *domain.Paginated
	MockError        error

	// Fields to capture calls
	CreateCalledWith dto.LimitRequestForm
	CreateFileCount  int
	UpdateCalledWith dto.LimitRequestForm
	CancelCalledWith uint64
	ListCalledWith   domain.Params
}

func (m *mockRequestService) Create(ctx context.Context, userID uint64, form dto.LimitRequestForm, files map[domain.AttachmentSlot]*multipart.FileHeader) (*dto.LimitRequestResponse, error) {
	m.CreateCalledWith = form
	m.CreateFileCount = len(files)
	return m.MockCreateResult, m.MockError
}

func (m *mockRequestService) Update(ctx context.Context, userID uint64, requestID uint64, form dto.LimitRequestForm, files map[domain.AttachmentSlot]*multipart.FileHeader) (*dto.LimitRequestResponse, error) {
	m.UpdateCalledWith = form
	return m.MockUpdateResult, m.MockError
}

func (m *mockRequestService) Cancel(ctx context.Context, userID uint64, requestID uint64) error {
	m.CancelCalledWith = requestID
	return m.MockError
}

func (m *mockRequestService) ListByUser(ctx context.Context, userID uint64, params domain.Params) (*domain.Paginated, error) {
	m.ListCalledWith = params
	return m.MockListResult, m.MockError
}

// authAs stands in for the JWT middleware and plants claims directly.
func authAs(userID uint64, role domain.Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Locals("user", &domain.JwtCustomClaims{UserID: userID, Role: role})
		return c.Next()
	}
}

func setupRequestApp(handler *requesthandler.RequestHandler, userID uint64, role domain.Role) *fiber.App {
	app := fiber.New()

	requests := app.Group("/limit-requests", authAs(userID, role))
	requests.Get("/:userId", handler.List)
	requests.Post("/:userId", handler.Create)
	requests.Put("/:userId/:requestId", handler.Update)
	requests.Delete("/:userId/:requestId", handler.Cancel)

	return app
}

func newRequestHandler(m *mockRequestService) *requesthandler.RequestHandler {
	return requesthandler.NewRequestHandler(
		m,
		otel.GetMeterProvider().Meter(""),
		otel.GetTracerProvider().Tracer(""),
		zap.L(),
	)
}

// createMultipartRequest builds a multipart form with the standard limit
// fields plus the given file parts.
func createMultipartRequest(t *testing.T, method, url string, fields map[string]string, fileParts []string) *http.Request {
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for key, value := range fields {
		err := writer.WriteField(key, value)
		assert.NoError(t, err)
	}

	for i, part := range fileParts {
		fw, err := writer.CreateFormFile(part, fmt.Sprintf("document-%d.pdf", i))
		assert.NoError(t, err)
		_, err = fw.Write([]byte("dummy file content"))
		assert.NoError(t, err)
	}

	err := writer.Close()
	assert.NoError(t, err)

	req := httptest.NewRequest(method, url, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func validFields() map[string]string {
	return map[string]string{
		"daily_limit":   "2000000",
		"monthly_limit": "20000000",
		"single_limit":  "1000000",
		"reason":        "Business expansion",
	}
}

func sampleResponse(id uint64) *dto.LimitRequestResponse {
	return &dto.LimitRequestResponse{
		ID:           id,
		UserID:       10,
		DailyLimit:   2_000_000,
		MonthlyLimit: 20_000_000,
		SingleLimit:  1_000_000,
		Reason:       "Business expansion",
		Status:       domain.RequestPending,
	}
}

func TestRequestHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockCreateResult: sampleResponse(1)}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := createMultipartRequest(t, http.MethodPost, "/limit-requests/10", validFields(),
			[]string{"income_proof", "bankbook_proof", "business_proof"})

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.Equal(t, 3, mockRequestService.CreateFileCount)
		assert.Equal(t, float64(2_000_000), mockRequestService.CreateCalledWith.DailyLimit)

		var result dto.LimitRequestResponse
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, uint64(1), result.ID)
		assert.Equal(t, domain.RequestPending, result.Status)
	})

	t.Run("Failure - Another User's Path", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockCreateResult: sampleResponse(1)}
		app := setupRequestApp(newRequestHandler(mockRequestService), 11, domain.UserRole)

		req := createMultipartRequest(t, http.MethodPost, "/limit-requests/10", validFields(), nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, mockRequestService.CreateCalledWith.DailyLimit)
	})

	t.Run("Success - Admin Acts For Any User", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockCreateResult: sampleResponse(1)}
		app := setupRequestApp(newRequestHandler(mockRequestService), 99, domain.AdminRole)

		req := createMultipartRequest(t, http.MethodPost, "/limit-requests/10", validFields(), nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
	})

	t.Run("Failure - Missing Reason", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		fields := validFields()
		delete(fields, "reason")
		req := createMultipartRequest(t, http.MethodPost, "/limit-requests/10", fields, nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Failure - Invalid userId", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := createMultipartRequest(t, http.MethodPost, "/limit-requests/abc", validFields(), nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Failure - Zero userId", func(t *testing.T) {
		// Zero parses without error but is not a valid user id.
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := createMultipartRequest(t, http.MethodPost, "/limit-requests/0", validFields(), nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRequestHandler_Update(t *testing.T) {
	t.Run("Success - Re-request", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockUpdateResult: sampleResponse(7)}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		fields := validFields()
		fields["is_rerequest"] = "true"
		req := createMultipartRequest(t, http.MethodPut, "/limit-requests/10/7", fields, nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.True(t, mockRequestService.UpdateCalledWith.IsRerequest)
	})

	t.Run("Failure - Request Already Decided", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockError: common.ErrRequestNotEditable}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := createMultipartRequest(t, http.MethodPut, "/limit-requests/10/7", validFields(), nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("Failure - Request Not Found", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockError: common.ErrRequestNotFound}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := createMultipartRequest(t, http.MethodPut, "/limit-requests/10/999", validFields(), nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Failure - Invalid requestId", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := createMultipartRequest(t, http.MethodPut, "/limit-requests/10/abc", validFields(), nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestRequestHandler_Cancel(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := httptest.NewRequest(http.MethodDelete, "/limit-requests/10/7", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, uint64(7), mockRequestService.CancelCalledWith)

		var result map[string]string
		json.NewDecoder(resp.Body).Decode(&result)
		assert.Equal(t, "Request cancelled", result["message"])
	})

	t.Run("Failure - Override Already Exists", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockError: common.ErrOverrideExists}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := httptest.NewRequest(http.MethodDelete, "/limit-requests/10/7", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	})

	t.Run("Failure - Request Not Pending", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockError: common.ErrRequestNotPending}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := httptest.NewRequest(http.MethodDelete, "/limit-requests/10/7", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	})

	t.Run("Failure - Zero requestId", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := httptest.NewRequest(http.MethodDelete, "/limit-requests/10/0", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Zero(t, mockRequestService.CancelCalledWith)
	})

	t.Run("Failure - Another User's Request", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 11, domain.UserRole)

		req := httptest.NewRequest(http.MethodDelete, "/limit-requests/10/7", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Zero(t, mockRequestService.CancelCalledWith)
	})
}

func TestRequestHandler_List(t *testing.T) {
	t.Run("Success - With Status Filter", func(t *testing.T) {
		mockRequestService := &mockRequestService{MockListResult: &domain.Paginated{
			Data:       []dto.LimitRequestResponse{*sampleResponse(1)},
			Total:      1,
			Page:       1,
			Limit:      10,
			TotalPages: 1,
		}}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := httptest.NewRequest(http.MethodGet, "/limit-requests/10?status=PENDING&page=2&limit=5", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "PENDING", mockRequestService.ListCalledWith.Status)
		assert.Equal(t, 2, mockRequestService.ListCalledWith.Page)
		assert.Equal(t, 5, mockRequestService.ListCalledWith.Limit)
	})

	t.Run("Failure - Unknown Status Filter", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := httptest.NewRequest(http.MethodGet, "/limit-requests/10?status=CANCELLED", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Empty(t, mockRequestService.ListCalledWith.Status)
	})

	t.Run("Failure - Zero userId", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 10, domain.UserRole)

		req := httptest.NewRequest(http.MethodGet, "/limit-requests/0", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("Failure - Another User's List", func(t *testing.T) {
		mockRequestService := &mockRequestService{}
		app := setupRequestApp(newRequestHandler(mockRequestService), 11, domain.UserRole)

		req := httptest.NewRequest(http.MethodGet, "/limit-requests/10", nil)

		// Act
		resp, _ := app.Test(req)
		defer resp.Body.Close()

		// Assert
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
