package submission

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"postapi/internal/constants"
	"postapi/internal/logger"
	"postapi/pkg/errors"
)

const maxBodyBytes = 10 << 20

type Handler struct {
	service Service
	logger  logger.Logger
}

func NewHandler(service Service, log logger.Logger) *Handler {
	return &Handler{service: service, logger: log}
}

// AcceptedResponse is returned once a submission is queued.
type AcceptedResponse struct {
	UUID   string `json:"uuid"`
	Bundle string `json:"bundle"`
}

type BundlesResponse struct {
	Bundles []string `json:"bundles"`
}

func (h *Handler) RegisterRoutes(router gin.IRouter) {
	v2 := router.Group("/api/v2")
	{
		v2.GET("/bundles", h.ListBundles)
		v2.PUT("/:bundle/:uuid", h.Submit)
	}
}

func (h *Handler) handleError(c *gin.Context, err error) {
	status := errors.ToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorwCtx(c.Request.Context(), "Request error", "error", err, "path", c.Request.URL.Path)
	}
	c.JSON(status, errors.ToErrorResponse(err))
}

// Submit godoc
// @Summary      Submit a document
// @Description  Queues a report, job or training under a caller chosen UUID. Re-submitting the same UUID replaces the queued version.
// @Tags         submissions
// @Accept       json
// @Produce      json
// @Param        bundle               path    string  true  "Bundle"  Enums(report, job, training)
// @Param        uuid                 path    string  true  "Submission UUID"
// @Param        X-Post-API-Provider  header  string  true  "Provider id"
// @Param        X-Post-API-Key       header  string  true  "Provider secret"
// @Param        document             body    object  true  "Document fields"
// @Success      202  {object}  AcceptedResponse
// @Failure      400  {object}  errors.ErrorResponse
// @Failure      401  {object}  errors.ErrorResponse
// @Failure      404  {object}  errors.ErrorResponse
// @Failure      413  {object}  errors.ErrorResponse
// @Failure      503  {object}  errors.ErrorResponse
// @Router       /{bundle}/{uuid} [put]
func (h *Handler) Submit(c *gin.Context) {
	payload, err := decodeBody(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		h.handleError(c, err)
		return
	}

	id, err := h.service.Submit(c.Request.Context(), Request{
		UUID:       c.Param("uuid"),
		Bundle:     c.Param("bundle"),
		ProviderID: c.GetHeader(constants.HeaderProvider),
		Secret:     c.GetHeader(constants.HeaderKey),
		Payload:    payload,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, AcceptedResponse{UUID: id, Bundle: c.Param("bundle")})
}

// ListBundles godoc
// @Summary      List bundles
// @Description  Bundles that can be submitted
// @Tags         submissions
// @Produce      json
// @Success      200  {object}  BundlesResponse
// @Router       /bundles [get]
func (h *Handler) ListBundles(c *gin.Context) {
	c.JSON(http.StatusOK, BundlesResponse{Bundles: h.service.Bundles()})
}

// decodeBody keeps numbers as json.Number so integer ids survive untouched
// until the processor decodes them into typed fields. The body must be a
// single JSON object.
func decodeBody(body io.Reader) (map[string]interface{}, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, decodeError(err)
	}
	if _, err := dec.Token(); !stderrors.Is(err, io.EOF) {
		if err != nil {
			return nil, decodeError(err)
		}
		return nil, errors.ErrRejectedEnqueue.WithMessage("invalid JSON document: unexpected data after the document")
	}
	return payload, nil
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.ErrPayloadTooLarge.WithMessage("submission body exceeds %d bytes", tooLarge.Limit)
	}
	return errors.ErrRejectedEnqueue.WithMessage("invalid JSON document: %v", err)
}
