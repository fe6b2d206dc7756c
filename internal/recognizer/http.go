package recognizer

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/johbar/ocr-service/internal/imageparser"
	"github.com/johbar/ocr-service/pkg/tesseract"
)

const headerPrefix = "X-Ocr-"

var contentTypes = map[string]string{
	FormatText: "text/plain; charset=utf-8",
	FormatHOCR: "text/html; charset=utf-8",
	FormatAlto: "application/xml; charset=utf-8",
	FormatTSV:  "text/tab-separated-values; charset=utf-8",
	FormatBox:  "text/plain; charset=utf-8",
	FormatUNLV: "text/plain; charset=utf-8",
}

// HTTPStatus maps an error returned by Recognize to a response status.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrInvalidOptions), errors.Is(err, ErrUnknownLanguage):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooLarge), errors.Is(err, imageparser.ErrTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, imageparser.ErrNotAnImage), errors.Is(err, imageparser.ErrUnsupported):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, imageparser.ErrCorrupt),
		errors.Is(err, tesseract.ErrInvalidDimensions),
		errors.Is(err, tesseract.ErrInvalidBytesPerPixel),
		errors.Is(err, tesseract.ErrInvalidBytesPerLine),
		errors.Is(err, tesseract.ErrInvalidImageData),
		errors.Is(err, tesseract.ErrSetImage):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrTooManyPools), errors.Is(err, ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// RegisterRoutes adds the OCR endpoints to router.
func (r *Recognizer) RegisterRoutes(router gin.IRouter) {
	router.POST("/", r.RecognizeBody)
	router.GET("/languages", r.ListLanguages)
	router.GET("/version", r.ShowVersion)
}

// RecognizeBody runs OCR on the request body and returns the text in the requested format.
// With Accept: application/json the whole result is returned as JSON.
func (r *Recognizer) RecognizeBody(c *gin.Context) {
	var opts Options
	if err := c.ShouldBindQuery(&opts); err != nil {
		r.log.Warn("Invalid request", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"code": http.StatusBadRequest, "msg": err.Error()})
		return
	}
	body := c.Request.Body
	if r.conf.MaxImageSizeBytes > 0 {
		body = http.MaxBytesReader(c.Writer, body, int64(r.conf.MaxImageSizeBytes))
	}
	data, err := io.ReadAll(body)
	if err != nil {
		status := http.StatusBadRequest
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		c.AbortWithStatusJSON(status, gin.H{"code": status, "msg": err.Error()})
		return
	}
	res, err := r.Recognize(c.Request.Context(), data, opts)
	if err != nil {
		status := HTTPStatus(err)
		r.log.Error("Recognition failed", "err", err, "status", status)
		c.AbortWithStatusJSON(status, gin.H{"code": status, "msg": err.Error()})
		return
	}
	for k, v := range res.Metadata() {
		c.Header(headerPrefix+k, v)
	}
	if strings.Contains(c.GetHeader("Accept"), "application/json") {
		c.JSON(http.StatusOK, res)
		return
	}
	c.Data(http.StatusOK, contentTypes[res.Format], []byte(res.Text))
}

// ListLanguages returns the default and the installed languages.
func (r *Recognizer) ListLanguages(c *gin.Context) {
	def, available := r.Languages()
	c.JSON(http.StatusOK, gin.H{"default": def, "available": available})
}

// ShowVersion returns the version of the loaded libtesseract.
func (r *Recognizer) ShowVersion(c *gin.Context) {
	v, err := tesseract.Version()
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"code": http.StatusInternalServerError, "msg": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"tesseract": v})
}
