package printing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/invoicer/backend/internal/domain/shared"
	"github.com/invoicer/backend/internal/infrastructure/config"
	"github.com/invoicer/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// GeneratePDFRequest is the body accepted by the rendering service
type GeneratePDFRequest struct {
	HTML     string `json:"html"`
	Filename string `json:"filename,omitempty"`
}

// Base64Envelope is the body of the base64 response variant
type Base64Envelope struct {
	IsBase64Encoded bool   `json:"isBase64Encoded"`
	Body            string `json:"body"`
	Filename        string `json:"filename,omitempty"`
}

// ErrorResponse is the error body of the rendering service
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// RenderClient sends captured documents to the rendering service and validates the PDF it returns.
// It implements PDFRenderer.
type RenderClient struct {
	endpoint string
	client   *http.Client
	logger   *zap.Logger
}

// NewRenderClient creates a client for the endpoint selected by the app environment
func NewRenderClient(cfg config.RendererConfig, app config.AppConfig, log *zap.Logger) *RenderClient {
	return NewRenderClientWithHTTP(cfg.EndpointFor(app), &http.Client{Timeout: cfg.Timeout}, log)
}

// NewRenderClientWithHTTP creates a client posting to endpoint with the given HTTP client
func NewRenderClientWithHTTP(endpoint string, client *http.Client, log *zap.Logger) *RenderClient {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &RenderClient{endpoint: endpoint, client: client, logger: log}
}

// Endpoint returns the rendering service URL
func (c *RenderClient) Endpoint() string {
	return c.endpoint
}

// Render posts req to the rendering service and returns the validated PDF
func (c *RenderClient) Render(ctx context.Context, req *RenderRequest) (*RenderResult, error) {
	if req == nil || req.HTML == "" {
		return nil, shared.NewDomainError(shared.CodeValidation, "HTML content is required")
	}

	start := time.Now()
	log := logger.Or(ctx, c.logger).With(zap.String("endpoint", c.endpoint), zap.String("filename", req.Filename))

	body, err := json.Marshal(GeneratePDFRequest{HTML: req.HTML, Filename: req.Filename})
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeRenderFailure, "Invalid rendering service endpoint", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		log.Error("Rendering service request failed", zap.Error(err))
		if isTimeout(err) {
			return nil, shared.WrapDomainError(shared.CodeRenderTimeout, "PDF generation timed out", err)
		}
		return nil, shared.WrapDomainError(shared.CodeRenderFailure, "PDF generation failed: "+err.Error(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeRenderFailure, "Failed to read PDF response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(resp.StatusCode, raw)
		log.Error("Rendering service returned an error", zap.Int("status", resp.StatusCode), zap.String("error", msg))
		code := shared.CodeRenderFailure
		if resp.StatusCode == http.StatusGatewayTimeout {
			code = shared.CodeRenderTimeout
		}
		return nil, shared.NewDomainError(code, msg)
	}

	data, err := decodePDFBody(resp, raw)
	if err != nil {
		return nil, shared.WrapDomainError(shared.CodeInvalidArtifact, "Rendering service returned an undecodable body", err)
	}
	if !IsPDF(data) {
		log.Error("Rendering service returned a non-PDF body", zap.Int("bytes", len(data)))
		return nil, shared.NewDomainError(shared.CodeInvalidArtifact, "Invalid PDF received from server")
	}

	log.Debug("PDF received", zap.Int("bytes", len(data)), zap.Duration("duration", time.Since(start)))
	return &RenderResult{PDFData: data, RenderDuration: time.Since(start)}, nil
}

// errorMessage builds the message of a failed render from the response body
func errorMessage(status int, raw []byte) string {
	var er ErrorResponse
	if err := json.Unmarshal(raw, &er); err == nil && er.Error != "" {
		if er.Details != "" {
			return er.Error + ": " + er.Details
		}
		return er.Error
	}
	return fmt.Sprintf("PDF generation failed with status %d", status)
}

// decodePDFBody returns the PDF bytes of a successful response, which is either raw
// application/pdf, a base64 body announced by Content-Transfer-Encoding, or a JSON envelope
func decodePDFBody(resp *http.Response, raw []byte) ([]byte, error) {
	if strings.EqualFold(resp.Header.Get("Content-Transfer-Encoding"), "base64") {
		return base64.StdEncoding.DecodeString(strings.TrimSpace(string(raw)))
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		var env Base64Envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, err
		}
		if !env.IsBase64Encoded {
			return []byte(env.Body), nil
		}
		return base64.StdEncoding.DecodeString(env.Body)
	}
	return raw, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
