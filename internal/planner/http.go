// internal/planner/http.go
package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"routeforge/internal/common/config"
	commonerrors "routeforge/internal/common/errors"
	commonhttp "routeforge/internal/common/http"
	"routeforge/internal/common/logger"
	"routeforge/internal/common/observability"
	"routeforge/internal/common/validation"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const planPath = "/v1/route-plans"

// envelope is the planner wire response. Route stays raw so the bytes pass
// through to validation untouched.
type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Route   json.RawMessage `json:"route"`
}

// HTTPPlanner calls the planner service over HTTP.
type HTTPPlanner struct {
	client  *commonhttp.Client
	baseURL string
	apiKey  string
	obs     *observability.Observability
	logger  logger.Logger
}

func NewHTTPPlanner(cfg config.PlannerConfig, obs *observability.Observability, log logger.Logger) (*HTTPPlanner, error) {
	if !validation.ValidateURL(cfg.BaseURL) {
		return nil, commonerrors.NewInvalidArgumentError(fmt.Sprintf("planner base URL %q is not a valid URL", cfg.BaseURL))
	}

	return &HTTPPlanner{
		client:  commonhttp.NewClient(config.GetDuration(cfg.Timeout)),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		obs:     obs,
		logger:  log.WithFields(map[string]interface{}{"component": "planner-client"}),
	}, nil
}

func (p *HTTPPlanner) Plan(ctx context.Context, req Request) ([]byte, error) {
	tracer := otel.Tracer("routeforge/planner")
	ctx, span := tracer.Start(ctx, "planner.Plan", trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(attribute.String("planner.note_id", req.NoteID))

	start := time.Now()
	outcome := "error"
	defer func() {
		if p.obs != nil {
			p.obs.RecordPlannerRequest(ctx, outcome)
			p.obs.RecordPlannerDuration(ctx, time.Since(start), outcome)
		}
	}()

	headers := map[string]string{}
	if p.apiKey != "" {
		headers["Authorization"] = "Bearer " + p.apiKey
	}

	resp, err := p.client.PostJSON(ctx, p.baseURL+planPath, headers, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, commonerrors.NewPlannerTimeoutError()
		}
		return nil, commonerrors.NewPlannerUnavailableError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, commonerrors.NewPlannerUnavailableError(err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("planner returned status %d: %s", resp.StatusCode, string(body))
		span.SetStatus(codes.Error, err.Error())
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, commonerrors.NewPlannerUnavailableError(err)
		}
		return nil, commonerrors.NewPlannerRejectedError(err.Error())
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, commonerrors.NewPlannerResponseInvalidError(fmt.Sprintf("response is not a JSON object: %v", err))
	}
	if err := validation.ValidateDocument(decoded, envelopeSchema); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, commonerrors.NewPlannerResponseInvalidError(err.Error())
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, commonerrors.NewPlannerResponseInvalidError(err.Error())
	}

	if env.Status != "ok" {
		span.SetStatus(codes.Error, env.Message)
		return nil, commonerrors.NewPlannerRejectedError(env.Message)
	}
	if len(env.Route) == 0 {
		span.SetStatus(codes.Error, "missing route")
		return nil, commonerrors.NewPlannerResponseInvalidError("ok response carries no route")
	}

	outcome = "ok"
	p.logger.Debug("planner returned route", map[string]interface{}{"noteId": req.NoteID})
	return env.Route, nil
}
