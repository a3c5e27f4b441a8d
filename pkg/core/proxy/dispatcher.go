// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package proxy makes upstream calls on behalf of agents: it resolves the
// integration and the agent's credentials, injects auth, reshapes payloads
// and records one call log row per dispatched call.
package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/http/httpguts"

	"github.com/leseb/integrations-gw/pkg/core/apierror"
	"github.com/leseb/integrations-gw/pkg/core/authinject"
	"github.com/leseb/integrations-gw/pkg/core/jsonval"
	"github.com/leseb/integrations-gw/pkg/core/schema"
	"github.com/leseb/integrations-gw/pkg/core/transform"
	"github.com/leseb/integrations-gw/pkg/observability/metrics"
)

// DefaultTimeout bounds a single upstream call.
const DefaultTimeout = 30 * time.Second

// recordTimeout bounds writing the call log row, independent of the call.
const recordTimeout = 5 * time.Second

// IntegrationSource is what the dispatcher needs from the registry.
// Implemented by integrations.Registry.
type IntegrationSource interface {
	Get(ctx context.Context, id string) (*schema.Integration, error)
	AgentCredentials(ctx context.Context, in *schema.Integration, agentID string) (map[string]string, error)
	RecordCall(ctx context.Context, log *schema.CallLog) error
}

// Options configure a Dispatcher.
type Options struct {
	Timeout time.Duration     // per upstream call; 0 uses DefaultTimeout
	Metrics *metrics.Recorder // optional
	Logger  *slog.Logger      // optional
}

// Dispatcher runs proxied calls.
type Dispatcher struct {
	source      IntegrationSource
	transport   Transport
	transformer *transform.Transformer
	metrics     *metrics.Recorder
	timeout     time.Duration
	logger      *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(source IntegrationSource, transport Transport, opts Options) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Dispatcher{
		source:      source,
		transport:   transport,
		transformer: transform.New(logger),
		metrics:     opts.Metrics,
		timeout:     timeout,
		logger:      logger,
	}
}

// Result is the upstream response after response transformation. Non-2xx
// upstream statuses are results, not errors.
type Result struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Label      string
	Duration   time.Duration
	Warnings   []transform.Warning
}

// ContentType returns the upstream Content-Type header.
func (r *Result) ContentType() string {
	return r.Header.Get("Content-Type")
}

// call is a fully prepared upstream call.
type call struct {
	integration *schema.Integration
	agentID     string
	method      string
	label       string
	request     *Request
	warnings    []transform.Warning
}

// ProxyREST calls a REST integration.
func (d *Dispatcher) ProxyREST(ctx context.Context, integrationID string, req *schema.ProxyRequest) (*Result, error) {
	in, err := d.source.Get(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if in.APIType == schema.APITypeGraphQL {
		return nil, apierror.Validation("integration %q is a GraphQL integration; use the /proxy/graphql endpoint instead", in.Name)
	}

	method := strings.ToUpper(strings.TrimSpace(req.Method))
	if method == "" {
		return nil, apierror.Validation("method is required")
	}
	if !httpguts.ValidHeaderFieldName(method) {
		return nil, apierror.Validation("invalid method %q", req.Method)
	}
	if req.AgentID == "" {
		return nil, apierror.Validation("agent_id is required")
	}
	if err := validateHeaders(req.Headers); err != nil {
		return nil, err
	}

	creds, err := d.source.AgentCredentials(ctx, in, req.AgentID)
	if err != nil {
		return nil, err
	}
	headers, params := authinject.Inject(in.AuthScheme, creds, req.Headers, req.Params)

	c := &call{
		integration: in,
		agentID:     req.AgentID,
		method:      method,
		label:       restLabel(in.Endpoints, method, req.Path),
	}
	payload, err := d.requestBody(in, req.Body, &c.warnings)
	if err != nil {
		return nil, err
	}

	c.request = &Request{
		Method: method,
		URL:    joinURL(in.BaseURL, req.Path),
		Header: headers,
		Query:  params,
		Body:   payload,
	}
	return d.dispatch(ctx, c)
}

// ProxyGraphQL calls a GraphQL integration. Request transformers apply to
// the variables object.
func (d *Dispatcher) ProxyGraphQL(ctx context.Context, integrationID string, req *schema.GraphQLProxyRequest) (*Result, error) {
	in, err := d.source.Get(ctx, integrationID)
	if err != nil {
		return nil, err
	}
	if in.APIType != schema.APITypeGraphQL {
		return nil, apierror.Validation("integration %q is a REST integration; use the /proxy endpoint instead", in.Name)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, apierror.Validation("query is required")
	}
	if req.AgentID == "" {
		return nil, apierror.Validation("agent_id is required")
	}
	if err := validateHeaders(req.Headers); err != nil {
		return nil, err
	}

	creds, err := d.source.AgentCredentials(ctx, in, req.AgentID)
	if err != nil {
		return nil, err
	}
	headers, params := authinject.Inject(in.AuthScheme, creds, req.Headers, nil)

	c := &call{
		integration: in,
		agentID:     req.AgentID,
		method:      http.MethodPost,
		label:       graphqlLabel(in.Endpoints, req.OperationName, req.Query),
	}

	envelope := jsonval.NewObject()
	_ = envelope.Set("query", jsonval.StringValue(req.Query))
	if len(req.Variables) > 0 {
		variables, err := jsonval.Parse(req.Variables)
		if err != nil {
			return nil, apierror.Validation("variables must be valid JSON")
		}
		if !variables.IsNull() {
			if variables.Len() > 0 && len(in.RequestTransformers) > 0 {
				var w []transform.Warning
				variables, w = d.transformer.Apply(variables, in.RequestTransformers)
				c.warnings = append(c.warnings, w...)
			}
			_ = envelope.Set("variables", variables)
		}
	}
	if req.OperationName != "" {
		_ = envelope.Set("operationName", jsonval.StringValue(req.OperationName))
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return nil, apierror.Internal("failed to encode graphql request", err)
	}

	c.request = &Request{
		Method: http.MethodPost,
		URL:    in.BaseURL,
		Header: headers,
		Query:  params,
		Body:   payload,
	}
	return d.dispatch(ctx, c)
}

// requestBody decodes an outgoing REST body, applies the integration's
// request transformers and re-encodes it. A missing, null or empty body
// returns nil and is not sent.
func (d *Dispatcher) requestBody(in *schema.Integration, raw json.RawMessage, warnings *[]transform.Warning) ([]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	v, err := jsonval.Parse(raw)
	if err != nil {
		return nil, apierror.Validation("body must be valid JSON")
	}
	if v.IsNull() || (v.Len() == 0 && (v.Kind() == jsonval.Object || v.Kind() == jsonval.Array)) {
		return nil, nil
	}
	if len(in.RequestTransformers) == 0 {
		return raw, nil
	}

	v, w := d.transformer.Apply(v, in.RequestTransformers)
	*warnings = append(*warnings, w...)
	data, err := json.Marshal(v)
	if err != nil {
		return nil, apierror.Internal("failed to encode request body", err)
	}
	return data, nil
}

// dispatch sends the call, records it and transforms the response. The
// upstream call is detached from ctx cancellation and bounded by the
// dispatcher timeout, so a started call always finishes and is logged.
func (d *Dispatcher) dispatch(ctx context.Context, c *call) (*Result, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
	defer cancel()

	start := time.Now()
	resp, err := d.transport.Do(callCtx, c.request)
	duration := time.Since(start)

	status := 0
	if err == nil {
		status = resp.StatusCode
	}
	// The call deadline may already have passed; the log row still lands.
	recordCtx, recordCancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer recordCancel()
	d.record(recordCtx, c, status, duration)

	if err != nil {
		return nil, d.connectivityError(c, err)
	}

	result := &Result{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       resp.Body,
		Label:      c.label,
		Duration:   duration,
		Warnings:   c.warnings,
	}
	if result.Header == nil {
		result.Header = http.Header{}
	}
	if len(c.integration.ResponseTransformers) > 0 {
		d.transformResponse(c.integration, result)
	}

	d.logger.Debug("proxied call",
		"integration_id", c.integration.ID,
		"agent_id", c.agentID,
		"method", c.method,
		"endpoint", c.label,
		"status", result.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"warnings", len(result.Warnings),
	)
	return result, nil
}

// transformResponse reshapes a JSON response body in place. Bodies that
// are not JSON pass through untouched.
func (d *Dispatcher) transformResponse(in *schema.Integration, result *Result) {
	v, err := jsonval.Parse(result.Body)
	if err != nil {
		return
	}
	out, warnings := d.transformer.Apply(v, in.ResponseTransformers)
	data, err := json.Marshal(out)
	if err != nil {
		d.logger.Warn("failed to encode transformed response", "integration_id", in.ID, "error", err)
		return
	}
	result.Body = data
	result.Warnings = append(result.Warnings, warnings...)
	result.Header = result.Header.Clone()
	result.Header.Del("Content-Length")
}

// record writes the call log row and metrics. A failed log write does not
// fail the call.
func (d *Dispatcher) record(ctx context.Context, c *call, status int, duration time.Duration) {
	log := &schema.CallLog{
		IntegrationID: c.integration.ID,
		AgentID:       c.agentID,
		Method:        c.method,
		Endpoint:      c.label,
		StatusCode:    status,
		DurationMS:    duration.Milliseconds(),
	}
	if err := d.source.RecordCall(ctx, log); err != nil {
		d.logger.Error("failed to record call log",
			"integration_id", c.integration.ID,
			"agent_id", c.agentID,
			"error", err,
		)
	}
	d.metrics.RecordCall(ctx, c.integration.Name, c.integration.APIType, status, duration)
}

// connectivityError describes a transport failure by host and cause only.
// The full URL is never included because the query may carry a credential.
func (d *Dispatcher) connectivityError(c *call, err error) error {
	host := c.request.URL
	if u, perr := url.Parse(c.request.URL); perr == nil {
		host = u.Host
	}

	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}

	var msg string
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = fmt.Sprintf("upstream %s did not respond within %s", host, d.timeout)
	case errors.Is(err, ErrResponseTooLarge):
		msg = fmt.Sprintf("upstream %s returned a response that is too large", host)
	default:
		msg = fmt.Sprintf("failed to reach upstream %s: %v", host, err)
	}

	d.logger.Warn("upstream call failed",
		"integration_id", c.integration.ID,
		"agent_id", c.agentID,
		"host", host,
		"error", err,
	)
	return apierror.New(apierror.KindUpstreamConnectivity, msg, err)
}

// validateHeaders rejects caller headers that cannot go on the wire. Values
// are never echoed back since they may hold secrets.
func validateHeaders(headers map[string]string) error {
	for name, value := range headers {
		if !httpguts.ValidHeaderFieldName(name) {
			return apierror.Validation("invalid header name %q", name)
		}
		if !httpguts.ValidHeaderFieldValue(value) {
			return apierror.Validation("invalid value for header %q", name)
		}
	}
	return nil
}
