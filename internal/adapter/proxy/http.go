// Package proxy reaches module instances and the deployment service over
// HTTP on behalf of the control plane.
package proxy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/neomorfeo/modgate/internal/domain"
)

// Compile-time check: HTTP implements domain.ModuleProxy.
var _ domain.ModuleProxy = (*HTTP)(nil)

// Tenant and module are addressed through headers so the edge can route
// the call to the right module instance.
const (
	headerTenant = "X-Modgate-Tenant"
	headerModule = "X-Modgate-Module"
)

// HTTP calls module system interfaces through the gateway edge and drives
// the deployment service for auto-deploy/undeploy.
type HTTP struct {
	client     *http.Client
	gatewayURL string
	deployURL  string
	logger     *slog.Logger
}

// New creates a proxy. gatewayURL is the edge through which module system
// interfaces are reached; deployURL is the deployment service.
func New(gatewayURL, deployURL string, logger *slog.Logger) *HTTP {
	return &HTTP{
		client:     &http.Client{Timeout: 30 * time.Second},
		gatewayURL: strings.TrimSuffix(gatewayURL, "/"),
		deployURL:  strings.TrimSuffix(deployURL, "/"),
		logger:     logger,
	}
}

// CallSystemInterface POSTs a JSON body to a module's system interface
// path for the given tenant.
func (p *HTTP) CallSystemInterface(ctx context.Context, tenantID, moduleID, path string, body []byte) error {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.gatewayURL+path, bytes.NewReader(body))
	if err != nil {
		return domain.InternalWrap("building system interface request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(headerTenant, tenantID)
	req.Header.Set(headerModule, moduleID)

	p.logger.Debug("calling system interface", "tenant", tenantID, "module", moduleID, "path", path)
	return p.do(req, fmt.Sprintf("system interface %s on %s", path, moduleID))
}

// AutoDeploy asks the deployment service to provision an instance of the
// module.
func (p *HTTP) AutoDeploy(ctx context.Context, md *domain.ModuleDescriptor) error {
	body := []byte(fmt.Sprintf(`{"module_id":%q}`, md.ID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.deployURL+"/deployments", bytes.NewReader(body))
	if err != nil {
		return domain.InternalWrap("building deploy request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	p.logger.Info("auto-deploying module", "module", md.ID)
	return p.do(req, "deploying "+md.ID)
}

// AutoUndeploy asks the deployment service to remove the module's
// instances.
func (p *HTTP) AutoUndeploy(ctx context.Context, md *domain.ModuleDescriptor) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		p.deployURL+"/deployments/"+url.PathEscape(md.ID), nil)
	if err != nil {
		return domain.InternalWrap("building undeploy request", err)
	}

	p.logger.Info("auto-undeploying module", "module", md.ID)
	return p.do(req, "undeploying "+md.ID)
}

func (p *HTTP) do(req *http.Request, what string) error {
	resp, err := p.client.Do(req)
	if err != nil {
		return domain.InternalWrap(what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := fmt.Sprintf("%s: status %d: %s", what, resp.StatusCode, strings.TrimSpace(string(detail)))
	if resp.StatusCode == http.StatusNotFound {
		return domain.NotFoundf("%s", msg)
	}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return domain.UserErrorf("%s", msg)
	}
	return domain.Internalf("%s", msg)
}
