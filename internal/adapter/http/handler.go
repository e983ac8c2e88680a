// Package http exposes the tenant lifecycle manager as a Huma REST API.
package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/modgate/internal/app"
	"github.com/neomorfeo/modgate/internal/domain"
)

// TenantResponse is the API representation of a tenant descriptor.
type TenantResponse struct {
	ID          string `json:"id" doc:"Unique identifier"`
	Name        string `json:"name,omitempty" doc:"Display name"`
	Description string `json:"description,omitempty" doc:"Free-form description"`
}

func toTenantResponse(td domain.TenantDescriptor) TenantResponse {
	return TenantResponse{ID: td.ID, Name: td.Name, Description: td.Description}
}

// ModuleActionBody is the wire shape of one install action.
type ModuleActionBody struct {
	ID     string `json:"id" minLength:"1" doc:"Module id, possibly partial"`
	Action string `json:"action" enum:"enable,disable,uptodate" doc:"Action verb"`
	From   string `json:"from,omitempty" doc:"Module id being replaced (upgrades)"`
}

func toActions(in []ModuleActionBody) []domain.TenantModuleAction {
	if in == nil {
		return nil
	}
	out := make([]domain.TenantModuleAction, len(in))
	for i, a := range in {
		out[i] = domain.TenantModuleAction{
			ID:     a.ID,
			Action: domain.ModuleAction(a.Action),
			From:   a.From,
		}
	}
	return out
}

func fromActions(in []domain.TenantModuleAction) []ModuleActionBody {
	out := make([]ModuleActionBody, len(in))
	for i, a := range in {
		out[i] = ModuleActionBody{ID: a.ID, Action: string(a.Action), From: a.From}
	}
	return out
}

// --- Create Tenant ---

type CreateTenantInput struct {
	Body struct {
		ID          string `json:"id" minLength:"1" maxLength:"100" pattern:"^[a-z][a-z0-9_]*$" doc:"Tenant identifier"`
		Name        string `json:"name,omitempty" maxLength:"255" doc:"Display name"`
		Description string `json:"description,omitempty" maxLength:"1024" doc:"Free-form description"`
	}
}

type CreateTenantOutput struct {
	Body TenantResponse
}

// --- Get / List / Update / Delete ---

type GetTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type GetTenantOutput struct {
	Body TenantResponse
}

type ListTenantsOutput struct {
	Body []TenantResponse
}

type UpdateTenantInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		Name        string `json:"name,omitempty" maxLength:"255" doc:"Display name"`
		Description string `json:"description,omitempty" maxLength:"1024" doc:"Free-form description"`
	}
}

type UpdateTenantOutput struct {
	Body TenantResponse
}

type DeleteTenantInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

// --- Modules ---

type ListTenantModulesInput struct {
	ID string `path:"id" doc:"Tenant ID"`
}

type ListTenantModulesOutput struct {
	Body []string
}

type EnableModuleInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Body struct {
		ModuleTo   string `json:"module_to" minLength:"1" doc:"Module to enable, possibly partial"`
		ModuleFrom string `json:"module_from,omitempty" doc:"Module to disable in the same transition"`
	}
}

type EnableModuleOutput struct {
	Body struct {
		ModuleID string `json:"module_id" doc:"Fully qualified id of the enabled module"`
	}
}

type DisableModuleInput struct {
	ID       string `path:"id" doc:"Tenant ID"`
	ModuleID string `path:"moduleId" doc:"Module ID"`
}

// --- Install / Upgrade ---

type InstallModulesInput struct {
	ID         string             `path:"id" doc:"Tenant ID"`
	Simulate   bool               `query:"simulate" required:"false" doc:"Return the plan without executing it"`
	Deploy     bool               `query:"deploy" required:"false" doc:"Auto-deploy and auto-undeploy module instances"`
	PreRelease bool               `query:"preRelease" required:"false" doc:"Include pre-release versions"`
	Body       []ModuleActionBody `doc:"Requested actions"`
}

type InstallModulesOutput struct {
	Body []ModuleActionBody
}

type UpgradeModulesInput struct {
	ID         string `path:"id" doc:"Tenant ID"`
	Simulate   bool   `query:"simulate" required:"false" doc:"Return the plan without executing it"`
	Deploy     bool   `query:"deploy" required:"false" doc:"Auto-deploy and auto-undeploy module instances"`
	PreRelease bool   `query:"preRelease" required:"false" doc:"Include pre-release versions"`
}

// --- Interfaces ---

type ListInterfacesInput struct {
	ID   string `path:"id" doc:"Tenant ID"`
	Full bool   `query:"full" required:"false" doc:"Return full interface descriptors"`
	Type string `query:"type" required:"false" doc:"Filter by interface type"`
}

type ListInterfacesOutput struct {
	Body []domain.InterfaceDescriptor
}

// Register adds all tenant API routes to the Huma API.
func Register(api huma.API, svc *app.TenantService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-tenant",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants",
		Summary:     "Create a new tenant",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *CreateTenantInput) (*CreateTenantOutput, error) {
		td := domain.TenantDescriptor{
			ID:          input.Body.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
		}
		if _, err := svc.Insert(ctx, td); err != nil {
			return nil, toHumaError(err)
		}
		return &CreateTenantOutput{Body: toTenantResponse(td)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-tenant",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Get a tenant by ID",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *GetTenantInput) (*GetTenantOutput, error) {
		t, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetTenantOutput{Body: toTenantResponse(t.Descriptor)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenants",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants",
		Summary:     "List tenants",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, _ *struct{}) (*ListTenantsOutput, error) {
		tds, err := svc.List(ctx)
		if err != nil {
			return nil, toHumaError(err)
		}
		resp := make([]TenantResponse, len(tds))
		for i, td := range tds {
			resp[i] = toTenantResponse(td)
		}
		return &ListTenantsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-tenant",
		Method:      http.MethodPut,
		Path:        "/api/v1/tenants/{id}",
		Summary:     "Update a tenant descriptor",
		Tags:        []string{"Tenants"},
	}, func(ctx context.Context, input *UpdateTenantInput) (*UpdateTenantOutput, error) {
		td := domain.TenantDescriptor{
			ID:          input.ID,
			Name:        input.Body.Name,
			Description: input.Body.Description,
		}
		if err := svc.UpdateDescriptor(ctx, td); err != nil {
			return nil, toHumaError(err)
		}
		return &UpdateTenantOutput{Body: toTenantResponse(td)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-tenant",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tenants/{id}",
		Summary:       "Delete a tenant",
		Tags:          []string{"Tenants"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteTenantInput) (*struct{}, error) {
		existed, err := svc.Delete(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		if !existed {
			return nil, huma.Error404NotFound("tenant not found")
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenant-modules",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}/modules",
		Summary:     "List a tenant's enabled modules",
		Tags:        []string{"Modules"},
	}, func(ctx context.Context, input *ListTenantModulesInput) (*ListTenantModulesOutput, error) {
		mods, err := svc.ListModules(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ListTenantModulesOutput{Body: mods}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "enable-module",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/modules",
		Summary:     "Enable a module, optionally replacing another",
		Tags:        []string{"Modules"},
	}, func(ctx context.Context, input *EnableModuleInput) (*EnableModuleOutput, error) {
		mid, err := svc.EnableAndDisable(ctx, input.ID, input.Body.ModuleFrom, input.Body.ModuleTo)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &EnableModuleOutput{}
		out.Body.ModuleID = mid
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "disable-module",
		Method:        http.MethodDelete,
		Path:          "/api/v1/tenants/{id}/modules/{moduleId}",
		Summary:       "Disable a module",
		Tags:          []string{"Modules"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DisableModuleInput) (*struct{}, error) {
		if _, err := svc.EnableAndDisable(ctx, input.ID, input.ModuleID, ""); err != nil {
			return nil, toHumaError(err)
		}
		return nil, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "install-modules",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/install",
		Summary:     "Plan and execute a set of module actions",
		Tags:        []string{"Modules"},
	}, func(ctx context.Context, input *InstallModulesInput) (*InstallModulesOutput, error) {
		plan, err := svc.InstallUpgrade(ctx, input.ID, toActions(input.Body), domain.InstallOptions{
			Simulate:   input.Simulate,
			Deploy:     input.Deploy,
			PreRelease: input.PreRelease,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &InstallModulesOutput{Body: fromActions(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "upgrade-modules",
		Method:      http.MethodPost,
		Path:        "/api/v1/tenants/{id}/upgrade",
		Summary:     "Upgrade every enabled module to its latest version",
		Tags:        []string{"Modules"},
	}, func(ctx context.Context, input *UpgradeModulesInput) (*InstallModulesOutput, error) {
		plan, err := svc.InstallUpgrade(ctx, input.ID, nil, domain.InstallOptions{
			Simulate:   input.Simulate,
			Deploy:     input.Deploy,
			PreRelease: input.PreRelease,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &InstallModulesOutput{Body: fromActions(plan)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-tenant-interfaces",
		Method:      http.MethodGet,
		Path:        "/api/v1/tenants/{id}/interfaces",
		Summary:     "List interfaces provided by a tenant's modules",
		Tags:        []string{"Modules"},
	}, func(ctx context.Context, input *ListInterfacesInput) (*ListInterfacesOutput, error) {
		ifaces, err := svc.ListInterfaces(ctx, input.ID, input.Full, input.Type)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ListInterfacesOutput{Body: ifaces}, nil
	})
}

// toHumaError translates tagged domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	var e *domain.Error
	if !errors.As(err, &e) {
		return huma.Error500InternalServerError("internal server error")
	}
	switch e.Kind {
	case domain.KindUser:
		return huma.Error400BadRequest(e.Message)
	case domain.KindNotFound:
		return huma.Error404NotFound(e.Message)
	case domain.KindAny:
		return huma.Error409Conflict("module in use by tenant " + e.Message)
	default:
		return huma.Error500InternalServerError(e.Message)
	}
}
