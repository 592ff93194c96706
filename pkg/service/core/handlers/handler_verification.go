package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/service/core/transport"
)

type VerificationHandler struct {
	service service.VerificationService
}

type EditDescriptionInput struct {
	Description string `json:"description"`
}

type NavigateInput struct {
	Index   int  `json:"index"`
	Discard bool `json:"discard"`
}

func (h *VerificationHandler) Open(ctx context.Context, r *http.Request, _ any) (*service.VerificationState, error) {
	const op errs.Op = "VerificationHandler.Open"

	reload := false

	if v := r.URL.Query().Get("reload"); v != "" {
		var err error

		reload, err = strconv.ParseBool(v)
		if err != nil {
			return nil, errs.E(errs.InvalidRequest, op, errs.Parameter("reload"), err)
		}
	}

	return h.service.Open(ctx, projectKey(ctx), reload)
}

func (h *VerificationHandler) State(ctx context.Context, _ *http.Request, _ any) (*service.VerificationState, error) {
	return h.service.State(ctx, projectKey(ctx))
}

func (h *VerificationHandler) EditDescription(ctx context.Context, _ *http.Request, in EditDescriptionInput) (*service.VerificationState, error) {
	return h.service.EditDescription(ctx, projectKey(ctx), in.Description)
}

func (h *VerificationHandler) EditColumnDescription(ctx context.Context, _ *http.Request, in EditDescriptionInput) (*service.VerificationState, error) {
	const op errs.Op = "VerificationHandler.EditColumnDescription"

	index, err := strconv.Atoi(chi.URLParamFromCtx(ctx, "index"))
	if err != nil {
		return nil, errs.E(errs.InvalidRequest, op, errs.Parameter("index"), err)
	}

	return h.service.EditColumnDescription(ctx, projectKey(ctx), index, in.Description)
}

func (h *VerificationHandler) Save(ctx context.Context, _ *http.Request, _ any) (*service.VerificationState, error) {
	return h.service.Save(ctx, projectKey(ctx))
}

func (h *VerificationHandler) Verify(ctx context.Context, _ *http.Request, _ any) (*service.VerificationState, error) {
	return h.service.Verify(ctx, projectKey(ctx))
}

func (h *VerificationHandler) NavigateTo(ctx context.Context, _ *http.Request, in NavigateInput) (*service.VerificationState, error) {
	return h.service.NavigateTo(ctx, projectKey(ctx), in.Index, in.Discard)
}

func (h *VerificationHandler) Close(ctx context.Context, _ *http.Request, _ any) (*transport.Empty, error) {
	const op errs.Op = "VerificationHandler.Close"

	err := h.service.Close(ctx, projectKey(ctx))
	if err != nil {
		return nil, errs.E(op, err)
	}

	return &transport.Empty{}, nil
}

func projectKey(ctx context.Context) string {
	return chi.URLParamFromCtx(ctx, "key")
}

func NewVerificationHandler(s service.VerificationService) *VerificationHandler {
	return &VerificationHandler{
		service: s,
	}
}
