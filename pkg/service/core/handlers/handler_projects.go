package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tablewise/portal/pkg/auth"
	"github.com/tablewise/portal/pkg/errs"
	"github.com/tablewise/portal/pkg/service"
	"github.com/tablewise/portal/pkg/service/core"
)

const (
	formProjectName = "projectName"
	formDBType      = "dbType"
	formDescription = "description"
	formCredentials = "credentials"

	maxMultipartMemory = 2 << 20
)

type ProjectsHandler struct {
	service service.RequestService
}

func (h *ProjectsHandler) List(ctx context.Context, _ *http.Request, _ any) (*service.ProjectList, error) {
	return h.service.ListProjects(ctx, auth.GetUser(ctx))
}

func (h *ProjectsHandler) Submit(ctx context.Context, _ *http.Request, in *service.NewProject) (*submittedProject, error) {
	const op errs.Op = "ProjectsHandler.Submit"

	req, err := h.service.SubmitProject(ctx, auth.GetUser(ctx), in)
	if err != nil {
		return nil, errs.E(op, err)
	}

	return &submittedProject{ProjectRequest: req}, nil
}

type submittedProject struct {
	*service.ProjectRequest
}

func (s *submittedProject) StatusCode() int {
	return http.StatusCreated
}

// DecodeNewProject reads the upload form. The credentials file is read one
// byte past the size limit so that validation can reject it.
func DecodeNewProject(r *http.Request) (*service.NewProject, error) {
	err := r.ParseMultipartForm(maxMultipartMemory)
	if err != nil {
		return nil, fmt.Errorf("parsing multipart form: %w", err)
	}

	in := &service.NewProject{
		Name:        strings.TrimSpace(r.FormValue(formProjectName)),
		DBType:      r.FormValue(formDBType),
		Description: r.FormValue(formDescription),
		Submitted:   time.Now(),
	}

	file, header, err := r.FormFile(formCredentials)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil
		}

		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	defer file.Close()

	in.Filename = header.Filename

	in.CredentialDoc, err = io.ReadAll(io.LimitReader(file, core.MaxCredentialDocBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	return in, nil
}

func NewProjectsHandler(s service.RequestService) *ProjectsHandler {
	return &ProjectsHandler{
		service: s,
	}
}
