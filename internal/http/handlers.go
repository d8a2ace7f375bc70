package http

import (
	"context"
	stdhttp "net/http"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"pagecms/app/internal/db"
	"pagecms/app/internal/http/templates"
	"pagecms/app/internal/pages"
)

const (
	errorFallbackMessage = "We couldn't process your request right now."
	defaultActor         = "api"
)

type urlQueryInput struct {
	URL string `query:"url" doc:"Page url"`
}

type parameterBody struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

type pageBody struct {
	ID         uint            `json:"id"`
	URL        string          `json:"url"`
	Content    string          `json:"content"`
	Parameters []parameterBody `json:"parameters"`
	UpdatedBy  string          `json:"updatedBy,omitempty"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

type pageResponse struct {
	Status int
	Body   pageBody
}

type cachedPageResponse struct {
	Body struct {
		Found bool      `json:"found"`
		Page  *pageBody `json:"page,omitempty"`
	}
}

type updatePageInput struct {
	Body struct {
		URL        string          `json:"url" minLength:"1" doc:"Page url, matched exactly"`
		Content    string          `json:"content"`
		Parameters []parameterBody `json:"parameters,omitempty"`
		Actor      string          `json:"actor,omitempty"`
	}
}

type auditEntryBody struct {
	Action    string    `json:"action"`
	Actor     string    `json:"actor,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type auditResponse struct {
	Body struct {
		URL     string           `json:"url"`
		Entries []auditEntryBody `json:"entries"`
	}
}

type healthResponse struct {
	Status int
	Body   struct {
		Status       string `json:"status"`
		Database     string `json:"database"`
		Pages        int64  `json:"pages"`
		CacheBuilt   bool   `json:"cacheBuilt"`
		CacheEntries int    `json:"cacheEntries"`
	}
}

func (s *Server) registerLookupRoute() {
	huma.Get(s.api, "/api/pages/lookup", s.lookupHandler, func(op *huma.Operation) {
		op.Summary = "Fetch a page by exact url from the store"
	})
}

func (s *Server) registerCachedPageRoute() {
	huma.Get(s.api, "/api/cache/pages", s.cachedPageHandler, func(op *huma.Operation) {
		op.Summary = "Look up a page in the url cache"
	})
}

func (s *Server) registerContentRoute() {
	huma.Get(s.api, "/content", s.contentHandler, htmlOperation(
		"Serve cached page content",
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
		stdhttp.StatusInternalServerError,
	))
}

func (s *Server) registerUpdateRoute() {
	huma.Put(s.api, "/api/pages", s.updateHandler, func(op *huma.Operation) {
		op.Summary = "Create or update a page"
	})
}

func (s *Server) registerDeleteRoute() {
	huma.Delete(s.api, "/api/pages", s.deleteHandler, func(op *huma.Operation) {
		op.Summary = "Delete a page by exact url"
		op.DefaultStatus = stdhttp.StatusNoContent
	})
}

func (s *Server) registerAuditRoute() {
	huma.Get(s.api, "/api/pages/audit", s.auditHandler, func(op *huma.Operation) {
		op.Summary = "List the change history of a page"
	})
}

func (s *Server) registerHealthRoute() {
	huma.Get(s.api, "/healthz", s.healthHandler, func(op *huma.Operation) {
		op.Summary = "Health check"
	})
}

func (s *Server) lookupHandler(ctx context.Context, input *urlQueryInput) (*pageResponse, error) {
	if strings.TrimSpace(input.URL) == "" {
		return nil, huma.Error400BadRequest("url query parameter is required")
	}

	page, err := s.repository.GetByURL(ctx, input.URL)
	if err != nil {
		s.recordError(ctx, err, "looking up page", logrus.Fields{"url": input.URL})
		return nil, huma.Error500InternalServerError(errorFallbackMessage)
	}
	if page == nil {
		return nil, huma.Error404NotFound("no page matches that url")
	}

	return &pageResponse{Status: stdhttp.StatusOK, Body: toPageBody(page)}, nil
}

func (s *Server) cachedPageHandler(ctx context.Context, input *urlQueryInput) (*cachedPageResponse, error) {
	page, found, err := s.repository.TryGetPageFromCache(ctx, input.URL)
	if err != nil {
		status, message := classifyError(err)
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "looking up cached page", logrus.Fields{"url": input.URL})
		}
		return nil, huma.NewError(status, message)
	}

	resp := &cachedPageResponse{}
	resp.Body.Found = found
	if found {
		body := toPageBody(page)
		resp.Body.Page = &body
	}

	return resp, nil
}

func (s *Server) contentHandler(ctx context.Context, input *urlQueryInput) (*htmlResponse, error) {
	content, err := s.repository.GetContentFromCache(ctx, input.URL)
	if err != nil {
		status, message := classifyError(err)
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "serving cached content", logrus.Fields{"url": input.URL})
		}
		return s.renderErrorResponse(ctx, status, message), nil
	}

	body, err := renderComponent(ctx, templates.RawHTML(content))
	if err != nil {
		s.recordError(ctx, err, "rendering cached content", logrus.Fields{"url": input.URL})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage), nil
	}

	return newHTMLResponse(stdhttp.StatusOK, body), nil
}

func (s *Server) updateHandler(ctx context.Context, input *updatePageInput) (*pageResponse, error) {
	url := strings.TrimSpace(input.Body.URL)
	if url == "" {
		return nil, huma.Error400BadRequest("url is required")
	}

	actor := strings.TrimSpace(input.Body.Actor)
	if actor == "" {
		actor = defaultActor
	}

	page, created, err := s.repository.Edit(ctx, url, actor, func(page *pages.Page) {
		page.Content = input.Body.Content
		page.Parameters = make([]pages.Parameter, 0, len(input.Body.Parameters))
		for _, param := range input.Body.Parameters {
			page.Parameters = append(page.Parameters, pages.Parameter{Name: param.Name, Value: param.Value})
		}
	})
	if err != nil {
		status, message := classifyError(err)
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "updating page", logrus.Fields{"url": url})
		}
		return nil, huma.NewError(status, message)
	}

	status := stdhttp.StatusOK
	if created {
		status = stdhttp.StatusCreated
	}

	return &pageResponse{Status: status, Body: toPageBody(page)}, nil
}

func (s *Server) deleteHandler(ctx context.Context, input *urlQueryInput) (*struct{}, error) {
	if err := s.repository.Delete(ctx, input.URL); err != nil {
		status, message := classifyError(err)
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "deleting page", logrus.Fields{"url": input.URL})
		}
		return nil, huma.NewError(status, message)
	}

	return &struct{}{}, nil
}

func (s *Server) auditHandler(ctx context.Context, input *urlQueryInput) (*auditResponse, error) {
	entries, err := s.repository.Audit(ctx, input.URL)
	if err != nil {
		status, message := classifyError(err)
		if status >= stdhttp.StatusInternalServerError {
			s.recordError(ctx, err, "listing page audit", logrus.Fields{"url": input.URL})
		}
		return nil, huma.NewError(status, message)
	}

	resp := &auditResponse{}
	resp.Body.URL = input.URL
	resp.Body.Entries = make([]auditEntryBody, 0, len(entries))
	for _, entry := range entries {
		resp.Body.Entries = append(resp.Body.Entries, auditEntryBody{
			Action:    entry.Action,
			Actor:     entry.Actor,
			CreatedAt: entry.CreatedAt,
		})
	}

	return resp, nil
}

func (s *Server) healthHandler(ctx context.Context, _ *struct{}) (*healthResponse, error) {
	resp := &healthResponse{}
	resp.Body.Status = "ok"
	resp.Body.Database = "ok"
	resp.Body.CacheBuilt, resp.Body.CacheEntries = s.repository.CacheStatus()
	resp.Status = stdhttp.StatusOK

	if err := db.Ping(ctx, s.db); err != nil {
		s.recordError(ctx, err, "pinging database", nil)
		resp.Body.Status = "degraded"
		resp.Body.Database = "error"
		resp.Status = stdhttp.StatusServiceUnavailable
		return resp, nil
	}

	count, err := s.repository.CountPages(ctx)
	if err != nil {
		s.recordError(ctx, err, "counting pages", nil)
		resp.Body.Status = "degraded"
		resp.Status = stdhttp.StatusServiceUnavailable
		return resp, nil
	}
	resp.Body.Pages = count

	return resp, nil
}

func toPageBody(page *pages.Page) pageBody {
	body := pageBody{
		ID:         page.ID,
		URL:        page.URL,
		Content:    page.Content,
		Parameters: make([]parameterBody, 0, len(page.Parameters)),
		UpdatedBy:  page.UpdatedBy,
		UpdatedAt:  page.UpdatedAt,
	}
	for _, param := range page.Parameters {
		body.Parameters = append(body.Parameters, parameterBody{Name: param.Name, Value: param.Value})
	}

	return body
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}

func classifyError(err error) (int, string) {
	switch {
	case err == nil:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	case eris.Is(err, pages.ErrInvalidArgument):
		return stdhttp.StatusBadRequest, "A non-empty page url is required."
	case eris.Is(err, pages.ErrKeyNotFound):
		return stdhttp.StatusNotFound, "No cached page matches that url."
	case eris.Is(err, pages.ErrPageNotFound):
		return stdhttp.StatusNotFound, "No page matches that url."
	default:
		return stdhttp.StatusInternalServerError, errorFallbackMessage
	}
}
