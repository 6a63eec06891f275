package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/aerodesk/aerodesk/internal/notification"
)

// HeaderOperator names the person acting on a notification when the body does not.
const HeaderOperator = "X-Operator"

// maxPageSize caps the limit query parameter.
const maxPageSize = 500

type operatorRequest struct {
	AcknowledgedBy string `json:"acknowledgedBy"`
}

type statusRequest struct {
	Status notification.Status `json:"status"`
}

type removedResponse struct {
	Removed int `json:"removed"`
}

func (s *Server) listNotifications(c echo.Context) error {
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.service.List(c.Request().Context(), f))
}

func (s *Server) createNotification(c echo.Context) error {
	var req notification.CreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	n, err := s.service.Create(c.Request().Context(), &req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, n)
}

func (s *Server) clearAll(c echo.Context) error {
	removed, err := s.service.ClearAll(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, removedResponse{Removed: removed})
}

func (s *Server) getCounts(c echo.Context) error {
	return c.JSON(http.StatusOK, s.cachedCounts(c))
}

func (s *Server) cachedCounts(c echo.Context) notification.Counts {
	if cached, ok := s.counts.Get(countsCacheKey); ok {
		return cached.(notification.Counts)
	}
	counts := s.service.Counts(c.Request().Context())
	s.counts.SetDefault(countsCacheKey, counts)
	return counts
}

func (s *Server) getNotification(c echo.Context) error {
	n, err := s.service.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) acknowledge(c echo.Context) error {
	by, err := operator(c)
	if err != nil {
		return err
	}
	n, err := s.service.Acknowledge(c.Request().Context(), c.Param("id"), by)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) accept(c echo.Context) error {
	by, err := operator(c)
	if err != nil {
		return err
	}
	n, err := s.service.Accept(c.Request().Context(), c.Param("id"), by)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) setStatus(c echo.Context) error {
	var req statusRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("invalid request body")
	}
	status := notification.Status(strings.ToUpper(string(req.Status)))
	if !status.IsValid() {
		return badRequest("unknown status %q", req.Status)
	}
	n, err := s.service.SetStatus(c.Request().Context(), c.Param("id"), status)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, n)
}

func (s *Server) deleteNotification(c echo.Context) error {
	if err := s.service.DeleteOutright(c.Request().Context(), c.Param("id")); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) panelNotifications(c echo.Context) error {
	panel, err := notification.ParsePanel(c.Param("panel"))
	if err != nil {
		return err
	}
	f, err := parseFilter(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.service.ForPanel(c.Request().Context(), panel, f))
}

func (s *Server) panelCounts(c echo.Context) error {
	panel, err := notification.ParsePanel(c.Param("panel"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.cachedCounts(c).ForPanel(panel))
}

func (s *Server) clearPanel(c echo.Context) error {
	panel, err := notification.ParsePanel(c.Param("panel"))
	if err != nil {
		return err
	}
	removed, err := s.service.ClearForPanel(c.Request().Context(), panel)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, removedResponse{Removed: removed})
}

func (s *Server) removeFromPanel(c echo.Context) error {
	panel, err := notification.ParsePanel(c.Param("panel"))
	if err != nil {
		return err
	}
	if err := s.service.RemoveFromPanel(c.Request().Context(), c.Param("id"), panel); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// operator reads the acting person from the body, falling back to the
// X-Operator header. Both may be empty; the service then applies its default.
func operator(c echo.Context) (string, error) {
	var req operatorRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return "", badRequest("invalid request body")
		}
	}
	if req.AcknowledgedBy != "" {
		return req.AcknowledgedBy, nil
	}
	return c.Request().Header.Get(HeaderOperator), nil
}

// parseFilter reads view, status, priority, type, limit and offset. List
// parameters accept repeated keys or comma separated values.
func parseFilter(c echo.Context) (*notification.FilterOptions, error) {
	f := &notification.FilterOptions{}
	if view := c.QueryParam("view"); view != "" {
		v, err := notification.ParseView(view)
		if err != nil {
			return nil, badRequest("unknown view %q", view)
		}
		if vf := notification.ViewFilter(v); vf != nil {
			f = vf
		}
	}

	for _, v := range queryList(c, "status") {
		status := notification.Status(strings.ToUpper(v))
		if !status.IsValid() {
			return nil, badRequest("unknown status %q", v)
		}
		f.Statuses = append(f.Statuses, status)
	}
	for _, v := range queryList(c, "priority") {
		priority := notification.Priority(strings.ToUpper(v))
		if !priority.IsValid() {
			return nil, badRequest("unknown priority %q", v)
		}
		f.Priorities = append(f.Priorities, priority)
	}
	for _, v := range queryList(c, "type") {
		t := notification.Type(strings.ToUpper(v))
		if !t.IsValid() {
			return nil, badRequest("unknown type %q", v)
		}
		f.Types = append(f.Types, t)
	}

	var err error
	if f.Limit, err = queryInt(c, "limit"); err != nil {
		return nil, err
	}
	if f.Offset, err = queryInt(c, "offset"); err != nil {
		return nil, err
	}
	if f.Limit > maxPageSize {
		f.Limit = maxPageSize
	}
	return f, nil
}

func queryList(c echo.Context, name string) []string {
	var out []string
	for _, raw := range c.QueryParams()[name] {
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func queryInt(c echo.Context, name string) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, badRequest("%s must be a non-negative integer", name)
	}
	return n, nil
}
