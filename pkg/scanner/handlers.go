package scanner

import (
	"net/http"
	"strconv"
	"time"

	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	scanner *Scanner
}

type startScanResponse struct {
	Status    bool     `json:"status"`
	Message   string   `json:"message"`
	Remaining []string `json:"remaining"`
}

type scanProgressResponse struct {
	Completed int     `json:"completed"`
	Total     int     `json:"total"`
	Series    []Entry `json:"series"`
}

type scanStatusResponse struct {
	Status      bool                  `json:"status"`
	Message     string                `json:"message,omitempty"`
	InProgress  bool                  `json:"inProgress"`
	LibraryType string                `json:"libraryType"`
	Progress    *scanProgressResponse `json:"progress,omitempty"`
	StartTime   *time.Time            `json:"startTime,omitempty"`
	Remaining   []string              `json:"remaining"`
}

func pathID(c echo.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, errcodes.NotFound("Library")
	}
	return id, nil
}

func (h *handler) start(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	result, err := h.scanner.Start(c.Request().Context(), id)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, startScanResponse{
		Status:    true,
		Message:   result.Message,
		Remaining: result.Remaining,
	}))
}

func (h *handler) status(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	snapshot, ok := h.scanner.Status(id)
	if !ok {
		return errors.WithStack(c.JSON(http.StatusOK, scanStatusResponse{
			Status:      false,
			Message:     "No scan in progress",
			LibraryType: "",
			Remaining:   []string{},
		}))
	}

	return errors.WithStack(c.JSON(http.StatusOK, scanStatusResponse{
		Status:      true,
		InProgress:  snapshot.InProgress,
		LibraryType: snapshot.LibraryType,
		Progress: &scanProgressResponse{
			Completed: snapshot.CompletedSeries,
			Total:     snapshot.TotalSeries,
			Series:    snapshot.Entries,
		},
		StartTime: &snapshot.StartTime,
		Remaining: snapshot.Remaining,
	}))
}
