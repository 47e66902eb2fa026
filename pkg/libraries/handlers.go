package libraries

import (
	"context"
	"net/http"
	"os"
	"strconv"

	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/robinjoseph08/golib/logger"
)

// StartScanFunc kicks off a scan of the given library. Wired to the scan
// orchestrator at route registration to keep this package free of a
// dependency on it.
type StartScanFunc func(ctx context.Context, libraryID int) error

type handler struct {
	libraryService *Service
	startScan      StartScanFunc
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := CreateLibraryPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	if _, err := os.Stat(params.Path); err != nil {
		return errcodes.ValidationError("Library path does not exist.")
	}

	library := &models.Library{
		Name: params.Name,
		Path: params.Path,
		Type: params.Type,
	}
	if params.Metadata != nil {
		library.MetadataParsed = &models.LibraryMetadata{
			Provider: params.Metadata.Provider,
			APIKey:   params.Metadata.APIKey,
		}
	}

	err := h.libraryService.CreateLibrary(ctx, library)
	if err != nil {
		return errors.WithStack(err)
	}

	// Kick off the initial scan. The library is created either way.
	if h.startScan != nil {
		if err := h.startScan(ctx, library.ID); err != nil {
			logger.FromContext(ctx).Err(err).Error("failed to start initial scan", logger.Data{
				"library_id": library.ID,
			})
		}
	}

	return errors.WithStack(c.JSON(http.StatusOK, library))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Library")
	}

	library, err := h.libraryService.RetrieveLibrary(ctx, RetrieveLibraryOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, library))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListLibrariesQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	opts := ListLibrariesOptions{
		Type:   params.Type,
		Limit:  &params.Limit,
		Offset: &params.Offset,
	}

	libraries, total, err := h.libraryService.ListLibrariesWithTotal(ctx, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Libraries []*models.Library `json:"libraries"`
		Total     int               `json:"total"`
	}{libraries, total}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Library")
	}

	// Bind params.
	params := UpdateLibraryPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	// Fetch the library.
	library, err := h.libraryService.RetrieveLibrary(ctx, RetrieveLibraryOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	// Keep track of what's been changed.
	opts := UpdateLibraryOptions{Columns: []string{}}

	if params.Name != nil && *params.Name != library.Name {
		library.Name = *params.Name
		opts.Columns = append(opts.Columns, "name")
	}
	if params.Path != nil && *params.Path != library.Path {
		if _, err := os.Stat(*params.Path); err != nil {
			return errcodes.ValidationError("Library path does not exist.")
		}
		library.Path = *params.Path
		opts.Columns = append(opts.Columns, "path")
	}
	if params.Metadata != nil {
		library.MetadataParsed = &models.LibraryMetadata{
			Provider: params.Metadata.Provider,
			APIKey:   params.Metadata.APIKey,
		}
		opts.Columns = append(opts.Columns, "metadata")
	}

	// Update the model.
	err = h.libraryService.UpdateLibrary(ctx, library, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	// Reload the model.
	library, err = h.libraryService.RetrieveLibrary(ctx, RetrieveLibraryOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, library))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Library")
	}

	library, err := h.libraryService.RetrieveLibrary(ctx, RetrieveLibraryOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.libraryService.DeleteLibrary(ctx, library); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
