package collections

import (
	"net/http"
	"strconv"

	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

type handler struct {
	collectionService *Service
}

func (h *handler) create(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := CreateCollectionPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	collection := &models.Collection{
		LibraryID:    params.LibraryID,
		UserID:       models.SharedUserID,
		Name:         params.Name,
		SeriesParsed: params.Series,
	}

	err := h.collectionService.CreateCollection(ctx, collection)
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, collection))
}

func (h *handler) retrieve(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Collection")
	}

	collection, err := h.collectionService.RetrieveCollection(ctx, RetrieveCollectionOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, collection))
}

func (h *handler) list(c echo.Context) error {
	ctx := c.Request().Context()

	// Bind params.
	params := ListCollectionsQuery{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	collections, err := h.collectionService.ListCollections(ctx, ListCollectionsOptions{
		LibraryID: params.LibraryID,
		Limit:     &params.Limit,
		Offset:    &params.Offset,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	resp := struct {
		Collections []*models.Collection `json:"collections"`
	}{collections}

	return errors.WithStack(c.JSON(http.StatusOK, resp))
}

func (h *handler) update(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Collection")
	}

	// Bind params.
	params := UpdateCollectionPayload{}
	if err := c.Bind(&params); err != nil {
		return errors.WithStack(err)
	}

	collection, err := h.collectionService.RetrieveCollection(ctx, RetrieveCollectionOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	opts := UpdateCollectionOptions{Columns: []string{}}

	if params.Name != nil && *params.Name != collection.Name {
		collection.Name = *params.Name
		opts.Columns = append(opts.Columns, "name")
	}
	if params.Series != nil {
		collection.SeriesParsed = params.Series
		opts.Columns = append(opts.Columns, "series")
	}

	err = h.collectionService.UpdateCollection(ctx, collection, opts)
	if err != nil {
		return errors.WithStack(err)
	}

	collection, err = h.collectionService.RetrieveCollection(ctx, RetrieveCollectionOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.JSON(http.StatusOK, collection))
}

func (h *handler) delete(c echo.Context) error {
	ctx := c.Request().Context()
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return errcodes.NotFound("Collection")
	}

	collection, err := h.collectionService.RetrieveCollection(ctx, RetrieveCollectionOptions{
		ID: &id,
	})
	if err != nil {
		return errors.WithStack(err)
	}

	if err := h.collectionService.DeleteCollection(ctx, collection); err != nil {
		return errors.WithStack(err)
	}

	return errors.WithStack(c.NoContent(http.StatusNoContent))
}
