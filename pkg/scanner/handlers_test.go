package scanner

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/devourer-reader/devourer/pkg/errcodes"
	"github.com/devourer-reader/devourer/pkg/models"
	"github.com/labstack/echo/v4"
	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScanContext(t *testing.T, method, path, id string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()

	e := echo.New()
	req := httptest.NewRequest(method, path, nil)
	rr := httptest.NewRecorder()
	c := e.NewContext(req, rr)
	c.SetParamNames("id")
	c.SetParamValues(id)
	return c, rr
}

func TestHandler_Status_NoScan(t *testing.T) {
	db := newTestDB(t)
	h := &handler{scanner: newTestScanner(t, db)}

	c, rr := newScanContext(t, http.MethodGet, "/libraries/1/scan", "1")
	require.NoError(t, h.status(c))
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp scanStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.False(t, resp.Status)
	assert.Equal(t, "No scan in progress", resp.Message)
	assert.Equal(t, "", resp.LibraryType)
	assert.NotNil(t, resp.Remaining)
	assert.Empty(t, resp.Remaining)
}

func TestHandler_StartAndStatus(t *testing.T) {
	db := newTestDB(t)
	s := newTestScanner(t, db)
	h := &handler{scanner: s}
	ctx := context.Background()
	library := createTestLibrary(ctx, t, db, models.LibraryTypeBook)

	writeBook(t, library.Path, "Neuromancer.txt")

	c, rr := newScanContext(t, http.MethodPost, "/libraries/1/scan", "1")
	require.NoError(t, h.start(c))
	assert.Equal(t, http.StatusOK, rr.Code)

	var startResp startScanResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &startResp))
	assert.True(t, startResp.Status)
	assert.Equal(t, "Library scan started", startResp.Message)
	assert.Equal(t, []string{"Neuromancer.txt"}, startResp.Remaining)

	waitForFinish(t, s, library.ID)

	c, rr = newScanContext(t, http.MethodGet, "/libraries/1/scan", "1")
	require.NoError(t, h.status(c))

	var statusResp scanStatusResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &statusResp))
	assert.True(t, statusResp.Status)
	assert.False(t, statusResp.InProgress)
	assert.Equal(t, models.LibraryTypeBook, statusResp.LibraryType)
	require.NotNil(t, statusResp.Progress)
	assert.Equal(t, 1, statusResp.Progress.Completed)
	assert.Equal(t, 1, statusResp.Progress.Total)
	require.NotNil(t, statusResp.StartTime)
}

func TestHandler_Start_InvalidID(t *testing.T) {
	db := newTestDB(t)
	h := &handler{scanner: newTestScanner(t, db)}

	c, _ := newScanContext(t, http.MethodPost, "/libraries/abc/scan", "abc")
	err := h.start(c)
	assert.ErrorIs(t, err, errcodes.NotFound("Library"))
}
