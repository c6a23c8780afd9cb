package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	assetservice "github.com/smallbiznis/lubeqc/internal/asset/service"
	"github.com/smallbiznis/lubeqc/internal/catalog"
	"github.com/smallbiznis/lubeqc/internal/clock"
	"github.com/smallbiznis/lubeqc/internal/config"
	consumptiondomain "github.com/smallbiznis/lubeqc/internal/consumption/domain"
	"github.com/smallbiznis/lubeqc/internal/consumption/liveevents"
	consumptionrepository "github.com/smallbiznis/lubeqc/internal/consumption/repository"
	consumptionservice "github.com/smallbiznis/lubeqc/internal/consumption/service"
	inspectionservice "github.com/smallbiznis/lubeqc/internal/inspection/service"
	kvrepository "github.com/smallbiznis/lubeqc/internal/kv/repository"
	"github.com/smallbiznis/lubeqc/internal/providers/email"
	"github.com/smallbiznis/lubeqc/internal/providers/pdf"
	reportservice "github.com/smallbiznis/lubeqc/internal/report/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&kvrepository.Entry{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)
	log := zap.NewNop()
	fc := clock.NewFakeClock(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC))
	cfg := config.Config{
		AssetCatalogPath: t.TempDir() + "/missing.csv",
		ImagesDir:        t.TempDir(),
		ReportRecipient:  "qa@example.com",
	}
	store := kvrepository.NewGormStore(db)
	cat := catalog.Static(config.DefaultLubricantConfig())
	hub := liveevents.NewHub()

	consumption := consumptionservice.New(consumptionservice.Params{
		Cfg:     cfg,
		Log:     log,
		Clock:   fc,
		GenID:   node,
		Repo:    consumptionrepository.Provide(consumptionrepository.Params{Store: store, Clock: fc, GenID: node, Log: log}),
		Catalog: cat,
		Origin:  "test",
		Hub:     hub,
	})

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	return NewServer(ServerParams{
		Gin:            engine,
		Cfg:            cfg,
		Log:            log,
		Clock:          fc,
		Catalog:        cat,
		ConsumptionSvc: consumption,
		ReportSvc:      reportservice.New(reportservice.Params{Log: log, Consumption: consumption, Catalog: cat}),
		InspectionSvc:  inspectionservice.New(inspectionservice.Params{Cfg: cfg, Log: log, Clock: fc, Store: store, Consumption: consumption}),
		AssetSvc:       assetservice.New(assetservice.Params{Cfg: cfg, Log: log, Store: store, Consumption: consumption}),
		PDF:            pdf.New(pdf.Params{Log: log}),
		LiveEvents:     hub,
	})
}

func do(t *testing.T, s *Server, method, path, contentType string, body []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	s.Engine().ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, s *Server, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		require.NoError(t, err)
	}
	return do(t, s, method, path, "application/json", body)
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

type recordView struct {
	ID            string  `json:"id"`
	AssetID       string  `json:"asset"`
	LubricantType string  `json:"lubricantType"`
	Amount        float64 `json:"amount"`
	Unit          string  `json:"unit"`
}

func TestRecordLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/records", map[string]any{
		"wo": "TIN-1", "asset": "BRU - 001", "lubricantType": "MOBIL UNIREX EP2", "amount": 250, "date": "2024-01-15",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		Data recordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.NotEmpty(t, created.Data.ID)
	assert.Equal(t, "g", created.Data.Unit)

	w = doJSON(t, s, http.MethodGet, "/api/records?family=grease&asset=bru%20-%20001", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data []recordView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list.Data, 1)

	w = doJSON(t, s, http.MethodGet, "/api/records?family=oil", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list.Data)

	w = doJSON(t, s, http.MethodPut, "/api/records/"+created.Data.ID, map[string]any{
		"wo": "TIN-1", "asset": "BRU - 002", "lubricantType": "MOBIL UNIREX EP2", "amount": 300,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, s, http.MethodPut, "/api/records/unknown", map[string]any{
		"asset": "BRU - 002", "lubricantType": "MOBIL UNIREX EP2", "amount": 300,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, s, http.MethodDelete, "/api/records/"+created.Data.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, s, http.MethodDelete, "/api/records/"+created.Data.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCreateRecordValidation(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPost, "/api/records", map[string]any{"lubricantType": "MOBIL UNIREX EP2", "amount": 1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_asset", payload.Errors[0].Code)
	assert.Equal(t, "asset", payload.Errors[0].Field)

	w = doJSON(t, s, http.MethodPost, "/api/records", map[string]any{"asset": "A", "lubricantType": "X", "amount": 1, "date": "yesterday"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_timestamp", decodeError(t, w).Errors[0].Code)

	w = do(t, s, http.MethodPost, "/api/records", "application/json", []byte("{"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/records?from=someday", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "from", decodeError(t, w).Errors[0].Field)
}

func TestImportAndExport(t *testing.T) {
	s := newTestServer(t)

	csv := "date,wo,asset,lubricantType,amount,unit\n" +
		"2024-01-15,TIN-1,BRU - 001,MOBIL UNIREX EP2,500,g\n" +
		"2024-02-10,TIN-2,BRU - 002,SHELL TELLUS S2 MX 32,12,L\n" +
		"2024-02-11,TIN-3,BRU - 003,MOBIL UNIREX EP2,0,g\n"
	w := do(t, s, http.MethodPost, "/api/records/import", "text/csv", []byte(csv))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"imported":2,"dropped":1}`, w.Body.String())

	w = do(t, s, http.MethodPost, "/api/records/import", "text/csv", []byte("date,wo,asset,lubricantType,amount,unit\n,,,,0,\n"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "no_valid_rows", decodeError(t, w).Errors[0].Code)

	w = doJSON(t, s, http.MethodGet, "/api/records/export.csv?family=grease", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "grease_consumption.csv")
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,wo,asset,lubricantType,amount,unit", lines[0])
	assert.Contains(t, lines[1], `"BRU - 001"`)

	w = doJSON(t, s, http.MethodGet, "/api/records/export.xlsx?family=oil&period=year", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "oil_consumption.xlsx")
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}

func TestReports(t *testing.T) {
	s := newTestServer(t)
	for _, amount := range []int{500, 300} {
		w := doJSON(t, s, http.MethodPost, "/api/records", map[string]any{
			"asset": "BRU - 001", "lubricantType": "MOBIL UNIREX EP2", "amount": amount, "date": "2024-01-15",
		})
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := doJSON(t, s, http.MethodGet, "/api/reports/grease?period=year&type=MOBIL%20UNIREX%20EP2", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Data struct {
			Labels []string `json:"labels"`
			Series []struct {
				Name   string    `json:"name"`
				Points []float64 `json:"points"`
			} `json:"series"`
			Target *struct {
				Points []float64 `json:"points"`
			} `json:"target"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"2024"}, resp.Data.Labels)
	require.Len(t, resp.Data.Series, 1)
	assert.Equal(t, "Total (g)", resp.Data.Series[0].Name)
	assert.Equal(t, []float64{800}, resp.Data.Series[0].Points)
	require.NotNil(t, resp.Data.Target)
	assert.Equal(t, []float64{9000}, resp.Data.Target.Points)

	w = doJSON(t, s, http.MethodGet, "/api/reports/water", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_family", decodeError(t, w).Errors[0].Code)

	w = doJSON(t, s, http.MethodGet, "/api/reports/grease?period=decade", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_period", decodeError(t, w).Errors[0].Code)

	w = doJSON(t, s, http.MethodGet, "/api/reports/grease/pdf", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
}

func TestInspectionFlow(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/records/prefill", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	submission := map[string]any{
		"wo":       "TIN-42",
		"route":    "W3ELL0001",
		"execDate": "2024-05-20",
		"execTime": "06:30",
		"entries": []map[string]any{{
			"asset":         "BRU - 001",
			"amount":        150,
			"lubricantType": "MOBIL UNIREX EP2",
			"responses":     []map[string]any{{"answer": "Yes"}, {}, {}, {}, {}, {}, {}},
		}},
	}
	w = doJSON(t, s, http.MethodPost, "/api/inspections", submission)
	require.Equal(t, http.StatusBadRequest, w.Code)
	payload := decodeError(t, w)
	assert.Equal(t, "invalid_route", payload.Errors[0].Code)

	submission["route"] = "W3ELL0037"
	w = doJSON(t, s, http.MethodPost, "/api/inspections", submission)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var outcome struct {
		Data struct {
			Status    string `json:"status"`
			Persisted int    `json:"persisted"`
			Mailto    string `json:"mailto"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &outcome))
	assert.Equal(t, "green", outcome.Data.Status)
	assert.Equal(t, 1, outcome.Data.Persisted)
	assert.True(t, strings.HasPrefix(outcome.Data.Mailto, "mailto:qa%40example.com"))

	w = doJSON(t, s, http.MethodGet, "/api/records/prefill", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"asset":"BRU - 001"`)

	w = doJSON(t, s, http.MethodPost, "/api/inspections/pdf", submission)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "QAQC_TIN-42.pdf")

	w = doJSON(t, s, http.MethodGet, "/api/assets", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "BRU - 001")
}

type recordingMailer struct {
	sent []email.Message
}

func (m *recordingMailer) Send(ctx context.Context, msg email.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

func TestEmailInspection(t *testing.T) {
	s := newTestServer(t)
	submission := map[string]any{
		"wo":    "TIN-43",
		"route": "W3ELL0038",
		"entries": []map[string]any{{
			"asset":         "BRU - 001",
			"amount":        10,
			"lubricantType": "MOBIL UNIREX EP2",
			"responses":     []map[string]any{{"answer": "Yes"}, {}, {}, {}, {}, {}, {}},
		}},
	}

	w := doJSON(t, s, http.MethodPost, "/api/inspections/email", submission)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	s.email = &email.NoOpProvider{}
	w = doJSON(t, s, http.MethodPost, "/api/inspections/email", submission)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	mailer := &recordingMailer{}
	s.email = mailer
	w = doJSON(t, s, http.MethodPost, "/api/inspections/email", submission)
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, mailer.sent, 1)
	msg := mailer.sent[0]
	assert.Equal(t, []string{"qa@example.com"}, msg.To)
	assert.Contains(t, msg.Subject, "TIN-43")
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, "QAQC_TIN-43.pdf", msg.Attachments[0].Name)
	assert.True(t, bytes.HasPrefix(msg.Attachments[0].Data, []byte("%PDF")))

	delete(submission, "wo")
	w = doJSON(t, s, http.MethodPost, "/api/inspections/email", submission)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, mailer.sent, 1)
}

func TestInspectionDraft(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodPut, "/api/inspections/draft", map[string]string{"wo_number": "TIN-7"})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/inspections/draft", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"data":{"wo_number":"TIN-7"}}`, w.Body.String())

	w = doJSON(t, s, http.MethodDelete, "/api/inspections/draft", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/inspections/draft", nil)
	assert.JSONEq(t, `{"data":{}}`, w.Body.String())
}

func TestCatalogRoutes(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/api/lubricants", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"SHELL TELLUS S2 MX 68":20`)

	w = doJSON(t, s, http.MethodGet, "/api/routes", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"W3ELL0039","description":"ETL3-LUB- EXIT SECTION LUBRICATION TECHNICAL INFO"`)

	w = doJSON(t, s, http.MethodGet, "/api/assets/..%2Fsecret/image", nil)
	assert.NotEqual(t, http.StatusOK, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamRecordEventsUnavailable(t *testing.T) {
	s := newTestServer(t)
	s.liveEvents = nil
	w := doJSON(t, s, http.MethodGet, "/api/records/events", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestWriteRecordEvent(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecordEvent(&buf, consumptionEvent()))
	assert.True(t, strings.HasPrefix(buf.String(), "id: e1\nevent: added\ndata: {"))
	assert.True(t, strings.HasSuffix(buf.String(), "\n\n"))
}

func TestExportFilename(t *testing.T) {
	assert.Equal(t, "grease_consumption.csv", exportFilename("Grease", "csv"))
	assert.Equal(t, "all_consumption.xlsx", exportFilename("", "xlsx"))
}

func consumptionEvent() consumptiondomain.ChangeEvent {
	return consumptiondomain.ChangeEvent{ID: "e1", Type: consumptiondomain.ChangeAdded, Count: 1}
}
