package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/agrisa/satellite-data-service/internal/apperr"
	"github.com/agrisa/satellite-data-service/internal/earthengine"
	"github.com/agrisa/satellite-data-service/internal/earthengine/eetest"
	"github.com/agrisa/satellite-data-service/internal/farm"
	"github.com/agrisa/satellite-data-service/internal/gateway"
	"github.com/agrisa/satellite-data-service/internal/jobs"
	"github.com/agrisa/satellite-data-service/internal/metrics"
)

// captureMetrics redirects EMF output for the duration of the test.
func captureMetrics(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := metrics.SetOutput(&buf)
	t.Cleanup(func() { metrics.SetOutput(prev) })
	return &buf
}

func newHandler(t *testing.T, p earthengine.Platform, d farm.Deps) (http.Handler, *farm.Service) {
	t.Helper()
	if p != nil {
		exec := gateway.New(gateway.Options{Workers: 2, MaxInFlight: 4})
		t.Cleanup(exec.Close)
		d.Platform = p
		d.Exec = exec
	}
	svc := farm.New(d)
	return New(svc, Options{AllowedOrigins: []string{"https://app.agrisa.vn"}}), svc
}

func do(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var r *http.Request
	if body == "" {
		r = httptest.NewRequest(method, target, nil)
	} else {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	return w
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body %q: %v", w.Body.String(), err)
	}
	return body["error"]
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{apperr.Invalidf("bad"), http.StatusBadRequest},
		{apperr.New(apperr.KindNoCandidates, "none"), http.StatusNotFound},
		{apperr.New(apperr.KindNoImagery, "none"), http.StatusNotFound},
		{apperr.New(apperr.KindNoFieldAtPoint, "none"), http.StatusNotFound},
		{apperr.New(apperr.KindNotFound, "none"), http.StatusNotFound},
		{apperr.Wrap(apperr.KindRemotePlatform, "ee", errors.New("500")), http.StatusBadGateway},
		{apperr.New(apperr.KindUnavailable, "down"), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			if got := StatusFor(tt.err); got != tt.want {
				t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestHealthWithoutPlatform(t *testing.T) {
	buf := captureMetrics(t)
	h, _ := newHandler(t, nil, farm.Deps{Info: farm.Info{Name: "svc", Version: "1.0.0"}})

	w := do(h, http.MethodGet, "/satellite/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body farm.Health
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "degraded" || body.Version != "1.0.0" {
		t.Errorf("health = %+v", body)
	}
	if _, err := uuid.Parse(w.Header().Get(RequestIDHeader)); err != nil {
		t.Errorf("request id header = %q", w.Header().Get(RequestIDHeader))
	}
	if !strings.Contains(buf.String(), `"Endpoint":"GET /satellite/health"`) || !strings.Contains(buf.String(), "RequestCount") {
		t.Errorf("metrics = %s", buf.String())
	}
}

func TestRequestIDIsPropagated(t *testing.T) {
	captureMetrics(t)
	h, _ := newHandler(t, nil, farm.Deps{})

	id := uuid.NewString()
	r := httptest.NewRequest(http.MethodGet, "/satellite/regions", nil)
	r.Header.Set(RequestIDHeader, id)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	if w.Header().Get(RequestIDHeader) != id {
		t.Errorf("request id = %q, want %q", w.Header().Get(RequestIDHeader), id)
	}
	var body farm.Regions
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.PrimaryRegion != "Vietnam" || len(body.SupportedSatellites) != 3 {
		t.Errorf("regions = %+v", body)
	}
}

func TestValidateCoordinates(t *testing.T) {
	captureMetrics(t)
	h, _ := newHandler(t, nil, farm.Deps{})

	w := do(h, http.MethodPost, "/satellite/validate-coordinates", `{"latitude": 21.03, "longitude": 105.85}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"within_vietnam":true`) {
		t.Errorf("body = %s", w.Body.String())
	}

	w = do(h, http.MethodPost, "/satellite/validate-coordinates", `{"latitude": 120, "longitude": 105.85}`)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"valid":false`) {
		t.Errorf("out of range: %d %s", w.Code, w.Body.String())
	}
}

func TestErrorStatuses(t *testing.T) {
	captureMetrics(t)
	h, _ := newHandler(t, nil, farm.Deps{})

	const farmBody = `{"coordinates": [[106.60, 10.80], [106.61, 10.80], [106.61, 10.81], [106.60, 10.80]],
		"start_date": "2024-01-01", "end_date": "2024-01-31"}`

	tests := []struct {
		name   string
		method string
		target string
		body   string
		want   int
	}{
		{"malformed json", http.MethodPost, "/satellite/public/farm/ndvi", `{"coordinates":`, http.StatusBadRequest},
		{"empty body", http.MethodPost, "/satellite/public/farm/ndmi", "", http.StatusBadRequest},
		{"invalid region", http.MethodPost, "/satellite/public/farm/ndvi", `{"coordinates": [[1, 2]], "start_date": "2024-01-01", "end_date": "2024-01-31"}`, http.StatusBadRequest},
		{"platform missing", http.MethodPost, "/satellite/public/farm/ndvi", farmBody, http.StatusServiceUnavailable},
		{"missing latitude", http.MethodGet, "/satellite/image?longitude=106.6", "", http.StatusBadRequest},
		{"non numeric latitude", http.MethodGet, "/satellite/public/boundary/detect?latitude=north&longitude=106.6", "", http.StatusBadRequest},
		{"bad async flag", http.MethodPost, "/satellite/public/boundary/region?async=maybe", `{}`, http.StatusBadRequest},
		{"wrong method", http.MethodGet, "/satellite/public/farm/ndvi", "", http.StatusMethodNotAllowed},
		{"jobs disabled", http.MethodGet, "/satellite/public/jobs/roi-0123456789abcdef", "", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(h, tt.method, tt.target, tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
			if tt.want != http.StatusMethodNotAllowed && errorMessage(t, w) == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/satellite/health", nil)
	respondError(w, r, errors.New("dial tcp 10.0.0.5:443: secret detail"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if msg := errorMessage(t, w); msg != "Internal server error" {
		t.Errorf("message = %q", msg)
	}
}

func TestCORS(t *testing.T) {
	captureMetrics(t)
	h, _ := newHandler(t, nil, farm.Deps{})

	r := httptest.NewRequest(http.MethodOptions, "/satellite/public/farm/ndvi", nil)
	r.Header.Set("Origin", "https://app.agrisa.vn")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if w.Code != http.StatusNoContent || w.Header().Get("Access-Control-Allow-Origin") != "https://app.agrisa.vn" {
		t.Errorf("preflight = %d %v", w.Code, w.Header())
	}

	r = httptest.NewRequest(http.MethodGet, "/satellite/regions", nil)
	r.Header.Set("Origin", "https://evil.example")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unknown origin allowed: %q", got)
	}
}

func TestAsyncRegionJob(t *testing.T) {
	captureMetrics(t)
	fake := &eetest.Platform{
		ComputeFunc: func(ctx context.Context, expr *earthengine.Value) (json.RawMessage, error) {
			return nil, errors.New("quota exceeded")
		},
	}
	store := jobs.NewMemoryStore()
	h, svc := newHandler(t, fake, farm.Deps{Jobs: store})
	local := jobs.NewLocalDispatcher(store, svc.JobHandlers())
	svc.SetDispatcher(local)

	w := do(h, http.MethodPost, "/satellite/public/boundary/region?async=true",
		`{"north": 10.82, "south": 10.80, "east": 106.62, "west": 106.60, "start_date": "2024-01-01", "end_date": "2024-03-31"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	var accepted jobAccepted
	if err := json.Unmarshal(w.Body.Bytes(), &accepted); err != nil {
		t.Fatal(err)
	}
	if accepted.Status != jobs.StatusPending || accepted.PollURL != "/satellite/public/jobs/"+accepted.JobID {
		t.Errorf("accepted = %+v", accepted)
	}
	local.Wait()

	w = do(h, http.MethodGet, accepted.PollURL, "")
	if w.Code != http.StatusOK {
		t.Fatalf("poll status = %d", w.Code)
	}
	var job jobs.Job
	if err := json.Unmarshal(w.Body.Bytes(), &job); err != nil {
		t.Fatal(err)
	}
	if job.ID != accepted.JobID || job.Status != jobs.StatusError {
		t.Errorf("job = %+v", job)
	}

	w = do(h, http.MethodGet, "/satellite/public/jobs/"+jobs.GenerateID(jobs.RegionPrefix), "")
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown job status = %d", w.Code)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/satellite/public/jobs/roi-3f2a9c1d7e8b4a60", "/satellite/public/jobs/*"},
		{"/satellite/unknown", "/satellite/unknown"},
		{"/", "/"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, tt.path, nil)
		if got := normalizeEndpoint(r); got != tt.want {
			t.Errorf("normalizeEndpoint(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestBoundaryImageryEnvelope(t *testing.T) {
	captureMetrics(t)
	var scenes []map[string]any
	fake := &eetest.Platform{
		ComputeFunc: func(ctx context.Context, expr *earthengine.Value) (json.RawMessage, error) {
			if expr.FunctionName() == "Geometry.area" {
				return eetest.JSON(25000.0), nil
			}
			return eetest.Features(scenes...), nil
		},
	}
	h, _ := newHandler(t, fake, farm.Deps{})

	const ring = `[[106.60,10.80],[106.61,10.80],[106.61,10.81],[106.60,10.80]]`
	target := func(cloud string) string {
		v := url.Values{}
		v.Set("coordinates", ring)
		v.Set("start_date", "2024-01-01")
		v.Set("end_date", "2024-01-31")
		v.Set("max_cloud_cover", cloud)
		return "/satellite/public/boundary/imagery?" + v.Encode()
	}

	type body struct {
		Status string `json:"status"`
		Data   struct {
			Summary struct {
				TotalImages     int `json:"total_images"`
				ImagesProcessed int `json:"images_processed"`
			} `json:"summary"`
			FarmInfo struct {
				Area struct {
					Value float64 `json:"value"`
					Unit  string  `json:"unit"`
				} `json:"area"`
			} `json:"farm_info"`
			Images []struct {
				ImageIndex      int    `json:"image_index"`
				ImageID         string `json:"image_id"`
				AcquisitionDate string `json:"acquisition_date"`
				CloudCover      struct {
					Value float64 `json:"value"`
				} `json:"cloud_cover"`
				Visualization struct {
					NaturalColor struct {
						URL string `json:"url"`
					} `json:"natural_color"`
				} `json:"visualization"`
			} `json:"images"`
		} `json:"data"`
		Error *struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	decode := func(t *testing.T, w *httptest.ResponseRecorder) body {
		t.Helper()
		var b body
		if err := json.Unmarshal(w.Body.Bytes(), &b); err != nil {
			t.Fatalf("body %q: %v", w.Body.String(), err)
		}
		return b
	}

	t.Run("success", func(t *testing.T) {
		scenes = []map[string]any{{
			"asset_id":                "COPERNICUS/S2_SR_HARMONIZED/a",
			"PRODUCT_ID":              "S2A_MSIL2A_20240105T031109_N0510_R075_T48PWT_20240105T062204",
			"CLOUDY_PIXEL_PERCENTAGE": 4.567,
		}}
		w := do(h, http.MethodGet, target("100.0"), "")
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		b := decode(t, w)
		if b.Status != "success" || b.Error != nil {
			t.Fatalf("envelope = %+v", b)
		}
		if b.Data.Summary.TotalImages != 1 || b.Data.Summary.ImagesProcessed != 1 || len(b.Data.Images) != 1 {
			t.Fatalf("summary = %+v, images = %d", b.Data.Summary, len(b.Data.Images))
		}
		img := b.Data.Images[0]
		if img.AcquisitionDate != "2024-01-05" || img.CloudCover.Value != 4.57 || img.Visualization.NaturalColor.URL == "" {
			t.Errorf("image = %+v", img)
		}
		if b.Data.FarmInfo.Area.Value != 2.5 || b.Data.FarmInfo.Area.Unit != "hectares" {
			t.Errorf("area = %+v", b.Data.FarmInfo.Area)
		}
	})

	t.Run("no imagery", func(t *testing.T) {
		scenes = nil
		w := do(h, http.MethodGet, target("10"), "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("status = %d: %s", w.Code, w.Body.String())
		}
		b := decode(t, w)
		if b.Status != "error" || b.Error == nil || b.Error.Code != "NO_CANDIDATES" || b.Error.Message == "" {
			t.Errorf("envelope = %+v", b)
		}
	})

	t.Run("bad query", func(t *testing.T) {
		for _, target := range []string{
			target("NaN"),
			"/satellite/public/boundary/imagery?coordinates=oops&start_date=2024-01-01&end_date=2024-01-31",
			"/satellite/public/boundary/imagery?start_date=2024-01-01&end_date=2024-01-31",
		} {
			w := do(h, http.MethodGet, target, "")
			if w.Code != http.StatusBadRequest {
				t.Errorf("%s: status = %d", target, w.Code)
				continue
			}
			if b := decode(t, w); b.Error == nil || b.Error.Code != "INVALID_INPUT" {
				t.Errorf("%s: envelope = %+v", target, b)
			}
		}
	})
}

func TestNonFiniteQueryIsRejected(t *testing.T) {
	captureMetrics(t)
	h, _ := newHandler(t, nil, farm.Deps{})
	for _, v := range []string{"NaN", "Inf", "-Inf"} {
		w := do(h, http.MethodGet, "/satellite/public/boundary/detect?latitude=10.8&longitude=106.6&max_cloud_cover="+v, "")
		if w.Code != http.StatusBadRequest {
			t.Errorf("max_cloud_cover=%s: status = %d", v, w.Code)
		}
	}
}
