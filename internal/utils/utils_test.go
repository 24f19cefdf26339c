package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWriteJSON(t *testing.T) {
	t.Run("sets content-type and status", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusOK, map[string]string{"key": "value"})

		if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q; want application/json; charset=utf-8", got)
		}
		if w.Code != http.StatusOK {
			t.Errorf("Code = %d; want %d", w.Code, http.StatusOK)
		}
	})

	t.Run("encodes body as JSON", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteJSON(w, http.StatusCreated, map[string][]float64{"bom-94865": {11.2}})

		var got map[string][]float64
		if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
			t.Fatalf("body is not valid JSON: %v", err)
		}
		if len(got["bom-94865"]) != 1 || got["bom-94865"][0] != 11.2 {
			t.Errorf("body = %v; want bom-94865: [11.2]", got)
		}
	})
}

func TestWriteError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, http.StatusBadGateway, "upstream failed")

	if w.Code != http.StatusBadGateway {
		t.Errorf("Code = %d; want %d", w.Code, http.StatusBadGateway)
	}

	var got map[string]any
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("body is not valid JSON: %v", err)
	}
	if got["error"] != http.StatusText(http.StatusBadGateway) {
		t.Errorf("error = %q; want %q", got["error"], http.StatusText(http.StatusBadGateway))
	}
	if got["message"] != "upstream failed" {
		t.Errorf("message = %q; want %q", got["message"], "upstream failed")
	}
}

func TestWriteAttachment(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAttachment(w, "application/pdf", "window-7d.pdf", []byte("%PDF-1.3"))

	if w.Code != http.StatusOK {
		t.Errorf("Code = %d; want 200", w.Code)
	}
	if got := w.Header().Get("Content-Type"); got != "application/pdf" {
		t.Errorf("Content-Type = %q; want application/pdf", got)
	}
	if got := w.Header().Get("Content-Disposition"); got != `attachment; filename="window-7d.pdf"` {
		t.Errorf("Content-Disposition = %q", got)
	}
	if got := w.Header().Get("Content-Length"); got != "8" {
		t.Errorf("Content-Length = %q; want 8", got)
	}
	if w.Body.String() != "%PDF-1.3" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestParseDays(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		want    float64
		wantErr bool
	}{
		{name: "default", query: "", want: 7},
		{name: "integer", query: "?days=2", want: 2},
		{name: "fractional", query: "?days=0.5", want: 0.5},
		{name: "max", query: "?days=3650", want: 3650},
		{name: "zero", query: "?days=0", wantErr: true},
		{name: "negative", query: "?days=-1", wantErr: true},
		{name: "too large", query: "?days=3651", wantErr: true},
		{name: "not a number", query: "?days=week", wantErr: true},
		{name: "nan", query: "?days=NaN", wantErr: true},
		{name: "inf", query: "?days=Inf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/window"+tt.query, nil)
			got, err := ParseDays(req, 7, 3650)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseDays(%q) err = nil; want error", tt.query)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseDays(%q) err = %v; want nil", tt.query, err)
			}
			if got != tt.want {
				t.Errorf("ParseDays(%q) = %v; want %v", tt.query, got, tt.want)
			}
		})
	}
}
