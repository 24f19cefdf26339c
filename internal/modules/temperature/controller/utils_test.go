package controller

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timothy-holmes/ht-tracker/internal/modules/temperature/types"
)

func Test_lookbackFor(t *testing.T) {
	tests := []struct {
		days float64
		want time.Duration
	}{
		{days: 7, want: 168 * time.Hour},
		{days: 0.5, want: 12 * time.Hour},
		{days: 3650, want: 3650 * 24 * time.Hour},
	}
	for _, tt := range tests {
		if got := lookbackFor(tt.days); got != tt.want {
			t.Errorf("lookbackFor(%v) = %v; want %v", tt.days, got, tt.want)
		}
	}
}

func Test_windowFilename(t *testing.T) {
	if got := windowFilename(7, "pdf"); got != "window-7d.pdf" {
		t.Errorf("windowFilename(7) = %q", got)
	}
	if got := windowFilename(0.25, "xlsx"); got != "window-0.25d.xlsx" {
		t.Errorf("windowFilename(0.25) = %q", got)
	}
}

func Test_deviceNames(t *testing.T) {
	names, err := deviceNames(context.Background(), &mockDevices{devices: []types.Device{
		{ID: "bom-94865", Name: "Laverton"},
		{ID: "sensor-1"},
	}})
	if err != nil {
		t.Fatalf("deviceNames() err = %v", err)
	}
	if len(names) != 1 || names["bom-94865"] != "Laverton" {
		t.Errorf("names = %v; want only Laverton", names)
	}

	names, err = deviceNames(context.Background(), &mockDevices{err: errors.New("locked")})
	if err == nil {
		t.Fatal("deviceNames() err = nil; want error")
	}
	if names == nil || len(names) != 0 {
		t.Errorf("names = %v; want empty map", names)
	}
}
