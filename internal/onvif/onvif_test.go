package onvif

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"192.168.1.20", "http://192.168.1.20/onvif/device_service", false},
		{"192.168.1.20:8080", "http://192.168.1.20:8080/onvif/device_service", false},
		{"https://cam.local/onvif/device_service", "https://cam.local/onvif/device_service", false},
		{"http://admin:pw@cam.local/", "http://cam.local/onvif/device_service", false},
		{"", "", true},
		{"rtsp://cam.local/", "", true},
		{"http:///nohost", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			u, err := ParseEndpoint(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Fatalf("ParseEndpoint(%q) err = %v, want ErrInvalidURL", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseEndpoint(%q) unexpected error: %v", tt.in, err)
			}
			if u.String() != tt.want {
				t.Errorf("ParseEndpoint(%q) = %q, want %q", tt.in, u.String(), tt.want)
			}
		})
	}
}

func TestHostOf(t *testing.T) {
	if got := HostOf("http://10.1.2.3:8899/onvif/device_service"); got != "10.1.2.3" {
		t.Errorf("HostOf = %q", got)
	}
	if got := HostOf("http://[::1]/x"); got != "::1" {
		t.Errorf("HostOf ipv6 = %q", got)
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want error
	}{
		{nil, nil},
		{fmt.Errorf("wrap: %w", ErrNotAuthorized), ErrNotAuthorized},
		{fmt.Errorf("wrap: %w", ErrSOAP), ErrSOAP},
		{errors.New("dial tcp: refused"), ErrConnection},
	}
	for _, tt := range tests {
		if got := Classify(tt.err); got != tt.want {
			t.Errorf("Classify(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestCredentialsString(t *testing.T) {
	if got := (Credentials{}).String(); got != "<none>" {
		t.Errorf("empty credentials = %q", got)
	}
	if got := (Credentials{Username: "admin", Password: "pw"}).String(); got != "admin:***" {
		t.Errorf("credentials = %q", got)
	}
}
