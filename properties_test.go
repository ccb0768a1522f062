package docsql

import (
	"strings"
	"testing"
)

func TestGetString(t *testing.T) {
	props := Properties{
		"db.driver": "mysql",
		"db.empty":  "",
	}

	tests := []struct {
		name string
		key  string
		def  string
		want string
	}{
		{"set key", "db.driver", "fallback", "mysql"},
		{"unset key", "db.missing", "fallback", "fallback"},
		{"empty value counts as unset", "db.empty", "fallback", "fallback"},
		{"empty default", "db.missing", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := props.GetString(tt.key, tt.def); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGetInt(t *testing.T) {
	props := Properties{
		"db.batchsize": "100",
		"db.negative":  "-5",
		"db.garbage":   "ten",
		"db.empty":     "",
	}

	tests := []struct {
		name    string
		key     string
		want    int
		wantErr bool
	}{
		{"parsable value", "db.batchsize", 100, false},
		{"negative value", "db.negative", -5, false},
		{"unset key means -1", "db.missing", -1, false},
		{"empty value means -1", "db.empty", -1, false},
		{"garbage is an error", "db.garbage", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := props.GetInt(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("Expected error for %q, got nil", tt.key)
				}
				if !strings.Contains(err.Error(), tt.key) {
					t.Errorf("Expected error to name %q, got %q", tt.key, err.Error())
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestGetBool(t *testing.T) {
	props := Properties{
		"db.true":    "true",
		"db.upper":   "TRUE",
		"db.one":     "1",
		"db.false":   "false",
		"db.zero":    "0",
		"db.garbage": "yes",
	}

	tests := []struct {
		name string
		key  string
		def  bool
		want bool
	}{
		{"true", "db.true", false, true},
		{"uppercase true", "db.upper", false, true},
		{"numeric true", "db.one", false, true},
		{"false", "db.false", true, false},
		{"numeric false", "db.zero", true, false},
		{"unset uses default true", "db.missing", true, true},
		{"unset uses default false", "db.missing", false, false},
		{"unparsable is false", "db.garbage", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := props.GetBool(tt.key, tt.def); got != tt.want {
				t.Errorf("Expected %v for %q, got %v", tt.want, tt.key, got)
			}
		})
	}
}
