package device

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"01890a5d-ac96-774b-bcce-b302099a8057", false},
		{"6ba7b810-9dad-11d1-80b4-00c04fd430c8", false}, // v1 still parses
		{"", true},
		{"not-a-valid-id-format", true},
		{"01890a5d-ac96-774b-bcce", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidInput) {
				t.Errorf("ValidateID(%q) error = %v, want ErrInvalidInput", tt.id, err)
			}
		})
	}
}

func TestNormalizeID(t *testing.T) {
	const id = "01890a5d-ac96-774b-bcce-b302099a8057"
	tests := []struct {
		in      string
		wantErr bool
	}{
		{id, false},
		{strings.ToUpper(id), false},
		{"{" + id + "}", false},
		{"urn:uuid:" + id, false},
		{strings.ReplaceAll(id, "-", ""), false},
		{"", true},
		{"not-a-uuid", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizeID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NormalizeID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil {
				if !errors.Is(err, ErrInvalidInput) {
					t.Errorf("NormalizeID(%q) error = %v, want ErrInvalidInput", tt.in, err)
				}
				return
			}
			if got != id {
				t.Errorf("NormalizeID(%q) = %q, want %q", tt.in, got, id)
			}
		})
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"", false},
		{"http://10.0.0.5/heartbeat", false},
		{"https://example.com:8443/ping?x=1", false},
		{"/relative", true},
		{"example.com/ping", true},
		{"ftp://example.com", true},
		{"http://", true},
		{"http://bad host/", true},
		{"https://example.com/" + strings.Repeat("a", maxURLLength), true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := ValidateURL("heartbeat_url", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestValidateReading(t *testing.T) {
	id := "01890a5d-ac96-774b-bcce-b302099a8057"

	tests := []struct {
		name                 string
		deviceID, n, v, unit string
		wantErr              bool
	}{
		{"valid", id, "temp", "21", "C", false},
		{"no unit", id, "temp", "21", "", false},
		{"unit at limit", id, "temp", "21", strings.Repeat("u", maxUnitLength), false},
		{"unit too long", id, "temp", "21", strings.Repeat("u", maxUnitLength+1), true},
		{"name too long", id, strings.Repeat("n", maxNameLength+1), "21", "", true},
		{"blank name", id, "  ", "21", "", true},
		{"empty value", id, "temp", "", "", true},
		{"bad device id", "x", "temp", "21", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateReading(tt.deviceID, tt.n, tt.v, tt.unit)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateReading() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidatePatch(t *testing.T) {
	if err := ValidatePatch(nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("ValidatePatch(nil) error = %v, want ErrInvalidInput", err)
	}
	if err := ValidatePatch(&Patch{}); err != nil {
		t.Errorf("ValidatePatch(empty) error = %v", err)
	}
	if err := ValidatePatch(&Patch{HeartbeatURL: strPtr("")}); err != nil {
		t.Errorf("ValidatePatch(clear url) error = %v", err)
	}
	if err := ValidatePatch(&Patch{Name: strPtr("")}); err == nil {
		t.Error("ValidatePatch(empty name) expected error")
	}
}

func TestPatch_Apply(t *testing.T) {
	d := &Device{Name: "X", HeartbeatURL: "http://y/", PictureURL: "http://p/", Online: false}

	(&Patch{Online: boolPtr(true), PictureURL: strPtr("")}).Apply(d)

	if d.Name != "X" || d.HeartbeatURL != "http://y/" || d.PictureURL != "" || !d.Online {
		t.Errorf("Apply() = %+v", d)
	}
	if !(&Patch{}).IsEmpty() || (&Patch{Online: boolPtr(false)}).IsEmpty() {
		t.Error("IsEmpty() wrong")
	}
}

func TestValue_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"string", `{"value":"21"}`, "21", false},
		{"integer", `{"value":21}`, "21", false},
		{"float keeps text", `{"value":21.50}`, "21.50", false},
		{"exponent", `{"value":1e3}`, "1e3", false},
		{"negative", `{"value":-4}`, "-4", false},
		{"true", `{"value":true}`, "true", false},
		{"false", `{"value":false}`, "false", false},
		{"null", `{"value":null}`, "", false},
		{"object", `{"value":{"a":1}}`, "", true},
		{"array", `{"value":[1]}`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body struct {
				Value Value `json:"value"`
			}
			err := json.Unmarshal([]byte(tt.input), &body)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && body.Value.String() != tt.want {
				t.Errorf("Value = %q, want %q", body.Value, tt.want)
			}
		})
	}
}
