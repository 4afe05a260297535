package validator

import (
	"testing"
)

type folder struct {
	Name  string `validate:"notblank,regex=^[^/]+$"`
	Email string `validate:"omitempty,email"`
}

func TestValidation(t *testing.T) {
	validate := New()

	if err := validate.Struct(folder{Name: "Belgeler"}); err != nil {
		t.Errorf("Validation failed unexpectedly: %s", err.Error())
	}

	if err := validate.Struct(folder{Name: "   "}); err == nil {
		t.Error("Validation should have failed for blank name")
	}

	if err := validate.Struct(folder{Name: "a/b"}); err == nil {
		t.Error("Validation should have failed for name with separator")
	}

	if err := validate.Struct(folder{Name: "ok", Email: "johndoe"}); err == nil {
		t.Error("Validation should have failed for invalid email")
	}
}

func TestName(t *testing.T) {
	validate := New()

	tests := []struct {
		name    string
		wantErr bool
	}{
		{name: "Projeler", wantErr: false},
		{name: "rapor (1).pdf", wantErr: false},
		{name: "", wantErr: true},
		{name: " \t ", wantErr: true},
		{name: "dir/child", wantErr: true},
		{name: `dir\child`, wantErr: true},
	}

	for _, tt := range tests {
		err := validate.Name(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("Name(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
		}
	}
}
