package domain

import (
	"errors"
	"testing"
)

func TestParseActionFromString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Action
		wantErr bool
	}{
		{name: "create", input: "create", want: ActionCreate},
		{name: "upper case", input: "DELETE", want: ActionDelete},
		{name: "surrounding spaces", input: "  update ", want: ActionUpdate},
		{name: "other", input: "other", want: ActionOther},
		{name: "unknown", input: "archive", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := ParseActionFromString(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseActionFromString(%q) expected error", tt.input)
				}
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseActionFromString(%q) error = %v", tt.input, err)
			}
			if got != tt.want {
				t.Fatalf("ParseActionFromString(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestTypeForAction(t *testing.T) {
	t.Parallel()

	tests := []struct {
		action Action
		want   Type
	}{
		{action: ActionCreate, want: TypeSuccess},
		{action: ActionUpdate, want: TypeInfo},
		{action: ActionDelete, want: TypeWarning},
		{action: ActionOther, want: TypeInfo},
	}

	for _, tt := range tests {
		if got := TypeForAction(tt.action); got != tt.want {
			t.Fatalf("TypeForAction(%s) = %s, want %s", tt.action, got, tt.want)
		}
	}
}

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	valid := Notification{
		Title:   "Chi phí đã được xóa",
		Message: "Mô tả: Xi măng",
		Action:  ActionDelete,
		Type:    TypeWarning,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	missingTitle := valid
	missingTitle.Title = "  "
	if err := missingTitle.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}

	badAction := valid
	badAction.Action = Action("purge")
	if err := badAction.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}

	badType := valid
	badType.Type = Type("fatal")
	if err := badType.Validate(); !errors.Is(err, ErrValidation) {
		t.Fatalf("Validate() error = %v, want ErrValidation", err)
	}
}
