package rule_test

import (
	"strings"
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/yeisme/dataviz/pkg/rule"
)

type pageQuery struct {
	Limit  int    `rule:"min=1,max=1000"`
	Offset int    `rule:"min=0"`
	Sort   string `rule:"omitempty,oneof=asc desc"`
}

func TestValidateStruct(t *testing.T) {
	cases := []struct {
		name    string
		in      pageQuery
		wantErr bool
	}{
		{"defaults", pageQuery{Limit: 100}, false},
		{"upper bound", pageQuery{Limit: 1000, Offset: 5, Sort: "desc"}, false},
		{"zero limit", pageQuery{Limit: 0}, true},
		{"limit too high", pageQuery{Limit: 1001}, true},
		{"negative offset", pageQuery{Limit: 10, Offset: -1}, true},
		{"bad sort", pageQuery{Limit: 10, Sort: "up"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := rule.ValidateStruct(tc.in)
			if (err != nil) != tc.wantErr {
				t.Fatalf("ValidateStruct(%+v) error = %v, wantErr %v", tc.in, err, tc.wantErr)
			}
		})
	}
}

func TestUploadFilename(t *testing.T) {
	cases := map[string]bool{
		"data.csv":         true,
		"report 2024.xlsx": true,
		"a..b.csv":         true,
		"":                 false,
		".":                false,
		"..":               false,
		"../etc/passwd":    false,
		"dir/data.csv":     false,
		`dir\data.csv`:     false,
	}

	for name, ok := range cases {
		err := rule.ValidateVar(name, "upload_filename")
		if ok && err != nil {
			t.Errorf("%q should be valid, got %v", name, err)
		}

		if !ok && err == nil {
			t.Errorf("%q should be invalid", name)
		}
	}
}

func TestCron(t *testing.T) {
	if err := rule.ValidateVar("*/10 * * * *", "cron"); err != nil {
		t.Errorf("expected valid cron, got %v", err)
	}

	if err := rule.ValidateVar("* * *", "cron"); err == nil {
		t.Error("expected error for short cron")
	}
}

func TestErrors(t *testing.T) {
	errs := rule.Errors(rule.ValidateStruct(pageQuery{Limit: 0, Offset: -1}))
	if len(errs) != 2 {
		t.Fatalf("expected 2 field errors, got %v", errs)
	}

	if _, ok := errs["pageQuery.Limit"]; !ok {
		t.Errorf("expected pageQuery.Limit in %v", errs)
	}

	if rule.Errors(nil) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestRegisterValidationAndAlias(t *testing.T) {
	err := rule.RegisterValidation("csv_ext", func(fl validator.FieldLevel) bool {
		return strings.HasSuffix(fl.Field().String(), ".csv")
	})
	if err != nil {
		t.Fatalf("register validation: %v", err)
	}

	rule.RegisterAlias("csv_file", "upload_filename,csv_ext")

	if err := rule.ValidateVar("data.csv", "csv_file"); err != nil {
		t.Errorf("expected data.csv to pass, got %v", err)
	}

	if err := rule.ValidateVar("data.xlsx", "csv_file"); err == nil {
		t.Error("expected data.xlsx to fail csv_file")
	}

	if rule.Engine() == nil {
		t.Error("Engine() returned nil")
	}
}
