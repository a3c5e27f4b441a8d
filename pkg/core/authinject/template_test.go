// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package authinject

import (
	"slices"
	"testing"
)

func TestParseTemplate(t *testing.T) {
	tests := []struct {
		in     string
		fields []string
	}{
		{"plain", nil},
		{"{a}", []string{"a"}},
		{"x-{a}-{b}-{a}", []string{"a", "b", "a"}},
		{"{{a}}", nil},
		{"{{{a}}}", []string{"a"}},
	}
	for _, tt := range tests {
		tmpl, err := ParseTemplate(tt.in)
		if err != nil {
			t.Errorf("ParseTemplate(%q): %v", tt.in, err)
			continue
		}
		if !slices.Equal(tmpl.Fields(), tt.fields) {
			t.Errorf("ParseTemplate(%q).Fields() = %v, want %v", tt.in, tmpl.Fields(), tt.fields)
		}
		if tmpl.String() != tt.in {
			t.Errorf("String() = %q, want %q", tmpl.String(), tt.in)
		}
	}
}

func TestParseTemplate_Errors(t *testing.T) {
	for _, in := range []string{"{", "{a", "a}", "{}", "{a{b}", "}{"} {
		if _, err := ParseTemplate(in); err == nil {
			t.Errorf("ParseTemplate(%q): expected error", in)
		}
	}
}

func TestRender(t *testing.T) {
	tmpl, err := ParseTemplate("{{{a}}}:{b}")
	if err != nil {
		t.Fatal(err)
	}

	got, ok := tmpl.Render(map[string]string{"a": "1", "b": "2"})
	if !ok || got != "{1}:2" {
		t.Errorf("Render = %q, %v", got, ok)
	}

	if _, ok := tmpl.Render(map[string]string{"a": "1"}); ok {
		t.Error("expected missing placeholder to fail rendering")
	}
	if _, ok := tmpl.Render(map[string]string{"a": "1", "b": ""}); ok {
		t.Error("expected empty value to fail rendering")
	}
}
