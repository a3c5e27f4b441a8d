// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package transform

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/leseb/integrations-gw/pkg/core/jsonval"
	"github.com/leseb/integrations-gw/pkg/core/schema"
)

func newTestTransformer() *Transformer {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func parse(t *testing.T, s string) jsonval.Value {
	t.Helper()
	v, err := jsonval.Parse([]byte(s))
	if err != nil {
		t.Fatalf("Parse(%q): %v", s, err)
	}
	return v
}

func rules(t *testing.T, s string) []schema.TransformRule {
	t.Helper()
	var out []schema.TransformRule
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		t.Fatalf("unmarshal rules: %v", err)
	}
	return out
}

func assertJSON(t *testing.T, got jsonval.Value, want string) {
	t.Helper()
	w, err := jsonval.Parse([]byte(want))
	if err != nil {
		t.Fatalf("bad expectation %q: %v", want, err)
	}
	if !got.Equal(w) {
		t.Errorf("got %s, want %s", got.Text(), w.Text())
	}
}

func TestApply_Map(t *testing.T) {
	tr := newTestTransformer()
	body := parse(t, `{"visibility": {"com.linkedin": "PUBLIC"}, "text": "hi"}`)

	got, warnings := tr.Apply(body, []schema.TransformRule{
		{Type: "map", Source: "text", Target: "commentary"},
	})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	assertJSON(t, got, `{"visibility": {"com.linkedin": "PUBLIC"}, "commentary": "hi"}`)
}

func TestApply_MapDefaultsWhenTypeEmpty(t *testing.T) {
	tr := newTestTransformer()
	got, _ := tr.Apply(parse(t, `{"a": {"b": 1}}`), rules(t, `[{"source": "a.b", "target": "c"}]`))
	assertJSON(t, got, `{"a": {}, "c": 1}`)
}

func TestApply_MapSameSourceAndTargetKeepsValue(t *testing.T) {
	tr := newTestTransformer()
	got, _ := tr.Apply(parse(t, `{"n": 5}`), []schema.TransformRule{
		{Type: "map", Source: "n", Target: "n", Transform: "stringify"},
	})
	assertJSON(t, got, `{"n": "5"}`)
}

func TestApply_MapMissingSourceIsNoop(t *testing.T) {
	tr := newTestTransformer()
	got, warnings := tr.Apply(parse(t, `{"a": null}`), []schema.TransformRule{
		{Type: "map", Source: "a", Target: "b"},
		{Type: "map", Source: "missing", Target: "c"},
	})
	if len(warnings) != 0 {
		t.Errorf("missing sources are not warnings: %v", warnings)
	}
	assertJSON(t, got, `{"a": null}`)
}

func TestApply_MapParseJSON(t *testing.T) {
	tr := newTestTransformer()
	got, warnings := tr.Apply(parse(t, `{"blocks": "[{\"type\":\"section\"}]"}`), []schema.TransformRule{
		{Type: "map", Source: "blocks", Target: "blocks", Transform: "parse_json"},
	})
	if len(warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", warnings)
	}
	assertJSON(t, got, `{"blocks": [{"type": "section"}]}`)
}

func TestApply_MapStringifyObject(t *testing.T) {
	tr := newTestTransformer()
	got, _ := tr.Apply(parse(t, `{"meta": {"k": [1, true]}}`), []schema.TransformRule{
		{Type: "map", Source: "meta", Target: "meta_text", Transform: "stringify"},
	})
	assertJSON(t, got, `{"meta_text": "{\"k\":[1,true]}"}`)
}

func TestApply_AddNeverOverwrites(t *testing.T) {
	tr := newTestTransformer()
	got, _ := tr.Apply(parse(t, `{"lifecycleState": "DRAFT"}`), rules(t, `[
		{"type": "add", "target": "lifecycleState", "value": "PUBLISHED"},
		{"type": "add", "target": "distribution.feedDistribution", "value": "MAIN_FEED"},
		{"type": "add", "target": "flag"}
	]`))
	assertJSON(t, got, `{
		"lifecycleState": "DRAFT",
		"distribution": {"feedDistribution": "MAIN_FEED"},
		"flag": null
	}`)
}

func TestApply_ExtractKeepsSource(t *testing.T) {
	tr := newTestTransformer()
	got, _ := tr.Apply(parse(t, `{"data": {"user": {"id": "u1"}}}`), []schema.TransformRule{
		{Type: "extract", Source: "data.user.id"},
		{Type: "extract", Source: "data.user", Target: "owner"},
	})
	assertJSON(t, got, `{"data": {"user": {"id": "u1"}}, "id": "u1", "owner": {"id": "u1"}}`)
}

func TestApply_RenameIsTopLevelOnly(t *testing.T) {
	tr := newTestTransformer()
	got, _ := tr.Apply(parse(t, `{"a": 1, "n": {"a": 2}}`), []schema.TransformRule{
		{Type: "rename", OldName: "a", NewName: "b"},
		{Type: "rename", OldName: "absent", NewName: "c"},
	})
	assertJSON(t, got, `{"b": 1, "n": {"a": 2}}`)
}

func TestApply_OrderMatters(t *testing.T) {
	tr := newTestTransformer()
	rename := schema.TransformRule{Type: "rename", OldName: "a", NewName: "b"}
	del := schema.TransformRule{Type: "delete", Target: "b"}

	got, _ := tr.Apply(parse(t, `{"a": 1}`), []schema.TransformRule{rename, del})
	assertJSON(t, got, `{}`)

	got, _ = tr.Apply(parse(t, `{"a": 1}`), []schema.TransformRule{del, rename})
	assertJSON(t, got, `{"b": 1}`)
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	tr := newTestTransformer()
	body := parse(t, `{"a": {"b": {"c": 1}}, "d": [1, 2]}`)
	before := body.Clone()

	tr.Apply(body, []schema.TransformRule{
		{Type: "map", Source: "a.b.c", Target: "x"},
		{Type: "delete", Target: "d"},
		{Type: "add", Target: "a.b.e", Value: ptr(jsonval.StringValue("new"))},
		{Type: "rename", OldName: "a", NewName: "z"},
	})

	if !body.Equal(before) {
		t.Errorf("input mutated: got %s, want %s", body.Text(), before.Text())
	}
}

func TestApply_BadRulesAreSkipped(t *testing.T) {
	tr := newTestTransformer()
	got, warnings := tr.Apply(parse(t, `{"s": "text", "j": "{broken", "keep": 1}`), []schema.TransformRule{
		{Type: "map", Source: "keep"},                                         // missing target
		{Type: "teleport", Source: "keep", Target: "x"},                       // unknown type
		{Type: "map", Source: "j", Target: "j", Transform: "parse_json"},      // invalid json
		{Type: "add", Target: "s.inner", Value: ptr(jsonval.BoolValue(true))}, // s is a string
		{Type: "map", Source: "keep", Target: "kept", Transform: "uppercase"}, // unknown transform
		{Type: "rename", OldName: "keep", NewName: "renamed"},
	})

	if len(warnings) != 5 {
		t.Fatalf("expected 5 warnings, got %d: %v", len(warnings), warnings)
	}
	wantIdx := []int{0, 1, 2, 3, 4}
	for i, w := range warnings {
		if w.Index != wantIdx[i] {
			t.Errorf("warning %d: expected index %d, got %d", i, wantIdx[i], w.Index)
		}
	}
	assertJSON(t, got, `{"s": "text", "j": "{broken", "renamed": 1}`)
}

func TestApply_NonObjectPayload(t *testing.T) {
	tr := newTestTransformer()
	body := parse(t, `[1, 2, 3]`)
	got, warnings := tr.Apply(body, []schema.TransformRule{{Type: "delete", Target: "a"}})
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning, got %v", warnings)
	}
	assertJSON(t, got, `[1, 2, 3]`)
}

func TestApply_NoRulesReturnsCopy(t *testing.T) {
	tr := newTestTransformer()
	body := parse(t, `{"a": {"b": 1}}`)
	got, warnings := tr.Apply(body, nil)
	if warnings != nil {
		t.Errorf("unexpected warnings %v", warnings)
	}
	got.Set("a.b", jsonval.StringValue("changed"))
	if v, _ := body.Get("a.b"); v.Kind() != jsonval.Number {
		t.Error("result should not share structure with the input")
	}
}

func ptr[T any](v T) *T { return &v }
