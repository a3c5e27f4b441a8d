// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

// Package transform reshapes JSON payloads between an agent's canonical shape
// and an upstream API's shape using ordered, declarative rules.
//
// Supported rule types:
//
//	map      move source to target (optionally stringify/parse_json), deleting source
//	add      write value to target only when target resolves to nothing
//	extract  copy source to target; target defaults to source's last segment
//	rename   rename a top-level key
//	delete   remove target
//
// Rules run in list order against a copy of the payload. A rule that cannot be
// applied is skipped and reported as a Warning; it never fails the pipeline.
package transform

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/leseb/integrations-gw/pkg/core/jsonval"
	"github.com/leseb/integrations-gw/pkg/core/schema"
)

// Warning describes a rule that was skipped.
type Warning struct {
	Index  int    `json:"index"`
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

func (w Warning) String() string {
	return fmt.Sprintf("rule %d (%s): %s", w.Index, w.Type, w.Reason)
}

// Transformer applies transform rules.
type Transformer struct {
	logger *slog.Logger
}

// New creates a Transformer. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Transformer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Transformer{logger: logger}
}

// Apply runs rules against a deep copy of body and returns the result along
// with a warning for every skipped rule. body itself is never modified.
func (t *Transformer) Apply(body jsonval.Value, rules []schema.TransformRule) (jsonval.Value, []Warning) {
	result := body.Clone()
	if len(rules) == 0 {
		return result, nil
	}
	if !result.IsObject() {
		w := Warning{Index: -1, Type: "payload", Reason: fmt.Sprintf("payload is a %s, not an object", result.Kind())}
		t.logger.Warn("Skipping transform rules", "reason", w.Reason)
		return result, []Warning{w}
	}

	var warnings []Warning
	for i, rule := range rules {
		ruleType := rule.Type
		if ruleType == "" {
			ruleType = schema.RuleMap
		}
		if err := applyRule(result, ruleType, rule); err != nil {
			w := Warning{Index: i, Type: ruleType, Reason: err.Error()}
			t.logger.Warn("Skipping transform rule", "index", i, "type", ruleType, "reason", w.Reason)
			warnings = append(warnings, w)
		}
	}
	return result, warnings
}

func applyRule(obj jsonval.Value, ruleType string, rule schema.TransformRule) error {
	switch ruleType {
	case schema.RuleMap:
		return applyMap(obj, rule)
	case schema.RuleAdd:
		return applyAdd(obj, rule)
	case schema.RuleExtract:
		return applyExtract(obj, rule)
	case schema.RuleRename:
		return applyRename(obj, rule)
	case schema.RuleDelete:
		return applyDelete(obj, rule)
	default:
		return fmt.Errorf("unknown rule type %q", ruleType)
	}
}

// resolve returns the value at path, or ok=false when it resolves to nothing.
// A JSON null counts as nothing.
func resolve(obj jsonval.Value, path string) (jsonval.Value, bool, error) {
	v, err := obj.Lookup(path)
	if err != nil {
		if errors.Is(err, jsonval.ErrNotFound) || errors.Is(err, jsonval.ErrNotObject) {
			return jsonval.Value{}, false, nil
		}
		return jsonval.Value{}, false, err
	}
	if v.IsNull() {
		return jsonval.Value{}, false, nil
	}
	return v, true, nil
}

func applyMap(obj jsonval.Value, rule schema.TransformRule) error {
	if rule.Source == "" || rule.Target == "" {
		return errors.New("map rule requires source and target")
	}
	moved, err := copyValue(obj, rule.Source, rule.Target, rule.Transform)
	if err != nil || !moved {
		return err
	}
	if rule.Source != rule.Target {
		obj.Delete(rule.Source)
	}
	return nil
}

func applyExtract(obj jsonval.Value, rule schema.TransformRule) error {
	if rule.Source == "" {
		return errors.New("extract rule requires source")
	}
	target := rule.Target
	if target == "" {
		target = jsonval.LastSegment(rule.Source)
	}
	_, err := copyValue(obj, rule.Source, target, rule.Transform)
	return err
}

// copyValue writes the (optionally converted) value at source to target and
// reports whether anything was written.
func copyValue(obj jsonval.Value, source, target, fn string) (bool, error) {
	val, ok, err := resolve(obj, source)
	if err != nil || !ok {
		return false, err
	}
	val, err = convert(val.Clone(), fn)
	if err != nil {
		return false, err
	}
	if err := obj.Set(target, val); err != nil {
		return false, err
	}
	return true, nil
}

func convert(val jsonval.Value, fn string) (jsonval.Value, error) {
	switch fn {
	case "":
		return val, nil
	case schema.TransformStringify:
		return jsonval.StringValue(val.Text()), nil
	case schema.TransformParseJSON:
		s, ok := val.AsString()
		if !ok {
			return val, nil
		}
		parsed, err := jsonval.Parse([]byte(s))
		if err != nil {
			return val, fmt.Errorf("parse_json: %w", err)
		}
		return parsed, nil
	default:
		return val, fmt.Errorf("unknown transform %q", fn)
	}
}

func applyAdd(obj jsonval.Value, rule schema.TransformRule) error {
	if rule.Target == "" {
		return errors.New("add rule requires target")
	}
	if _, exists, err := resolve(obj, rule.Target); err != nil || exists {
		return err
	}
	var val jsonval.Value
	if rule.Value != nil {
		val = rule.Value.Clone()
	}
	return obj.Set(rule.Target, val)
}

func applyRename(obj jsonval.Value, rule schema.TransformRule) error {
	if rule.OldName == "" || rule.NewName == "" {
		return errors.New("rename rule requires old_name and new_name")
	}
	fields := obj.Fields()
	val, ok := fields[rule.OldName]
	if !ok || rule.OldName == rule.NewName {
		return nil
	}
	delete(fields, rule.OldName)
	fields[rule.NewName] = val
	return nil
}

func applyDelete(obj jsonval.Value, rule schema.TransformRule) error {
	if rule.Target == "" {
		return errors.New("delete rule requires target")
	}
	obj.Delete(rule.Target)
	return nil
}
