// SPDX-License-Identifier: AGPL-3.0-or-later

package plan

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// ErrSchema is returned when deserializing a plan JSON document that fails
// schema validation.
var ErrSchema = errors.New("plan: schema validation error")

var dateRE = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

var allowedTopLevelKeys = map[string]struct{}{
	"plan_id": {}, "base": {}, "target": {}, "created_at": {}, "summary": {}, "steps": {},
}

// Serialize encodes a Plan as canonical JSON: keys sorted at every nesting
// level. encoding/json already sorts map[string]any keys when marshaling,
// so round-tripping the struct through a generic interface{} before the
// final marshal is sufficient to get a canonical form without hand-rolling
// a key-sorting encoder.
func Serialize(p *Plan) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("plan: marshaling struct form: %w", err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, fmt.Errorf("plan: round-tripping through generic form: %w", err)
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("plan: marshaling canonical form: %w", err)
	}
	return canonical, nil
}

// Deserialize validates and decodes a plan JSON document.
//
// serialize(deserialize(s)) == s is a tested invariant: feeding Serialize's
// own output back through Deserialize and Serialize again must reproduce
// the same bytes, since both stages funnel through the same generic,
// key-sorted encoding.
func Deserialize(data []byte) (*Plan, error) {
	var generic map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrSchema, err)
	}

	for key := range generic {
		if _, ok := allowedTopLevelKeys[key]; !ok {
			return nil, fmt.Errorf("%w: unknown top-level key %q", ErrSchema, key)
		}
	}
	required := []string{"plan_id", "base", "target", "created_at", "summary", "steps"}
	var missing []string
	for _, key := range required {
		if _, ok := generic[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, fmt.Errorf("%w: missing required fields: %s", ErrSchema, strings.Join(missing, ", "))
	}

	var p Plan
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchema, err)
	}

	for _, step := range p.Steps {
		if step.InputRange != nil {
			if !dateRE.MatchString(step.InputRange.Start) || !dateRE.MatchString(step.InputRange.End) {
				return nil, fmt.Errorf("%w: step %q has malformed input_range date", ErrSchema, step.StepID)
			}
		}
	}

	return &p, nil
}

// ComputeStepID derives a step's deterministic id from its identity
// inputs: same inputs always produce the same id, across processes and
// runs.
func ComputeStepID(modelName, baseSHA, targetSHA string, runType RunType, inputRange *DateRange) string {
	serializedRange := ""
	if inputRange != nil {
		serializedRange = inputRange.Start + ".." + inputRange.End
	}
	h := sha256.Sum256([]byte(modelName + "|" + baseSHA + "|" + targetSHA + "|" + string(runType) + "|" + serializedRange))
	return hex.EncodeToString(h[:])
}

// ComputePlanID derives a plan's deterministic id from its base/target
// snapshot identifiers and its sorted step ids.
func ComputePlanID(base, target string, stepIDs []string) string {
	sorted := append([]string(nil), stepIDs...)
	sort.Strings(sorted)
	h := sha256.Sum256([]byte(base + "|" + target + "|" + strings.Join(sorted, ",")))
	return hex.EncodeToString(h[:])
}
