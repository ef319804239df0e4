package flagkit

import (
	"crypto/sha1"
	"encoding/hex"
	"sort"
	"strconv"
)

// EvaluationDetails captures the full result of a single flag
// evaluation: the resolved value, its variation ID, and a diagnostic
// trace suitable for logging at event 5000.
type EvaluationDetails struct {
	Key         string
	Value       interface{}
	VariationID string
	IsDefault   bool
	Error       error
	Trace       string
}

type evaluationResult struct {
	value       interface{}
	variationID string
}

// evalFlag resolves key against doc for user, falling back to
// defaultValue (and an empty variation ID) whenever the key is missing
// or a prerequisite cycle is detected. A nil user skips the targeting
// rules and yields the setting's root value. It never panics on
// malformed input.
func evalFlag(key string, user User, defaultValue interface{}, doc *Document, logger *leveledLogger) EvaluationDetails {
	setting, ok := doc.Flags[key]
	if !ok {
		if logger != nil {
			logger.Error(1001, "failed to evaluate setting '%s' (the key was not found in config json); returning the default value; available keys: %v", key, availableKeys(doc))
		}
		return EvaluationDetails{Key: key, Value: defaultValue, IsDefault: true, Error: errKeyNotFound(key)}
	}

	trace := newEvalLogBuilder()
	trace.line("Evaluating '%s' for User '%v'.", key, userDebugString(user))

	ctx := &evalContext{doc: doc, user: user, visited: map[string]bool{key: true}, trace: trace}

	if user == nil && len(setting.TargetingRules) > 0 {
		if logger != nil {
			logger.Warn(3001, "cannot evaluate targeting rules and %% options for setting '%s' (User Object is missing)", key)
		}
	}

	result, err := evaluateSetting(ctx, key, setting)
	if err != nil {
		trace.line("Evaluation error: %v", err)
		if logger != nil {
			logger.Info(5000, "%s", trace.String())
		}
		return EvaluationDetails{Key: key, Value: defaultValue, IsDefault: true, Error: err, Trace: trace.String()}
	}

	trace.line("Returning '%v'.", result.value)
	if logger != nil {
		logger.Info(5000, "%s", trace.String())
	}
	return EvaluationDetails{Key: key, Value: result.value, VariationID: result.variationID, Trace: trace.String()}
}

// evaluateSetting is the recursive core shared by the top-level
// evaluation and prerequisite-flag conditions: it walks the
// setting's targeting rules, applying percentage splits where present,
// and falls back to the setting's root value if nothing matches.
func evaluateSetting(ctx *evalContext, key string, setting *Setting) (evaluationResult, error) {
	if ctx.user == nil {
		return evaluationResult{value: setting.Value.Get(setting.Type), variationID: setting.VariationID}, nil
	}

	for _, rule := range setting.TargetingRules {
		matched, err := matchConditions(ctx, rule.Conditions, key)
		if err != nil {
			return evaluationResult{}, err
		}
		if matched {
			if rule.ServedValue != nil {
				ctx.trace.line("Rule matched. Returning '%v'.", rule.ServedValue.Value.Get(setting.Type))
				return evaluationResult{
					value:       rule.ServedValue.Value.Get(setting.Type),
					variationID: rule.ServedValue.VariationID,
				}, nil
			}
			if len(rule.PercentageOptions) > 0 {
				res, ok := evaluatePercentageOptions(ctx, key, setting, rule.PercentageOptions)
				if ok {
					return res, nil
				}
			}
			continue
		}
	}

	if len(setting.TargetingRules) == 0 && len(setting.PercentageOptions) > 0 {
		if res, ok := evaluatePercentageOptions(ctx, key, setting, setting.PercentageOptions); ok {
			return res, nil
		}
	}

	return evaluationResult{value: setting.Value.Get(setting.Type), variationID: setting.VariationID}, nil
}

func evaluatePercentageOptions(ctx *evalContext, key string, setting *Setting, options []*PercentageOption) (evaluationResult, bool) {
	bucketAttrValue := ctx.user.GetIdentifier()
	if setting.PercentageAttribute != "" {
		if v, ok := ctx.user.GetAttribute(setting.PercentageAttribute); ok {
			bucketAttrValue = v
		}
	}

	hashVal := percentageHash(key, bucketAttrValue)

	var bucket int64
	for _, opt := range options {
		bucket += opt.Percentage
		if hashVal < bucket {
			ctx.trace.line("Evaluating %% options. Returning '%v'.", opt.Value.Get(setting.Type))
			return evaluationResult{value: opt.Value.Get(setting.Type), variationID: opt.VariationID}, true
		}
	}
	return evaluationResult{}, false
}

// percentageHash computes the deterministic bucket (0-99) a
// (key, bucketAttrValue) pair falls into: SHA1(key+value), first 7 hex
// digits read as an integer, mod 100.
func percentageHash(key, bucketAttrValue string) int64 {
	sum := sha1.Sum([]byte(key + bucketAttrValue))
	hexDigest := hex.EncodeToString(sum[:])
	n, _ := strconv.ParseInt(hexDigest[:7], 16, 64)
	return n % 100
}

func availableKeys(doc *Document) []string {
	keys := make([]string, 0, len(doc.Flags))
	for k := range doc.Flags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func userDebugString(u User) string {
	if u == nil {
		return "<nil>"
	}
	return u.GetIdentifier()
}

type keyNotFoundError struct{ key string }

func (e *keyNotFoundError) Error() string { return "key not found: " + e.key }

func errKeyNotFound(key string) error { return &keyNotFoundError{key: key} }
