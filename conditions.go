package flagkit

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/blang/semver/v4"
)

// evalContext threads the pieces condition matching needs through a
// single evaluation, including the visited-key set used to detect
// prerequisite cycles.
type evalContext struct {
	doc     *Document
	user    User
	visited map[string]bool
	trace   *evalLogBuilder
}

// matchConditions evaluates every condition in a targeting rule with
// AND semantics: the rule matches only if every condition matches.
// contextSalt is the flag key at the top level, or the segment name
// when evaluating a segment's own conditions.
func matchConditions(ctx *evalContext, conditions []*Condition, contextSalt string) (bool, error) {
	for _, cond := range conditions {
		matched, err := matchCondition(ctx, cond, contextSalt)
		if err != nil {
			return false, err
		}
		if !matched {
			return false, nil
		}
	}
	return true, nil
}

func matchCondition(ctx *evalContext, cond *Condition, contextSalt string) (bool, error) {
	switch {
	case cond.UserCondition != nil:
		return matchUserCondition(ctx, cond.UserCondition, contextSalt)
	case cond.SegmentCondition != nil:
		return matchSegmentCondition(ctx, cond.SegmentCondition)
	case cond.PrerequisiteFlagCondition != nil:
		return matchPrerequisiteCondition(ctx, cond.PrerequisiteFlagCondition)
	default:
		return false, nil
	}
}

func matchSegmentCondition(ctx *evalContext, cond *SegmentCondition) (bool, error) {
	if cond.SegmentIndex < 0 || cond.SegmentIndex >= len(ctx.doc.Segments) {
		return false, nil
	}
	segment := ctx.doc.Segments[cond.SegmentIndex]
	ctx.trace.line("Evaluating segment '%s':", segment.Name)
	ctx.trace.push()
	// A segment's own conditions are ANDed together using the segment's
	// name as the sensitive-comparator context salt.
	allMatch := true
	for _, uc := range segment.Conditions {
		m, err := matchUserCondition(ctx, uc, segment.Name)
		if err != nil {
			ctx.trace.pop()
			return false, err
		}
		if !m {
			allMatch = false
			break
		}
	}
	ctx.trace.line("Segment evaluation result: User %s.", segmentResultText(allMatch))
	ctx.trace.pop()
	switch cond.Comparator {
	case SegmentIsIn:
		return allMatch, nil
	case SegmentIsNotIn:
		return !allMatch, nil
	default:
		return false, nil
	}
}

func matchPrerequisiteCondition(ctx *evalContext, cond *PrerequisiteFlagCondition) (bool, error) {
	if ctx.visited[cond.FlagKey] {
		chain := make([]string, 0, len(ctx.visited)+1)
		for k := range ctx.visited {
			chain = append(chain, k)
		}
		return false, &cycleError{chain: append(chain, cond.FlagKey)}
	}
	dependency, ok := ctx.doc.Flags[cond.FlagKey]
	if !ok {
		return false, nil
	}

	ctx.visited[cond.FlagKey] = true
	defer delete(ctx.visited, cond.FlagKey)

	ctx.trace.line("Evaluating prerequisite flag '%s':", cond.FlagKey)
	ctx.trace.push()
	result, err := evaluateSetting(ctx, cond.FlagKey, dependency)
	ctx.trace.pop()
	if err != nil {
		return false, err
	}
	ctx.trace.line("Prerequisite flag '%s' evaluated to '%v'.", cond.FlagKey, result.value)

	expected := cond.Value.Get(dependency.Type)
	equal := valuesEqual(result.value, expected)
	switch cond.Comparator {
	case PrerequisiteEquals:
		return equal, nil
	case PrerequisiteNotEquals:
		return !equal, nil
	default:
		return false, nil
	}
}

func valuesEqual(a, b interface{}) bool {
	return a == b
}

func segmentResultText(in bool) string {
	if in {
		return "IS IN SEGMENT"
	}
	return "IS NOT IN SEGMENT"
}

func matchUserCondition(ctx *evalContext, cond *UserCondition, contextSalt string) (bool, error) {
	if ctx.user == nil {
		return false, nil
	}
	userValue, ok := ctx.user.GetAttribute(cond.ComparisonAttribute)
	if !ok || userValue == "" {
		return false, nil
	}

	switch cond.Comparator {
	case OpOneOf, OpNotOneOf:
		found := containsTrimmed(cond.StringListValue, userValue)
		return found == (cond.Comparator == OpOneOf), nil

	case OpContains:
		return strings.Contains(userValue, derefStr(cond.StringValue)), nil
	case OpNotContains:
		return !strings.Contains(userValue, derefStr(cond.StringValue)), nil

	case OpSemverOneOf, OpSemverNotOneOf:
		userVer, err := semver.Parse(strings.TrimSpace(userValue))
		if err != nil {
			return false, nil
		}
		matched := false
		for _, item := range cond.StringListValue {
			item = strings.TrimSpace(item)
			if item == "" {
				continue
			}
			cmpVer, err := semver.Parse(item)
			if err != nil {
				return false, nil
			}
			if userVer.EQ(cmpVer) {
				matched = true
			}
		}
		return matched == (cond.Comparator == OpSemverOneOf), nil

	case OpSemverLess, OpSemverLessEq, OpSemverGreater, OpSemverGreaterEq:
		userVer, err := semver.Parse(strings.TrimSpace(userValue))
		if err != nil {
			return false, nil
		}
		cmpVer, err := semver.Parse(strings.TrimSpace(derefStr(cond.StringValue)))
		if err != nil {
			return false, nil
		}
		switch cond.Comparator {
		case OpSemverLess:
			return userVer.LT(cmpVer), nil
		case OpSemverLessEq:
			return userVer.LTE(cmpVer), nil
		case OpSemverGreater:
			return userVer.GT(cmpVer), nil
		default:
			return userVer.GTE(cmpVer), nil
		}

	case OpNumberEq, OpNumberNotEq, OpNumberLess, OpNumberLessEq, OpNumberGreater, OpNumberGreaterEq:
		userNum, err := strconv.ParseFloat(strings.ReplaceAll(userValue, ",", "."), 64)
		if err != nil {
			return false, nil
		}
		cmpNum := 0.0
		if cond.DoubleValue != nil {
			cmpNum = *cond.DoubleValue
		}
		switch cond.Comparator {
		case OpNumberEq:
			return userNum == cmpNum, nil
		case OpNumberNotEq:
			return userNum != cmpNum, nil
		case OpNumberLess:
			return userNum < cmpNum, nil
		case OpNumberLessEq:
			return userNum <= cmpNum, nil
		case OpNumberGreater:
			return userNum > cmpNum, nil
		default:
			return userNum >= cmpNum, nil
		}

	case OpSensitiveOneOf, OpSensitiveNotOneOf:
		hashed := hashWithSalt(userValue, ctx.doc.salt(), contextSalt)
		found := containsTrimmed(cond.StringListValue, hashed)
		return found == (cond.Comparator == OpSensitiveOneOf), nil

	case OpSensitiveStartsWith:
		return matchSensitivePrefixSuffix(userValue, derefStr(cond.StringValue), ctx.doc.salt(), contextSalt, true), nil
	case OpSensitiveEndsWith:
		return matchSensitivePrefixSuffix(userValue, derefStr(cond.StringValue), ctx.doc.salt(), contextSalt, false), nil

	case OpReservedDateBefore, OpReservedDateAfter, OpReservedSensitiveEq, OpReservedSensitiveNotEq:
		// Reserved slots with no implemented comparison: treated as a
		// validation error, i.e. the condition never matches.
		return false, nil

	default:
		return false, nil
	}
}

func containsTrimmed(list []string, value string) bool {
	for _, item := range list {
		if strings.TrimSpace(item) == value {
			return true
		}
	}
	return false
}

func derefStr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// hashWithSalt computes SHA256(value || configSalt || contextSalt) hex
// encoded, the scheme every sensitive comparator uses.
func hashWithSalt(value, configSalt, contextSalt string) string {
	h := sha256.New()
	h.Write([]byte(value))
	h.Write([]byte(configSalt))
	h.Write([]byte(contextSalt))
	return hex.EncodeToString(h.Sum(nil))
}

// matchSensitivePrefixSuffix parses a comparisonValue shaped
// "<byteLength>_<sha256hex>" and hashes the corresponding chunk
// (prefix if fromStart, suffix otherwise) of userValue.
func matchSensitivePrefixSuffix(userValue, comparisonValue, configSalt, contextSalt string, fromStart bool) bool {
	idx := strings.IndexByte(comparisonValue, '_')
	if idx < 0 {
		return false
	}
	length, err := strconv.Atoi(comparisonValue[:idx])
	if err != nil || length < 0 || len(userValue) < length {
		return false
	}
	expectedHash := comparisonValue[idx+1:]
	var chunk string
	if fromStart {
		chunk = userValue[:length]
	} else {
		chunk = userValue[len(userValue)-length:]
	}
	return hashWithSalt(chunk, configSalt, contextSalt) == expectedHash
}
