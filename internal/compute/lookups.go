package compute

import (
	"context"
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/jmespath/go-jmespath"
	log "github.com/sirupsen/logrus"

	"stakedeck/internal/types"
)

// Thin lookups over Execute. Each one parses a specific field out of the
// structured result and degrades to a documented default instead of
// propagating errors — except Balance, which must distinguish "unknown" from
// zero, and InMaintenance, which fails closed.

// Balance returns the token balance for address, or nil when it could not be
// determined. Callers must not treat nil as zero.
func (c *Coordinator) Balance(ctx context.Context, target, address string) *float64 {
	res, err := c.Execute(ctx, Request{
		Target: target,
		Tags: []types.Tag{
			{Name: "Action", Value: "Balance"},
			{Name: "Recipient", Value: address},
		},
		UserKey: address,
	})
	if err != nil {
		log.WithError(err).WithField("address", address).Warn("balance lookup failed")
		return nil
	}
	raw, ok := res.Tag("Balance")
	if !ok {
		log.WithField("address", address).Warn("balance tag absent in result")
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.WithError(err).WithField("address", address).Warn("balance tag unparsable")
		return nil
	}
	return &v
}

// Denomination returns the token's denomination, cached for a day, falling
// back to the provided default when the lookup fails or the tag is absent.
func (c *Coordinator) Denomination(ctx context.Context, target string, fallback int) int {
	res, err := c.Execute(ctx, Request{
		Target:   target,
		Tags:     []types.Tag{{Name: "Action", Value: "Info"}},
		CacheTTL: CacheDay,
	})
	if err != nil {
		log.WithError(err).WithField("target", target).Warn("denomination lookup failed, using fallback")
		return fallback
	}
	raw, ok := res.Tag("Denomination")
	if !ok {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		log.WithField("target", target).Warn("denomination tag unparsable, using fallback")
		return fallback
	}
	return v
}

// InMaintenance reports whether the process flags itself as under
// maintenance. Any error — call failure, absent field, unparsable value —
// yields true so the UI fails closed rather than open.
func (c *Coordinator) InMaintenance(ctx context.Context, target string) bool {
	res, err := c.Execute(ctx, Request{
		Target:   target,
		Tags:     []types.Tag{{Name: "Action", Value: "Info"}},
		CacheTTL: CacheMinute,
	})
	if err != nil {
		log.WithError(err).WithField("target", target).Warn("maintenance lookup failed, assuming maintenance")
		return true
	}
	v, err := evalBool("maintenance", res.FirstData())
	if err != nil {
		log.WithError(err).WithField("target", target).Warn("maintenance flag unreadable, assuming maintenance")
		return true
	}
	return v
}

// evalBool decodes a JSON payload and coerces the JMESPath selection to bool.
func evalBool(expression, data string) (bool, error) {
	v, err := evalAny(expression, data)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("field %q is %T, not bool", expression, v)
	}
	return b, nil
}

// evalAny returns the raw value the JMESPath expression selects from the
// JSON-encoded data payload.
func evalAny(expression, data string) (any, error) {
	if data == "" {
		return nil, fmt.Errorf("empty payload")
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(data), &payload); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	v, err := jmespath.Search(expression, payload)
	if err != nil {
		return nil, fmt.Errorf("jmespath: %w", err)
	}
	return v, nil
}
