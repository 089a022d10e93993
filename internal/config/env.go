package config

import (
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// firstEnv returns the first non-empty value among keys.
func firstEnv(lookup LookupFunc, keys ...string) (string, bool) {
	for _, key := range keys {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), true
		}
	}
	return "", false
}

// splitList splits a comma separated value, dropping blanks.
func splitList(v string) []string {
	return lo.Compact(lo.Map(strings.Split(v, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	}))
}

// ApplyEnv overrides cfg with environment variables. Malformed values are
// collected into a ValidationError; well-formed ones are still applied.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	errs := &ValidationError{}

	if port, ok := firstEnv(lookup, "PORT"); ok {
		if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
			errs.Addf("PORT must be a port number (got %q)", port)
		} else {
			cfg.Server.Listen = net.JoinHostPort("0.0.0.0", port)
		}
	}

	up := &cfg.Upstream
	if v, ok := firstEnv(lookup, "WRF_BASE_URL"); ok {
		up.BaseURL = v
	}
	if v, ok := firstEnv(lookup, "WRF_LOGIN", "MY_SITE_LOGIN"); ok {
		up.Login = v
	}
	if v, ok := firstEnv(lookup, "WRF_PASSWORD", "MY_SITE_PASSWORD"); ok {
		up.Password = v
	}
	if v, ok := firstEnv(lookup, "WRF_TENANT"); ok {
		up.Tenant = v
	}
	if v, ok := firstEnv(lookup, "WRF_LOCALE"); ok {
		up.Locale = v
	}
	if v, ok := firstEnv(lookup, "WRF_RESTAURANT_ID"); ok {
		if n, err := strconv.Atoi(v); err != nil {
			errs.Addf("WRF_RESTAURANT_ID must be an integer (got %q)", v)
		} else {
			up.RestaurantID = n
		}
	}
	if v, ok := firstEnv(lookup, "POINT_ID"); ok {
		up.PointID = v
	}
	if v, ok := firstEnv(lookup, "WRF_PLACES"); ok {
		places, err := parseInts(splitList(v))
		if err != nil {
			errs.Addf("WRF_PLACES must be comma separated integers (got %q)", v)
		} else {
			up.Places = places
		}
	}
	if v, ok := firstEnv(lookup, "WRF_STATUSES"); ok {
		up.Statuses = splitList(v)
	}

	st := &cfg.Stats
	if d, ok := envDuration(lookup, "STATS_TTL", errs); ok {
		st.TTLMS = int(d.Milliseconds())
	}
	if d, ok := envDuration(lookup, "STATS_RETRY_DELAY", errs); ok {
		st.RetryDelayMS = int(d.Milliseconds())
	}
	if v, ok := firstEnv(lookup, "STATS_MAX_ATTEMPTS"); ok {
		if n, err := strconv.Atoi(v); err != nil || n < 1 {
			errs.Addf("STATS_MAX_ATTEMPTS must be a positive integer (got %q)", v)
		} else {
			st.MaxAttempts = n
		}
	}

	return errs.ToError()
}

func envDuration(lookup LookupFunc, key string, errs *ValidationError) (time.Duration, bool) {
	v, ok := firstEnv(lookup, key)
	if !ok {
		return 0, false
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		errs.Addf("%s must be a positive duration such as 60s (got %q)", key, v)
		return 0, false
	}
	return d, true
}

func parseInts(values []string) ([]int, error) {
	out := make([]int, 0, len(values))
	for _, v := range values {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
