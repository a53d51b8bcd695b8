package config

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode"
)

// asInt parses a strict base-10 integer: no trailing garbage, no unit suffix.
func asInt(s string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid integer %q", s)
	}
	return v, nil
}

// asBool accepts true/on/yes/1 and false/off/no/0, case-insensitively.
func asBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "on", "yes", "1":
		return true, nil
	case "false", "off", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// asSeconds parses an age string: a number with an optional unit suffix
// (s/m/h/d/w), defaulting to seconds. An empty string yields def. Negative
// results are rejected. On any parse error the default is returned together
// with the error so callers can keep the previous value.
func asSeconds(s string, def int) (int, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}

	multiplier := 1
	multiplierSet := false
	var digits strings.Builder

	for _, r := range s {
		switch {
		case unicode.IsDigit(r) || r == '-':
			digits.WriteRune(r)
		case unicode.IsLetter(r) && multiplierSet:
			return def, fmt.Errorf("invalid duration %q: trailing %q", s, r)
		case unicode.IsLetter(r):
			switch unicode.ToLower(r) {
			case 's':
				multiplier = 1
			case 'm':
				multiplier = 60
			case 'h':
				multiplier = 3600
			case 'd':
				multiplier = 24 * 3600
			case 'w':
				multiplier = 7 * 24 * 3600
			default:
				return def, fmt.Errorf("invalid duration unit %q in %q", r, s)
			}
			multiplierSet = true
		default:
			return def, fmt.Errorf("invalid duration %q", s)
		}
	}

	v, err := strconv.Atoi(digits.String())
	if err != nil || v < 0 {
		return def, fmt.Errorf("invalid duration %q", s)
	}
	return v * multiplier, nil
}

// asBytes parses a size string: a number with an optional unit suffix
// (b/k/m/g), defaulting to bytes. A redundant trailing 'b' after a
// multiplier ("2MB") is accepted; "BB" is not. Negative results are
// rejected. On error the default is returned together with the error.
func asBytes(s string, def int64) (int64, error) {
	if strings.TrimSpace(s) == "" {
		return def, nil
	}

	var multiplier int64 = 1
	multiplierSet := false
	var digits strings.Builder

	for _, r := range s {
		switch {
		case unicode.IsDigit(r) || r == '-':
			digits.WriteRune(r)
		case unicode.IsLetter(r) && multiplierSet:
			if multiplier == 1 || (r != 'b' && r != 'B') {
				return def, fmt.Errorf("invalid size %q: trailing %q", s, r)
			}
		case unicode.IsLetter(r):
			switch unicode.ToLower(r) {
			case 'b':
				multiplier = 1
			case 'k':
				multiplier = 1024
			case 'm':
				multiplier = 1024 * 1024
			case 'g':
				multiplier = 1024 * 1024 * 1024
			default:
				return def, fmt.Errorf("invalid size unit %q in %q", r, s)
			}
			multiplierSet = true
		default:
			return def, fmt.Errorf("invalid size %q", s)
		}
	}

	v, err := strconv.ParseInt(digits.String(), 10, 64)
	if err != nil || v < 0 {
		return def, fmt.Errorf("invalid size %q", s)
	}
	return v * multiplier, nil
}

// asLogType normalizes a log_type value. Unknown values fall back to console.
func asLogType(s string) string {
	switch strings.ToLower(s) {
	case "console", "file", "syslog":
		return strings.ToLower(s)
	}
	return "console"
}

// asLogLevel normalizes a log_level value. "debug" through "debug5" map to
// the numbered debug levels; unknown values fall back to info.
func asLogLevel(s string) string {
	l := strings.ToLower(s)
	if strings.HasPrefix(l, "debug") {
		n := 1
		if rest := l[len("debug"):]; rest != "" {
			if v, err := asInt(rest); err == nil {
				n = v
			}
		}
		if n < 1 {
			n = 1
		}
		if n > 5 {
			n = 5
		}
		return fmt.Sprintf("debug%d", n)
	}
	switch l {
	case "info", "warn", "error", "fatal":
		return l
	}
	return "info"
}

// asLogMode normalizes a log_mode value ("a"/"append", "c"/"create").
func asLogMode(s string) string {
	switch strings.ToLower(s) {
	case "c", "create":
		return "create"
	}
	return "append"
}

// asHugepage maps off/try/on to the hugepage policy. Unknown is off.
func asHugepage(s string) int {
	switch strings.ToLower(s) {
	case "try":
		return HugepageTry
	case "on":
		return HugepageOn
	}
	return HugepageOff
}

// asProcTitle maps an update_process_title value to a policy, falling back
// to def when the value is empty or not recognized.
func asProcTitle(s string, def int) int {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never", "off":
		return UpdateProcessTitleNever
	case "strict":
		return UpdateProcessTitleStrict
	case "minimal":
		return UpdateProcessTitleMinimal
	case "verbose", "full":
		return UpdateProcessTitleVerbose
	}
	return def
}

// hugepageString renders a hugepage policy the way the config file spells it.
func hugepageString(p int) string {
	switch p {
	case HugepageTry:
		return "try"
	case HugepageOn:
		return "on"
	}
	return "off"
}

// procTitleString renders an update_process_title policy.
func procTitleString(p int) string {
	switch p {
	case UpdateProcessTitleNever:
		return "never"
	case UpdateProcessTitleStrict:
		return "strict"
	case UpdateProcessTitleMinimal:
		return "minimal"
	}
	return "verbose"
}

// parseEndpoints splits a comma-separated bridge endpoint list into
// deduplicated (host, port) pairs. Each token may carry an http/https
// scheme, a /metrics suffix, or a trailing slash; all are stripped. A
// duplicate pair is skipped with a warning, or silently in reload-merge
// mode. A malformed token or exceeding the endpoint capacity fails the
// whole list.
func parseEndpoints(value string, merge bool) ([]Endpoint, error) {
	var out []Endpoint

	for _, token := range strings.Split(value, ",") {
		t := strings.TrimSpace(token)
		if t == "" {
			continue
		}
		t = strings.TrimPrefix(t, "https://")
		t = strings.TrimPrefix(t, "http://")
		t = strings.TrimSuffix(t, "/metrics")
		t = strings.TrimSuffix(t, "/")

		host, portStr, ok := strings.Cut(t, ":")
		if !ok || host == "" {
			return nil, fmt.Errorf("invalid bridge endpoint %q", token)
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return nil, fmt.Errorf("invalid bridge endpoint port %q", token)
		}

		dup := false
		for _, e := range out {
			if e.Host == host && e.Port == int(port) {
				dup = true
				break
			}
		}
		if dup {
			if !merge {
				slog.Warn("duplicated bridge endpoint", "host", host, "port", port)
			}
			continue
		}

		if len(out) >= MaxEndpoints {
			return nil, fmt.Errorf("bridge endpoints: %w (max %d)", ErrCapacity, MaxEndpoints)
		}
		out = append(out, Endpoint{Host: host, Port: int(port)})
	}

	return out, nil
}

// endpointsString renders an endpoint list as the comma-joined host:port
// form used by conf_get and the reload diff.
func endpointsString(eps []Endpoint) string {
	var b strings.Builder
	for i, e := range eps {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(e.Host)
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(e.Port))
	}
	return b.String()
}
