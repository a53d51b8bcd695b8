package management

import (
	"fmt"

	"github.com/pgexporter/pgexporter/internal/config"
)

// Service implements the configuration operations on top of the shared
// state. It owns no transport; the HTTP handler and the admin tool both
// call it and render the resulting envelopes.
type Service struct {
	state *config.State
}

// NewService binds a Service to the live configuration state.
func NewService(state *config.State) *Service {
	return &Service{state: state}
}

// ConfGet renders one key, or the full configuration tree when key is
// empty.
func (s *Service) ConfGet(key string) *Result {
	r := NewResult("conf get")

	if key == "" {
		return r.Success(s.configTree())
	}

	value, err := s.state.Get(key)
	if err != nil {
		return r.Fail(err)
	}
	return r.Success(map[string]any{key: value})
}

// ConfSet applies a single-key mutation. A mutation that needs a restart
// is still a successful envelope: the response reports the requested value
// next to the one still in effect.
func (s *Service) ConfSet(key, value string) *Result {
	r := NewResult("conf set")

	res, err := s.state.Set(key, value)
	if err != nil {
		return r.Fail(err)
	}

	if res.RestartRequired {
		return r.Success(map[string]any{
			"key":              res.Key,
			"current":          res.Old,
			"requested":        res.New,
			"restart_required": true,
			"message":          fmt.Sprintf("%s requires a restart to take effect", res.Key),
		})
	}
	return r.Success(map[string]any{
		"key": res.Key,
		"old": res.Old,
		"new": res.New,
	})
}

// Reload re-reads the configuration files and adopts the result.
func (s *Service) Reload() *Result {
	r := NewResult("conf reload")

	restart, err := s.state.Reload()
	if err != nil {
		return r.Fail(err)
	}
	return r.Success(map[string]any{"restart_required": restart})
}

// configTree renders every known key of the live configuration: the
// global scalars at the top level and a server subtree keyed by server
// name.
func (s *Service) configTree() map[string]any {
	out := make(map[string]any)

	for _, key := range config.MainKeys {
		value, err := s.state.Get(key)
		if err != nil {
			continue
		}
		out[key] = value
	}

	live := s.state.Live()
	servers := make(map[string]any, len(live.Servers))
	for i := range live.Servers {
		name := live.Servers[i].Name
		sub := make(map[string]any, len(config.ServerKeys))
		for _, key := range config.ServerKeys {
			value, err := s.state.Get(fmt.Sprintf("server.%s.%s", name, key))
			if err != nil {
				continue
			}
			sub[key] = value
		}
		servers[name] = sub
	}
	out["server"] = servers
	return out
}
