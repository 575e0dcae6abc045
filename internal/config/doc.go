// Package config loads the scheduler service settings from environment
// variables.
//
// Every value has a development default. Redis is only contacted when
// CACHE_BACKEND or EVENTS_BACKEND selects it. Tests build a Config from an
// explicit map instead of the process environment:
//
//	cfg, err := config.LoadFrom(map[string]string{"CACHE_BACKEND": "none"})
//	if err != nil {
//	    return err
//	}
//	addr := cfg.GetHTTPAddr()
package config
