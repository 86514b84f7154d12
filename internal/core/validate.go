package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
)

var (
	pluginIDPattern = regexp.MustCompile(`^[a-z][a-z0-9_]+$`)
	slugPattern     = regexp.MustCompile(`^[a-z0-9][a-z0-9-]*$`)
)

// Validate checks the plugin set before anything is served and reports every
// problem at once.
func Validate(plugins []Plugin) error {
	var errs []error
	seen := make(map[string]bool, len(plugins))
	for _, plugin := range plugins {
		manifest := plugin.Manifest()
		id := manifest.PluginID
		switch {
		case id == "":
			errs = append(errs, errors.New("plugin id is empty"))
			continue
		case !pluginIDPattern.MatchString(id):
			errs = append(errs, fmt.Errorf("plugin id %q does not match %s", id, pluginIDPattern))
		case seen[id]:
			errs = append(errs, fmt.Errorf("duplicate plugin id %q", id))
		}
		seen[id] = true

		if len(manifest.Platforms) == 0 {
			errs = append(errs, fmt.Errorf("%s: no entity platforms declared", id))
		}
		errs = append(errs, validateDashboards(id, plugin.Dashboards())...)
	}
	return errors.Join(errs...)
}

func validateDashboards(pluginID string, dashboards []Dashboard) []error {
	var errs []error
	slugs := make(map[string]bool, len(dashboards))
	for _, d := range dashboards {
		if !slugPattern.MatchString(d.Slug) {
			errs = append(errs, fmt.Errorf("%s: dashboard slug %q does not match %s", pluginID, d.Slug, slugPattern))
		}
		if slugs[d.Slug] {
			errs = append(errs, fmt.Errorf("%s: duplicate dashboard %q", pluginID, d.Slug))
		}
		slugs[d.Slug] = true
		if !json.Valid(d.JSON) {
			errs = append(errs, fmt.Errorf("%s: dashboard %q is not valid JSON", pluginID, d.Slug))
		}
	}
	return errs
}
