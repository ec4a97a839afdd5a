package config

import (
	"fmt"

	"github.com/barnum167/nanodc-monitor"
)

// BuildOptions converts parsed configuration into SDK options for
// [nanodc.New].
//
// Site tables from the config are overlaid onto the built-in
// [nanodc.DefaultRuleSet], so a config file can add a new site or override a
// built-in one without restating the others.
func BuildOptions(cfg *Config) ([]nanodc.Option, error) {
	opts := []nanodc.Option{
		nanodc.WithSite(cfg.Site),
		nanodc.WithPort(cfg.Port),
		nanodc.WithRefreshInterval(cfg.RefreshInterval.Duration()),
		nanodc.WithAPIBaseURL(cfg.API.BaseURL),
		nanodc.WithRequestTimeout(cfg.API.Timeout.Duration()),
	}

	if len(cfg.API.Headers) > 0 {
		opts = append(opts, nanodc.WithAPIHeaders(cfg.API.Headers))
	}

	if len(cfg.Layout) > 0 {
		layout, err := buildLayout(cfg.Layout)
		if err != nil {
			return nil, err
		}
		opts = append(opts, nanodc.WithLayout(layout))
	}

	if len(cfg.Sites) > 0 {
		rules := nanodc.DefaultRuleSet().Merge(buildRuleSet(cfg.Sites))
		opts = append(opts, nanodc.WithRules(rules))
	}

	return opts, nil
}

// buildLayout expands the declared slot ranges into the SDK layout.
func buildLayout(layout []LayoutConfig) ([]nanodc.SlotDescriptor, error) {
	ranges := make([]nanodc.SlotRange, len(layout))
	for i, lc := range layout {
		ranges[i] = nanodc.SlotRange{
			ImageType: nanodc.ImageType(lc.ImageType),
			Count:     lc.Slots,
		}
	}

	built, err := nanodc.BuildLayout(ranges...)
	if err != nil {
		return nil, fmt.Errorf("invalid layout: %w", err)
	}
	return built, nil
}

// buildRuleSet converts config site tables to the SDK rule set.
func buildRuleSet(sites map[string]SiteConfig) nanodc.RuleSet {
	rules := make(nanodc.RuleSet, len(sites))
	for site, tables := range sites {
		table := make(nanodc.SiteTable, len(tables))
		for img, slots := range tables {
			slotRules := make(map[int]nanodc.Rule, len(slots))
			for idx, rc := range slots {
				slotRules[idx] = buildRule(rc)
			}
			table[nanodc.ImageType(img)] = slotRules
		}
		rules[site] = table
	}
	return rules
}

// buildRule converts one RuleConfig to an SDK rule.
func buildRule(rc RuleConfig) nanodc.Rule {
	rule := nanodc.Rule{
		Keywords:    rc.Keywords,
		DisplayName: rc.DisplayName,
	}
	if rc.Match == "any" {
		rule.Mode = nanodc.MatchAny
	} else {
		rule.Mode = nanodc.MatchAll
	}
	return rule
}
