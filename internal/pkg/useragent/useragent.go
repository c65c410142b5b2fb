// Package useragent classifies User-Agent strings into browser, operating
// system and device type using an embedded, ordered regex ruleset. Rules
// use PCRE because device detection needs lookahead (Android tablet vs
// phone), which Go's regexp does not support.
package useragent

import (
	"embed"
	"fmt"
	"sync"

	"go.elara.ws/pcre"
	"gopkg.in/yaml.v3"
)

//go:embed rules/browsers.yml
//go:embed rules/oss.yml
//go:embed rules/devices.yml
//go:embed rules/bots.yml
var ruleFiles embed.FS

// Unknown is reported when no rule matches.
const Unknown = "unknown"

// UserAgent is the classification result for one User-Agent string.
type UserAgent struct {
	Raw     string
	Browser string
	OS      string
	Device  string // mobile, tablet, desktop or unknown
	Bot     bool
}

// DeviceType returns the classified device type, defaulting to Unknown.
func (u UserAgent) DeviceType() string {
	if u.Device == "" {
		return Unknown
	}
	return u.Device
}

type namedRule struct {
	Regex string `yaml:"regex"`
	Name  string `yaml:"name"`
}

type deviceRule struct {
	Regex string `yaml:"regex"`
	Type  string `yaml:"type"`
}

type compiledRule struct {
	pattern *pcre.Regexp
	value   string
}

var (
	loadOnce     sync.Once
	loadErr      error
	browserRules []compiledRule
	osRules      []compiledRule
	deviceRules  []compiledRule
	botRules     []compiledRule
)

func loadRules() {
	loadOnce.Do(func() {
		browserRules, loadErr = compileNamed("rules/browsers.yml")
		if loadErr != nil {
			return
		}
		osRules, loadErr = compileNamed("rules/oss.yml")
		if loadErr != nil {
			return
		}
		deviceRules, loadErr = compileDevices("rules/devices.yml")
		if loadErr != nil {
			return
		}
		botRules, loadErr = compileNamed("rules/bots.yml")
	})
}

func compileNamed(path string) ([]compiledRule, error) {
	data, err := ruleFiles.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var rules []namedRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		pattern, err := pcre.Compile(rule.Regex)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %q in %s: %w", rule.Regex, path, err)
		}
		compiled = append(compiled, compiledRule{pattern: pattern, value: rule.Name})
	}
	return compiled, nil
}

func compileDevices(path string) ([]compiledRule, error) {
	data, err := ruleFiles.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var rules []deviceRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	compiled := make([]compiledRule, 0, len(rules))
	for _, rule := range rules {
		pattern, err := pcre.Compile(rule.Regex)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %q in %s: %w", rule.Regex, path, err)
		}
		compiled = append(compiled, compiledRule{pattern: pattern, value: rule.Type})
	}
	return compiled, nil
}

// Parse classifies a User-Agent string. Empty or unmatchable strings yield
// Unknown fields rather than errors; classification is best-effort.
func Parse(raw string) UserAgent {
	result := UserAgent{
		Raw:     raw,
		Browser: Unknown,
		OS:      Unknown,
		Device:  Unknown,
	}
	if raw == "" {
		return result
	}

	loadRules()
	if loadErr != nil {
		return result
	}

	for _, rule := range botRules {
		if rule.pattern.MatchString(raw) {
			result.Bot = true
			return result
		}
	}
	for _, rule := range browserRules {
		if rule.pattern.MatchString(raw) {
			result.Browser = rule.value
			break
		}
	}
	for _, rule := range osRules {
		if rule.pattern.MatchString(raw) {
			result.OS = rule.value
			break
		}
	}
	for _, rule := range deviceRules {
		if rule.pattern.MatchString(raw) {
			result.Device = rule.value
			break
		}
	}
	return result
}
