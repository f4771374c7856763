package crawler

import (
	"strconv"
	"strings"
	"time"
)

// agentGroup collects the directives that apply to one user-agent
// token. Allow and disallow prefixes keep their file order.
type agentGroup struct {
	agent      string // lowercased; "*" is the wildcard
	allows     []string
	disallows  []string
	crawlDelay *time.Duration
}

// RobotsPolicy is a parsed robots file.
type RobotsPolicy struct {
	groups []agentGroup
}

// ParseRobots parses robots text line by line. Blank lines and `#`
// comments are skipped; directives seen before any User-agent line
// accumulate on the wildcard group.
func ParseRobots(text string) *RobotsPolicy {
	p := &RobotsPolicy{}
	byAgent := map[string]int{}

	current := func(agent string) *agentGroup {
		if i, ok := byAgent[agent]; ok {
			return &p.groups[i]
		}
		p.groups = append(p.groups, agentGroup{agent: agent})
		byAgent[agent] = len(p.groups) - 1
		return &p.groups[len(p.groups)-1]
	}

	active := "*"
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)

		switch key {
		case "user-agent":
			active = strings.ToLower(value)
			current(active)
		case "allow":
			g := current(active)
			g.allows = append(g.allows, value)
		case "disallow":
			g := current(active)
			g.disallows = append(g.disallows, value)
		case "crawl-delay":
			secs, err := strconv.ParseFloat(value, 64)
			if err != nil || secs < 0 {
				continue
			}
			d := time.Duration(secs * float64(time.Second))
			current(active).crawlDelay = &d
		}
	}
	return p
}

// groupFor selects the group whose agent token is the longest
// substring of agent; the wildcard group is the fallback.
func (p *RobotsPolicy) groupFor(agent string) *agentGroup {
	agent = strings.ToLower(agent)
	var best *agentGroup
	bestLen := -1
	for i := range p.groups {
		g := &p.groups[i]
		if g.agent == "*" {
			continue
		}
		if strings.Contains(agent, g.agent) && len(g.agent) > bestLen {
			best = g
			bestLen = len(g.agent)
		}
	}
	if best != nil {
		return best
	}
	for i := range p.groups {
		if p.groups[i].agent == "*" {
			return &p.groups[i]
		}
	}
	return nil
}

// IsAllowed decides whether agent may fetch path. Among the matching
// allow and disallow prefixes the longest wins; on equal length allow
// wins; no match at all means allow.
func (p *RobotsPolicy) IsAllowed(agent, path string) bool {
	g := p.groupFor(agent)
	if g == nil {
		return true
	}
	bestAllow := longestPrefixMatch(g.allows, path)
	bestDisallow := longestPrefixMatch(g.disallows, path)
	if bestDisallow < 0 {
		return true
	}
	return bestAllow >= bestDisallow
}

// CrawlDelay returns the crawl delay for agent, or nil when the
// selected group has none.
func (p *RobotsPolicy) CrawlDelay(agent string) *time.Duration {
	g := p.groupFor(agent)
	if g == nil {
		return nil
	}
	return g.crawlDelay
}

// longestPrefixMatch returns the length of the longest prefix in
// prefixes that matches path, or -1. Empty prefixes never match.
func longestPrefixMatch(prefixes []string, path string) int {
	best := -1
	for _, prefix := range prefixes {
		if prefix == "" {
			continue
		}
		if strings.HasPrefix(path, prefix) && len(prefix) > best {
			best = len(prefix)
		}
	}
	return best
}
