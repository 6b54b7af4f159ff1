package tracker

import "regexp"

// userMatcher decides whether a user id is excluded from analytics. An entry
// matches a user id it equals, or one it fully matches as a regular
// expression. Entries that do not compile only match exactly.
type userMatcher struct {
	exact    map[string]struct{}
	patterns []*regexp.Regexp
}

func newUserMatcher(entries []string) userMatcher {
	m := userMatcher{exact: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		if e == "" {
			continue
		}
		m.exact[e] = struct{}{}
		if re, err := regexp.Compile(`^(?:` + e + `)$`); err == nil {
			m.patterns = append(m.patterns, re)
		}
	}
	return m
}

func (m userMatcher) matches(userID string) bool {
	if _, ok := m.exact[userID]; ok {
		return true
	}
	for _, re := range m.patterns {
		if re.MatchString(userID) {
			return true
		}
	}
	return false
}
