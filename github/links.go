package github

import (
	"net/url"
	"strconv"
	"strings"
)

// parseLinkHeader maps each rel of a Link header to its URL, e.g.
//
//	<https://api.github.com/user/1/repos?page=2>; rel="next", <...?page=5>; rel="last"
func parseLinkHeader(header string) map[string]string {
	links := make(map[string]string)
	if header == "" {
		return links
	}

	for _, part := range strings.Split(header, ",") {
		sections := strings.Split(part, ";")
		if len(sections) < 2 {
			continue
		}
		target := strings.TrimSpace(sections[0])
		target = strings.TrimSuffix(strings.TrimPrefix(target, "<"), ">")

		for _, param := range sections[1:] {
			key, val, ok := strings.Cut(strings.TrimSpace(param), "=")
			if !ok || strings.TrimSpace(key) != "rel" {
				continue
			}
			for _, rel := range strings.Fields(strings.Trim(strings.TrimSpace(val), `"`)) {
				links[rel] = target
			}
		}
	}
	return links
}

// pageOf returns the page query parameter of the link with the given rel.
func pageOf(header, rel string) (int, bool) {
	target, ok := parseLinkHeader(header)[rel]
	if !ok {
		return 0, false
	}
	u, err := url.Parse(target)
	if err != nil {
		return 0, false
	}
	page, err := strconv.Atoi(u.Query().Get("page"))
	if err != nil {
		return 0, false
	}
	return page, true
}
