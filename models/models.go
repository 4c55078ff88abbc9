// Package models defines the core data structures used throughout the application.
package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// UnavailableMarker is how an unavailable value is rendered in exports.
const UnavailableMarker = "N/A"

// Owner is the account that owns a repository.
type Owner struct {
	Login string `json:"login"`
	Type  string `json:"type"`
}

// License is the detected license of a repository.
type License struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	SPDXID string `json:"spdx_id"`
}

// RepositoryDescriptor is a repository as returned by the listing endpoint.
// Nullable counts are pointers so an absent value stays distinguishable from zero.
type RepositoryDescriptor struct {
	ID              int64    `json:"id"`
	Name            string   `json:"name"`
	FullName        string   `json:"full_name"`
	Owner           Owner    `json:"owner"`
	Description     string   `json:"description"`
	HTMLURL         string   `json:"html_url"`
	Homepage        string   `json:"homepage"`
	Visibility      string   `json:"visibility"`
	Fork            bool     `json:"fork"`
	Archived        bool     `json:"archived"`
	IsTemplate      bool     `json:"is_template"`
	StargazersCount *int     `json:"stargazers_count"`
	WatchersCount   *int     `json:"watchers_count"`
	ForksCount      *int     `json:"forks_count"`
	OpenIssuesCount *int     `json:"open_issues_count"`
	Size            *int     `json:"size"`
	Language        string   `json:"language"`
	DefaultBranch   string   `json:"default_branch"`
	License         *License `json:"license"`
	Topics          []string `json:"topics"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
	PushedAt        string   `json:"pushed_at"`
}

// LicenseName returns the license name, or an empty string when none is set.
func (r RepositoryDescriptor) LicenseName() string {
	if r.License == nil {
		return ""
	}
	return r.License.Name
}

// TopicList returns the topics joined by ";".
func (r RepositoryDescriptor) TopicList() string {
	return strings.Join(r.Topics, ";")
}

// OwnerLogin returns the owner login, falling back to the owner segment of
// the full name.
func (r RepositoryDescriptor) OwnerLogin() string {
	if r.Owner.Login != "" {
		return r.Owner.Login
	}
	if owner, _, ok := strings.Cut(r.FullName, "/"); ok {
		return owner
	}
	return ""
}

// RateLimitState is a single snapshot of the remote request budget.
type RateLimitState struct {
	Remaining int
	Reset     time.Time
}

// Value holds either a resolved value or the reason it is unavailable.
type Value[T any] struct {
	v      T
	reason string
	ok     bool
}

// Available returns a resolved value.
func Available[T any](v T) Value[T] {
	return Value[T]{v: v, ok: true}
}

// Unavailable returns a value marked as unavailable for the given reason.
func Unavailable[T any](reason string) Value[T] {
	if reason == "" {
		reason = "unavailable"
	}
	return Value[T]{reason: reason}
}

// UnavailableErr is Unavailable with the reason taken from err.
func UnavailableErr[T any](err error) Value[T] {
	if err == nil {
		return Unavailable[T]("")
	}
	return Unavailable[T](err.Error())
}

// Get returns the value and whether it was resolved.
func (v Value[T]) Get() (T, bool) {
	return v.v, v.ok
}

// IsAvailable reports whether the value was resolved.
func (v Value[T]) IsAvailable() bool {
	return v.ok
}

// Reason returns why the value is unavailable, or "" when it is resolved.
func (v Value[T]) Reason() string {
	return v.reason
}

// String renders the value for export; unavailable values render as the marker.
func (v Value[T]) String() string {
	if !v.ok {
		return UnavailableMarker
	}
	switch x := any(v.v).(type) {
	case string:
		return x
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// EnrichedRecord is a descriptor plus the derived fields of one repository.
type EnrichedRecord struct {
	Repository RepositoryDescriptor

	CommitCount         Value[int]
	OpenPRs             Value[int]
	ClosedPRs           Value[int]
	ContributorsCount   Value[int]
	ReleasesCount       Value[int]
	LatestRelease       Value[string]
	LanguagesBreakdown  Value[string]
	ReadmeExists        Value[bool]
	OpenIssuesExcluding Value[int]
}

// NewUnavailableRecord returns a record whose derived fields are all
// unavailable for the given reason.
func NewUnavailableRecord(repo RepositoryDescriptor, reason string) EnrichedRecord {
	return EnrichedRecord{
		Repository:          repo,
		CommitCount:         Unavailable[int](reason),
		OpenPRs:             Unavailable[int](reason),
		ClosedPRs:           Unavailable[int](reason),
		ContributorsCount:   Unavailable[int](reason),
		ReleasesCount:       Unavailable[int](reason),
		LatestRelease:       Unavailable[string](reason),
		LanguagesBreakdown:  Unavailable[string](reason),
		ReadmeExists:        Unavailable[bool](reason),
		OpenIssuesExcluding: Unavailable[int](reason),
	}
}

// LookupFailed reports whether any of the remote lookups behind the derived
// fields came back unavailable.
func (r EnrichedRecord) LookupFailed() bool {
	return !r.CommitCount.IsAvailable() ||
		!r.OpenPRs.IsAvailable() ||
		!r.ClosedPRs.IsAvailable() ||
		!r.ContributorsCount.IsAvailable() ||
		!r.ReleasesCount.IsAvailable() ||
		!r.LatestRelease.IsAvailable() ||
		!r.LanguagesBreakdown.IsAvailable() ||
		!r.ReadmeExists.IsAvailable()
}

// CrawlResult is the terminal artifact of one crawl run.
type CrawlResult struct {
	Account   string
	Records   []EnrichedRecord
	Errors    int
	Cancelled bool
	StartedAt time.Time
	EndedAt   time.Time
}
