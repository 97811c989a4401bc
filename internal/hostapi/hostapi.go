// Package hostapi implements the three host operations the matching core
// depends on (§6): fetching PR metadata/diffs and commit diffs from a
// Git-forge HTTP API, with the retry/backoff/rate-limit semantics
// originally implemented by common.py's github_request.
package hostapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/valkey-io/verify-provenance/internal/core"
)

// PRInfo is the metadata fetch_pr_info returns.
type PRInfo struct {
	BaseSHA      string    `json:"base_sha"`
	HeadSHA      string    `json:"head_sha"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	State        string    `json:"state"`
	Title        string    `json:"title"`
	ChangedFiles int       `json:"changed_files"`
}

// PRSummary is one entry of a PR listing page - enough of the PR's
// metadata for should_skip_pr-style filtering and incremental-refresh
// comparisons, without fetching the full diff.
type PRSummary struct {
	Number       int       `json:"number"`
	State        string    `json:"state"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ChangedFiles int       `json:"changed_files"`
}

// HostAPI is the collaborator the matching core requires (§6): fetching
// PR metadata/diffs and commit diffs from the host. The core never talks
// HTTP directly; every network call funnels through one of these methods
// so retry/backoff/rate-limit policy lives in exactly one place.
type HostAPI interface {
	FetchPRInfo(ctx context.Context, owner, repo string, number int) (PRInfo, error)
	FetchPRDiff(ctx context.Context, owner, repo string, number int) ([]byte, PRInfo, error)
	FetchCommitDiff(ctx context.Context, owner, repo, sha string) ([]byte, error)
	ListPullRequests(ctx context.Context, owner, repo, state string, page, perPage int) ([]PRSummary, error)
}

const (
	defaultTimeout    = 30 * time.Second
	defaultRetries    = 3
	rateLimitMaxWait  = 5 * time.Minute
	rateLimitAbortOver = 10 * time.Minute
)

var backoffSchedule = []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}

// GitHubHostAPI implements HostAPI against the GitHub REST API.
type GitHubHostAPI struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Logger     core.Logger
	Sleep      func(time.Duration)
}

// NewGitHubHostAPI returns a GitHubHostAPI pointed at the public GitHub API.
func NewGitHubHostAPI(token string, logger core.Logger) *GitHubHostAPI {
	return &GitHubHostAPI{
		BaseURL:    "https://api.github.com",
		Token:      token,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		Logger:     logger,
		Sleep:      time.Sleep,
	}
}

type githubPR struct {
	Number       int       `json:"number"`
	State        string    `json:"state"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ChangedFiles int       `json:"changed_files"`
	Base         struct {
		SHA string `json:"sha"`
	} `json:"base"`
	Head struct {
		SHA string `json:"sha"`
	} `json:"head"`
}

func (g *GitHubHostAPI) doRequest(ctx context.Context, req *http.Request) (*http.Response, error) {
	req.Header.Set("Accept", "application/vnd.github.v3+json")
	if g.Token != "" {
		req.Header.Set("Authorization", "token "+g.Token)
	}
	req = req.WithContext(ctx)

	var lastErr error
	for attempt := 0; attempt <= defaultRetries; attempt++ {
		resp, err := g.HTTPClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < defaultRetries {
				g.Logger.Debugf("host request failed (attempt %d): %v, retrying", attempt+1, err)
				g.Sleep(backoffSchedule[attempt])
				continue
			}
			return nil, core.WithKind(core.KindTransient, err, "request failed after retries")
		}

		if resp.StatusCode == http.StatusForbidden {
			reset := resp.Header.Get("X-RateLimit-Reset")
			if reset != "" {
				wait, ok := rateLimitWait(reset)
				if !ok {
					resp.Body.Close()
					return nil, core.WithKind(core.KindTransient, errors.New("rate limit reset too far in the future"), "rate limited")
				}
				resp.Body.Close()
				lastErr = errors.New("rate limited")
				g.Logger.Warnf("rate limited, waiting %s", wait)
				g.Sleep(wait)
				continue
			}
		}

		if resp.StatusCode == http.StatusNotFound {
			resp.Body.Close()
			return nil, core.WithKind(core.KindNotFound, errors.Errorf("%s: 404", req.URL.String()), "host resource not found")
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = errors.Errorf("host returned %d", resp.StatusCode)
			if attempt < defaultRetries {
				g.Logger.Debugf("host returned %d (attempt %d), retrying", resp.StatusCode, attempt+1)
				g.Sleep(backoffSchedule[attempt])
				continue
			}
			return nil, core.WithKind(core.KindTransient, lastErr, "request failed after retries")
		}

		if resp.StatusCode >= 400 {
			resp.Body.Close()
			return nil, core.WithKindf(core.KindMalformed, errors.Errorf("host returned %d", resp.StatusCode), "unexpected status for %s", req.URL.String())
		}

		return resp, nil
	}
	return nil, core.WithKind(core.KindTransient, lastErr, "request failed after retries")
}

// rateLimitWait parses the X-RateLimit-Reset header (a Unix timestamp)
// and reports how long to wait - refusing if that exceeds 10 minutes.
func rateLimitWait(resetHeader string) (time.Duration, bool) {
	var resetUnix int64
	if _, err := fmt.Sscanf(resetHeader, "%d", &resetUnix); err != nil {
		return 0, false
	}
	wait := time.Duration(core.Max64(int64(time.Until(time.Unix(resetUnix, 0))), 0))
	if wait > rateLimitAbortOver {
		return 0, false
	}
	wait = time.Duration(core.Min64(int64(wait), int64(rateLimitMaxWait)))
	return wait, true
}

// FetchPRInfo implements HostAPI.
func (g *GitHubHostAPI) FetchPRInfo(ctx context.Context, owner, repo string, number int) (PRInfo, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls/%d", g.BaseURL, owner, repo, number)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return PRInfo{}, errors.Wrap(err, "building pr info request")
	}
	resp, err := g.doRequest(ctx, req)
	if err != nil {
		return PRInfo{}, err
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return PRInfo{}, core.WithKind(core.KindTransient, err, "reading pr info response")
	}
	var gh githubPR
	if err := json.Unmarshal(raw, &gh); err != nil {
		return PRInfo{}, core.WithKind(core.KindMalformed, err, "parsing pr info response")
	}
	return PRInfo{
		BaseSHA:      gh.Base.SHA,
		HeadSHA:      gh.Head.SHA,
		CreatedAt:    gh.CreatedAt,
		UpdatedAt:    gh.UpdatedAt,
		State:        gh.State,
		Title:        gh.Title,
		ChangedFiles: gh.ChangedFiles,
	}, nil
}

// FetchPRDiff implements HostAPI by hitting the compare endpoint between
// base and head SHAs with a diff media type, as §6 specifies.
func (g *GitHubHostAPI) FetchPRDiff(ctx context.Context, owner, repo string, number int) ([]byte, PRInfo, error) {
	info, err := g.FetchPRInfo(ctx, owner, repo, number)
	if err != nil {
		return nil, PRInfo{}, err
	}
	url := fmt.Sprintf("%s/repos/%s/%s/compare/%s...%s", g.BaseURL, owner, repo, info.BaseSHA, info.HeadSHA)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, PRInfo{}, errors.Wrap(err, "building compare request")
	}
	req.Header.Set("Accept", "application/vnd.github.v3.diff")
	resp, err := g.doRequest(ctx, req)
	if err != nil {
		return nil, PRInfo{}, err
	}
	defer resp.Body.Close()
	diff, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, PRInfo{}, core.WithKind(core.KindTransient, err, "reading compare diff response")
	}
	return diff, info, nil
}

// ListPullRequests implements HostAPI by listing one page of PRs sorted by
// creation date descending, mirroring fetch_pr_list's query shape.
func (g *GitHubHostAPI) ListPullRequests(ctx context.Context, owner, repo, state string, page, perPage int) ([]PRSummary, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/pulls?state=%s&sort=created&direction=desc&per_page=%d&page=%d",
		g.BaseURL, owner, repo, state, perPage, page)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building pr list request")
	}
	resp, err := g.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, core.WithKind(core.KindTransient, err, "reading pr list response")
	}
	var ghs []githubPR
	if err := json.Unmarshal(raw, &ghs); err != nil {
		return nil, core.WithKind(core.KindMalformed, err, "parsing pr list response")
	}
	out := make([]PRSummary, len(ghs))
	for i, gh := range ghs {
		out[i] = PRSummary{
			Number:       gh.Number,
			State:        gh.State,
			Title:        gh.Title,
			CreatedAt:    gh.CreatedAt,
			UpdatedAt:    gh.UpdatedAt,
			ChangedFiles: gh.ChangedFiles,
		}
	}
	return out, nil
}

// FetchCommitDiff implements HostAPI.
func (g *GitHubHostAPI) FetchCommitDiff(ctx context.Context, owner, repo, sha string) ([]byte, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/commits/%s", g.BaseURL, owner, repo, sha)
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "building commit diff request")
	}
	req.Header.Set("Accept", "application/vnd.github.v3.diff")
	resp, err := g.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	diff, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return nil, core.WithKind(core.KindTransient, err, "reading commit diff response")
	}
	return diff, nil
}
