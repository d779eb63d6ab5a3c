package gateway

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/google/go-github/v62/github"
	"github.com/naka-gawa/github-contributions/internal/domain"
	"github.com/sirupsen/logrus"
)

// SearchResult is the outcome of a search: matching records and the
// repositories they belong to, as far as the search reported them.
type SearchResult struct {
	Records      []domain.ContributionRecord
	Repositories []domain.Repository
}

// ListCommits lists the identity's commits to a repository within the window,
// newest first, stopping once limit records are collected.
func (g *GitHubGateway) ListCommits(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error) {
	owner, name, err := domain.SplitFullName(repo.FullName)
	if err != nil {
		return nil, err
	}
	opts := &github.CommitsListOptions{
		Author:      id.Login,
		Since:       window.Since(),
		Until:       window.Until(),
		ListOptions: github.ListOptions{PerPage: pageSize(limit)},
	}
	var records []domain.ContributionRecord
	for {
		var (
			commits []*github.RepositoryCommit
			resp    *github.Response
		)
		err := g.guard.Do(ctx, repo.FullName, func(ctx context.Context) error {
			var err error
			commits, resp, err = g.restClient.Repositories.ListCommits(ctx, owner, name, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list commits of %s: %w", repo.FullName, err)
		}
		for _, c := range commits {
			records = append(records, commitRecord(repo.FullName, c.GetSHA(), c.GetCommit(), c.GetHTMLURL()))
			if len(records) >= limit {
				return records, nil
			}
		}
		if resp.NextPage == 0 {
			return records, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListPullRequests lists pull requests the identity opened in a repository
// within the window.
func (g *GitHubGateway) ListPullRequests(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error) {
	var records []domain.ContributionRecord
	err := g.walkPullRequests(ctx, repo, "created", func(pr *github.PullRequest) bool {
		created := pr.GetCreatedAt().Time
		if created.Before(window.Since()) {
			return false
		}
		if !window.Contains(created) || !strings.EqualFold(pr.GetUser().GetLogin(), id.Login) {
			return true
		}
		records = append(records, domain.ContributionRecord{
			Repository: repo.FullName,
			Kind:       domain.KindPullRequest,
			Timestamp:  created.UTC(),
			Title:      pr.GetTitle(),
			Identifier: domain.NumberIdentifier(pr.GetNumber()),
			State:      pullRequestState(pr.GetState(), pr.MergedAt != nil),
			URL:        pr.GetHTMLURL(),
		})
		return len(records) < limit
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list pull requests of %s: %w", repo.FullName, err)
	}
	return records, nil
}

// ListIssues lists issues the identity opened in a repository within the
// window. Pull requests returned by the issues endpoint are skipped.
func (g *GitHubGateway) ListIssues(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error) {
	owner, name, err := domain.SplitFullName(repo.FullName)
	if err != nil {
		return nil, err
	}
	opts := &github.IssueListByRepoOptions{
		Creator:     id.Login,
		State:       "all",
		Sort:        "created",
		Direction:   "desc",
		Since:       window.Since(),
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	var records []domain.ContributionRecord
	for {
		var (
			issues []*github.Issue
			resp   *github.Response
		)
		err := g.guard.Do(ctx, repo.FullName, func(ctx context.Context) error {
			var err error
			issues, resp, err = g.restClient.Issues.ListByRepo(ctx, owner, name, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to list issues of %s: %w", repo.FullName, err)
		}
		for _, issue := range issues {
			created := issue.GetCreatedAt().Time
			if created.Before(window.Since()) {
				return records, nil
			}
			if issue.IsPullRequest() || !window.Contains(created) {
				continue
			}
			records = append(records, domain.ContributionRecord{
				Repository: repo.FullName,
				Kind:       domain.KindIssue,
				Timestamp:  created.UTC(),
				Title:      issue.GetTitle(),
				Identifier: domain.NumberIdentifier(issue.GetNumber()),
				State:      issue.GetState(),
				URL:        issue.GetHTMLURL(),
			})
			if len(records) >= limit {
				return records, nil
			}
		}
		if resp.NextPage == 0 {
			return records, nil
		}
		opts.Page = resp.NextPage
	}
}

// ListReviews lists reviews the identity submitted in a repository within the
// window, scanning every pull request updated since the window opened. The
// most recent limit reviews are kept.
func (g *GitHubGateway) ListReviews(ctx context.Context, id domain.Identity, repo domain.Repository, window domain.DateRange, limit int) ([]domain.ContributionRecord, error) {
	owner, name, err := domain.SplitFullName(repo.FullName)
	if err != nil {
		return nil, err
	}
	var (
		records []domain.ContributionRecord
		listErr error
	)
	err = g.walkPullRequests(ctx, repo, "updated", func(pr *github.PullRequest) bool {
		if pr.GetUpdatedAt().Time.Before(window.Since()) {
			return false
		}
		var reviews []*github.PullRequestReview
		listErr = g.guard.Do(ctx, repo.FullName, func(ctx context.Context) error {
			var err error
			reviews, _, err = g.restClient.PullRequests.ListReviews(ctx, owner, name, pr.GetNumber(), &github.ListOptions{PerPage: perPage})
			return err
		})
		if listErr != nil {
			return false
		}
		for _, review := range reviews {
			submitted := review.GetSubmittedAt().Time
			if !strings.EqualFold(review.GetUser().GetLogin(), id.Login) || !window.Contains(submitted) {
				continue
			}
			records = append(records, domain.ContributionRecord{
				Repository: repo.FullName,
				Kind:       domain.KindReview,
				Timestamp:  submitted.UTC(),
				Title:      pr.GetTitle(),
				Identifier: domain.ReviewIdentifier(pr.GetNumber(), review.GetID()),
				State:      strings.ToLower(review.GetState()),
				URL:        review.GetHTMLURL(),
			})
		}
		return true
	})
	if err == nil {
		err = listErr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list reviews of %s: %w", repo.FullName, err)
	}
	// Pull request update order says nothing about when a review was submitted.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.After(records[j].Timestamp)
	})
	if len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

// walkPullRequests visits a repository's pull requests sorted by the given
// field, newest first, until visit returns false or the list is exhausted.
func (g *GitHubGateway) walkPullRequests(ctx context.Context, repo domain.Repository, orderBy string, visit func(*github.PullRequest) bool) error {
	owner, name, err := domain.SplitFullName(repo.FullName)
	if err != nil {
		return err
	}
	opts := &github.PullRequestListOptions{
		State:       "all",
		Sort:        orderBy,
		Direction:   "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for {
		var (
			prs  []*github.PullRequest
			resp *github.Response
		)
		err := g.guard.Do(ctx, repo.FullName, func(ctx context.Context) error {
			var err error
			prs, resp, err = g.restClient.PullRequests.List(ctx, owner, name, opts)
			return err
		})
		if err != nil {
			return err
		}
		for _, pr := range prs {
			if !visit(pr) {
				return nil
			}
		}
		if resp.NextPage == 0 {
			return nil
		}
		opts.Page = resp.NextPage
	}
}

// SearchCommits finds the identity's commits within the window across all
// repositories using the REST commit search, reading at most maxPages pages.
func (g *GitHubGateway) SearchCommits(ctx context.Context, id domain.Identity, window domain.DateRange, includePrivate bool, maxPages int) (*SearchResult, error) {
	query := commitQuery(id, window, includePrivate)
	g.logger.WithField("query", query).Info("searching commits")
	result := &SearchResult{}
	seen := make(map[string]bool)
	complete, err := g.searchCommitPages(ctx, query, maxPages, func(c *github.CommitResult) {
		repo := toRepository(c.GetRepository())
		result.Records = append(result.Records, commitRecord(repo.FullName, c.GetSHA(), c.GetCommit(), c.GetHTMLURL()))
		if !seen[repo.FullName] {
			seen[repo.FullName] = true
			result.Repositories = append(result.Repositories, repo)
		}
	})
	if err != nil {
		return nil, err
	}
	if !complete {
		g.logger.WithFields(logrus.Fields{"query": query, "pages": maxPages}).Warn("commit search truncated at page limit")
	}
	g.logger.WithField("count", len(result.Records)).Info("completed commit search")
	return result, nil
}

// SearchCommitRepositories returns the repositories in which the identity
// authored commits, pull requests or issues during the window. Incomplete
// search results, including searches cut short by maxPages, are reported as an
// error so callers can fall back to full enumeration. An empty result is a
// non-nil empty slice.
func (g *GitHubGateway) SearchCommitRepositories(ctx context.Context, id domain.Identity, window domain.DateRange, maxPages int) ([]domain.Repository, error) {
	repos := []domain.Repository{}
	seen := make(map[string]bool)
	add := func(repo domain.Repository) {
		key := strings.ToLower(repo.FullName)
		if repo.FullName == "" || seen[key] {
			return
		}
		seen[key] = true
		repos = append(repos, repo)
	}

	complete, err := g.searchCommitPages(ctx, commitQuery(id, window, true), maxPages, func(c *github.CommitResult) {
		add(toRepository(c.GetRepository()))
	})
	if err != nil {
		return nil, err
	}
	if !complete {
		return nil, fmt.Errorf("commit search exceeded %d pages", maxPages)
	}

	var unresolved []string
	issueQuery := fmt.Sprintf("involves:%s %s", id.Login, window.SearchQualifier("updated"))
	opts := &github.SearchOptions{ListOptions: github.ListOptions{PerPage: perPage}}
	for page := 1; ; page++ {
		var (
			result *github.IssuesSearchResult
			resp   *github.Response
		)
		err := g.guard.Do(ctx, "search issues", func(ctx context.Context) error {
			var err error
			result, resp, err = g.restClient.Search.Issues(ctx, issueQuery, opts)
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("failed to search issues with REST API: %w", err)
		}
		if result.GetIncompleteResults() {
			return nil, fmt.Errorf("issue search returned incomplete results")
		}
		for _, issue := range result.Issues {
			if fullName := repositoryFromAPIURL(issue.GetRepositoryURL()); fullName != "" && !seen[strings.ToLower(fullName)] {
				seen[strings.ToLower(fullName)] = true
				unresolved = append(unresolved, fullName)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		if page >= maxPages {
			return nil, fmt.Errorf("issue search exceeded %d pages", maxPages)
		}
		opts.Page = resp.NextPage
	}

	// Issue search results carry no visibility; look it up.
	for _, fullName := range unresolved {
		repo, err := g.GetRepository(ctx, fullName)
		if err != nil {
			if IsNotFound(err) {
				g.logger.WithField("repository", fullName).Warn("repository is not accessible, skipping")
				continue
			}
			return nil, err
		}
		repos = append(repos, repo)
	}
	g.logger.WithField("count", len(repos)).Info("found repositories with contributions")
	return repos, nil
}

// searchCommitPages visits commit search results page by page. It reports
// false when more pages remained after maxPages.
func (g *GitHubGateway) searchCommitPages(ctx context.Context, query string, maxPages int, visit func(*github.CommitResult)) (bool, error) {
	opts := &github.SearchOptions{
		Sort:        "author-date",
		Order:       "desc",
		ListOptions: github.ListOptions{PerPage: perPage},
	}
	for page := 1; ; page++ {
		var (
			result *github.CommitsSearchResult
			resp   *github.Response
		)
		err := g.guard.Do(ctx, "search commits", func(ctx context.Context) error {
			var err error
			result, resp, err = g.restClient.Search.Commits(ctx, query, opts)
			return err
		})
		if err != nil {
			return false, fmt.Errorf("failed to search commits with REST API: %w", err)
		}
		if result.GetIncompleteResults() {
			return false, fmt.Errorf("commit search returned incomplete results")
		}
		for _, c := range result.Commits {
			visit(c)
		}
		if resp.NextPage == 0 {
			return true, nil
		}
		if page >= maxPages {
			return false, nil
		}
		opts.Page = resp.NextPage
		g.logger.WithField("page", opts.Page).Debug("fetching next page of commits")
	}
}

func commitQuery(id domain.Identity, window domain.DateRange, includePrivate bool) string {
	query := fmt.Sprintf("author:%s %s", id.Login, window.SearchQualifier("author-date"))
	if !includePrivate {
		query += " is:public"
	}
	return query
}

func commitRecord(repository, sha string, commit *github.Commit, htmlURL string) domain.ContributionRecord {
	return domain.ContributionRecord{
		Repository: repository,
		Kind:       domain.KindCommit,
		Timestamp:  commit.GetAuthor().GetDate().Time.UTC(),
		Title:      domain.FirstLine(commit.GetMessage()),
		Identifier: sha,
		URL:        htmlURL,
	}
}

func pullRequestState(state string, merged bool) string {
	if merged {
		return "merged"
	}
	return strings.ToLower(state)
}

// repositoryFromAPIURL extracts "owner/name" from
// https://api.github.com/repos/owner/name.
func repositoryFromAPIURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	_, rest, ok := strings.Cut(u.Path, "/repos/")
	if !ok {
		return ""
	}
	if _, _, err := domain.SplitFullName(rest); err != nil {
		return ""
	}
	return rest
}

func pageSize(limit int) int {
	if limit <= 0 || limit > perPage {
		return perPage
	}
	return limit
}
